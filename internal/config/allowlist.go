/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gpillon/sleep-on-lan/internal/wol"
)

// InterfaceLister returns the hardware addresses of the local interfaces
type InterfaceLister func() (*wol.AddressSet, error)

// AllowList builds the address allow-list for the configured filter mode.
// A nil set disables address filtering. When local is nil the host's
// interfaces are enumerated with wol.LocalAddresses.
func (c *Config) AllowList(local InterfaceLister, log logr.Logger) (*wol.AddressSet, error) {
	if local == nil {
		local = func() (*wol.AddressSet, error) { return wol.LocalAddresses(log) }
	}

	static, err := c.StaticAddresses()
	if err != nil {
		return nil, err
	}

	var allow *wol.AddressSet
	switch c.FilterMode {
	case FilterModeNone:
		wol.AllowedAddresses.Set(-1)
		log.Info("Address filtering disabled, any valid magic packet will suspend the host")
		return nil, nil
	case FilterModeStatic:
		allow = static
	case FilterModeLocal:
		addrs, err := local()
		if err != nil {
			return nil, err
		}
		allow = addrs.Union(static)
	default:
		return nil, fmt.Errorf("unknown filter mode %q", c.FilterMode)
	}

	wol.AllowedAddresses.Set(float64(allow.Len()))
	if allow.Len() == 0 {
		log.Info("Warning: no hardware addresses to monitor, every magic packet will be rejected")
		return allow, nil
	}

	for _, addr := range allow.List() {
		log.Info("Accepting magic packets targeting", "mac", addr.String())
	}
	return allow, nil
}
