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

package wol

import (
	"bytes"
	"fmt"
	"net"
	"sort"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// AddressSet is an immutable allow-list of hardware addresses.
// It is built once at startup and only read afterwards, so it needs no locking.
type AddressSet struct {
	addrs sets.Set[HardwareAddr]
}

// NewAddressSet returns a set containing addrs
func NewAddressSet(addrs ...HardwareAddr) *AddressSet {
	return &AddressSet{addrs: sets.New(addrs...)}
}

// Has reports whether addr is in the set
func (s *AddressSet) Has(addr HardwareAddr) bool {
	if s == nil {
		return false
	}
	return s.addrs.Has(addr)
}

// Len returns the number of addresses in the set
func (s *AddressSet) Len() int {
	if s == nil {
		return 0
	}
	return s.addrs.Len()
}

// List returns the addresses in byte order
func (s *AddressSet) List() []HardwareAddr {
	if s == nil {
		return nil
	}
	list := s.addrs.UnsortedList()
	sort.Slice(list, func(i, j int) bool {
		return bytes.Compare(list[i][:], list[j][:]) < 0
	})
	return list
}

// Union returns a new set with the members of both sets
func (s *AddressSet) Union(other *AddressSet) *AddressSet {
	out := NewAddressSet()
	if s != nil {
		out.addrs = out.addrs.Union(s.addrs)
	}
	if other != nil {
		out.addrs = out.addrs.Union(other.addrs)
	}
	return out
}

// LocalAddresses returns the hardware addresses of the host's network interfaces
func LocalAddresses(log logr.Logger) (*AddressSet, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}
	return addressesOf(interfaces, log), nil
}

// addressesOf collects the 6-byte, non-zero hardware addresses of interfaces.
// Interfaces sharing an address (bridge and its port, bonds) collapse into one entry.
func addressesOf(interfaces []net.Interface, log logr.Logger) *AddressSet {
	set := NewAddressSet()

	for _, iface := range interfaces {
		if len(iface.HardwareAddr) != HardwareAddrLen {
			log.V(1).Info("Skipping interface without a 6-byte hardware address",
				"interface", iface.Name)
			continue
		}

		var addr HardwareAddr
		copy(addr[:], iface.HardwareAddr)
		if addr.IsZero() {
			log.V(1).Info("Skipping interface with zero hardware address", "interface", iface.Name)
			continue
		}

		if set.addrs.Has(addr) {
			log.V(1).Info("Skipping duplicate hardware address", "interface", iface.Name, "mac", addr.String())
			continue
		}

		set.addrs.Insert(addr)
		log.V(1).Info("Found hardware address on interface",
			"interface", iface.Name,
			"mac", addr.String())
	}

	return set
}
