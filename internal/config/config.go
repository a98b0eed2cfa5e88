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
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/gpillon/sleep-on-lan/internal/power"
	"github.com/gpillon/sleep-on-lan/internal/wol"
)

// FilterMode defines which target addresses are accepted
type FilterMode string

const (
	// FilterModeLocal accepts addresses of local interfaces plus the configured ones
	FilterModeLocal FilterMode = "local"
	// FilterModeStatic accepts only the configured addresses
	FilterModeStatic FilterMode = "static"
	// FilterModeNone accepts any structurally valid magic packet
	FilterModeNone FilterMode = "none"
)

// EnvPrefix is prepended to every environment variable, e.g. SOL_PORT
const EnvPrefix = "SOL"

const (
	keyConfig           = "config"
	keyPort             = "port"
	keyFilterMode       = "filter-mode"
	keyAllowAddress     = "allow-address"
	keySuspendCommand   = "suspend-command"
	keySuspendTimeout   = "suspend-timeout"
	keyDryRun           = "dry-run"
	keyProbeBindAddress = "probe-bind-address"
)

// Config holds the daemon settings
type Config struct {
	// ConfigFile is an optional YAML file read before env and flags are applied
	ConfigFile string `mapstructure:"config"`
	// Port is the UDP port to listen on
	Port int `mapstructure:"port"`
	// FilterMode selects how the allow-list is built
	FilterMode FilterMode `mapstructure:"filter-mode"`
	// AllowAddresses are extra hardware addresses accepted as targets
	AllowAddresses []string `mapstructure:"allow-address"`
	// SuspendCommand is the command line run to suspend the host
	SuspendCommand string `mapstructure:"suspend-command"`
	// SuspendTimeout bounds a single suspend command
	SuspendTimeout time.Duration `mapstructure:"suspend-timeout"`
	// DryRun logs suspend requests instead of running the command
	DryRun bool `mapstructure:"dry-run"`
	// ProbeBindAddress serves /healthz, /readyz and /metrics; "0" disables it
	ProbeBindAddress string `mapstructure:"probe-bind-address"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Port:             wol.DefaultPort,
		FilterMode:       FilterModeLocal,
		SuspendCommand:   strings.Join(power.DefaultSuspendCommand, " "),
		SuspendTimeout:   power.DefaultTimeout,
		ProbeBindAddress: "0",
	}
}

// BindFlags registers the daemon flags on fs
func BindFlags(fs *pflag.FlagSet) {
	def := DefaultConfig()
	fs.String(keyConfig, "", "Path to a YAML configuration file")
	fs.Int(keyPort, def.Port, "UDP port to listen on for magic packets")
	fs.String(keyFilterMode, string(def.FilterMode),
		"Which target addresses are accepted: local (local interfaces + allow-address), static (allow-address only) or none")
	fs.StringSlice(keyAllowAddress, nil, "Additional hardware addresses to accept (comma-separated)")
	fs.String(keySuspendCommand, def.SuspendCommand, "Command run to suspend the host")
	fs.Duration(keySuspendTimeout, def.SuspendTimeout, "Maximum time the suspend command may run")
	fs.Bool(keyDryRun, def.DryRun, "Log suspend requests without suspending the host")
	fs.String(keyProbeBindAddress, def.ProbeBindAddress,
		"The address the health, readiness and metrics endpoints bind to. Use 0 to disable.")
}

// Load builds the configuration from defaults, an optional config file, the
// environment and the flags in fs (already parsed), in increasing precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault(keyPort, def.Port)
	v.SetDefault(keyFilterMode, string(def.FilterMode))
	v.SetDefault(keyAllowAddress, []string{})
	v.SetDefault(keySuspendCommand, def.SuspendCommand)
	v.SetDefault(keySuspendTimeout, def.SuspendTimeout)
	v.SetDefault(keyDryRun, def.DryRun)
	v.SetDefault(keyProbeBindAddress, def.ProbeBindAddress)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if file := v.GetString(keyConfig); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	// AutomaticEnv values arrive as plain strings
	cfg.AllowAddresses = splitList(v.GetStringSlice(keyAllowAddress))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range (must be 1-65535)", c.Port))
	}

	switch c.FilterMode {
	case FilterModeLocal, FilterModeNone:
	case FilterModeStatic:
		if len(c.AllowAddresses) == 0 {
			errs = append(errs, fmt.Errorf("filter mode %q requires at least one allow-address", c.FilterMode))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown filter mode %q (must be %s, %s or %s)",
			c.FilterMode, FilterModeLocal, FilterModeStatic, FilterModeNone))
	}

	for _, s := range c.AllowAddresses {
		if _, err := wol.ParseHardwareAddr(s); err != nil {
			errs = append(errs, fmt.Errorf("invalid allow-address %q: %w", s, err))
		}
	}

	if !c.DryRun && len(c.SuspendArgs()) == 0 {
		errs = append(errs, fmt.Errorf("suspend-command must not be empty"))
	}

	if c.SuspendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("suspend-timeout must be positive, got %s", c.SuspendTimeout))
	}

	return utilerrors.NewAggregate(errs)
}

// SuspendArgs splits SuspendCommand into argv
func (c *Config) SuspendArgs() []string {
	return strings.Fields(c.SuspendCommand)
}

// StaticAddresses returns the parsed allow-address entries as a set
func (c *Config) StaticAddresses() (*wol.AddressSet, error) {
	addrs := make([]wol.HardwareAddr, 0, len(c.AllowAddresses))
	for _, s := range c.AllowAddresses {
		addr, err := wol.ParseHardwareAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid allow-address %q: %w", s, err)
		}
		addrs = append(addrs, addr)
	}
	return wol.NewAddressSet(addrs...), nil
}

// splitList flattens comma-separated entries and drops empty ones
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}
