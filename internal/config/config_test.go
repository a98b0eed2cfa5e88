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
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"github.com/gpillon/sleep-on-lan/internal/wol"
)

var _ = Describe("Config", func() {
	// load parses args on a fresh flag set and loads the configuration
	load := func(args ...string) (*Config, error) {
		fs := pflag.NewFlagSet("sleep-on-lan", pflag.ContinueOnError)
		BindFlags(fs)
		Expect(fs.Parse(args)).To(Succeed())
		return Load(fs)
	}

	setenv := func(key, value string) {
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(os.Unsetenv, key)
	}

	writeConfigFile := func(content string) string {
		dir, err := os.MkdirTemp("", "sleep-on-lan-config")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		path := filepath.Join(dir, "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	Context("When no configuration is given", func() {
		It("should use the defaults", func() {
			cfg, err := load()
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Port).To(Equal(10))
			Expect(cfg.FilterMode).To(Equal(FilterModeLocal))
			Expect(cfg.AllowAddresses).To(BeEmpty())
			Expect(cfg.SuspendCommand).To(Equal("systemctl suspend"))
			Expect(cfg.SuspendArgs()).To(Equal([]string{"systemctl", "suspend"}))
			Expect(cfg.SuspendTimeout).To(Equal(30 * time.Second))
			Expect(cfg.DryRun).To(BeFalse())
			Expect(cfg.ProbeBindAddress).To(Equal("0"))
		})
	})

	Context("When flags are set", func() {
		It("should apply them", func() {
			cfg, err := load(
				"--port", "4343",
				"--filter-mode", "static",
				"--allow-address", "aa:bb:cc:dd:ee:ff,52:54:00:12:34:56",
				"--suspend-command", "loginctl suspend",
				"--suspend-timeout", "5s",
				"--dry-run",
				"--probe-bind-address", ":8081",
			)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Port).To(Equal(4343))
			Expect(cfg.FilterMode).To(Equal(FilterModeStatic))
			Expect(cfg.AllowAddresses).To(Equal([]string{"aa:bb:cc:dd:ee:ff", "52:54:00:12:34:56"}))
			Expect(cfg.SuspendArgs()).To(Equal([]string{"loginctl", "suspend"}))
			Expect(cfg.SuspendTimeout).To(Equal(5 * time.Second))
			Expect(cfg.DryRun).To(BeTrue())
			Expect(cfg.ProbeBindAddress).To(Equal(":8081"))
		})
	})

	Context("When environment variables are set", func() {
		It("should override the defaults", func() {
			setenv("SOL_PORT", "9")
			setenv("SOL_FILTER_MODE", "none")

			cfg, err := load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(9))
			Expect(cfg.FilterMode).To(Equal(FilterModeNone))
		})

		It("should split comma-separated addresses", func() {
			setenv("SOL_ALLOW_ADDRESS", "aa:bb:cc:dd:ee:ff,52:54:00:12:34:56")

			cfg, err := load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.AllowAddresses).To(ConsistOf("aa:bb:cc:dd:ee:ff", "52:54:00:12:34:56"))
		})

		It("should lose against flags", func() {
			setenv("SOL_PORT", "9")

			cfg, err := load("--port", "7")
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(7))
		})
	})

	Context("When a config file is given", func() {
		It("should read it", func() {
			path := writeConfigFile(`
port: 4000
filter-mode: static
allow-address:
  - aa:bb:cc:dd:ee:ff
suspend-command: /usr/sbin/pm-suspend
`)
			cfg, err := load("--config", path)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.ConfigFile).To(Equal(path))
			Expect(cfg.Port).To(Equal(4000))
			Expect(cfg.FilterMode).To(Equal(FilterModeStatic))
			Expect(cfg.AllowAddresses).To(Equal([]string{"aa:bb:cc:dd:ee:ff"}))
			Expect(cfg.SuspendArgs()).To(Equal([]string{"/usr/sbin/pm-suspend"}))
		})

		It("should let environment and flags override it", func() {
			path := writeConfigFile("port: 4000\nfilter-mode: none\n")
			setenv("SOL_FILTER_MODE", "local")

			cfg, err := load("--config", path, "--port", "4001")
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(4001))
			Expect(cfg.FilterMode).To(Equal(FilterModeLocal))
		})

		It("should fail when the file does not exist", func() {
			_, err := load("--config", "/nonexistent/sleep-on-lan.yaml")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to read config file"))
		})
	})

	Context("When validating", func() {
		It("should report every problem at once", func() {
			cfg := DefaultConfig()
			cfg.Port = 70000
			cfg.FilterMode = "sometimes"
			cfg.AllowAddresses = []string{"not-a-mac"}
			cfg.SuspendCommand = "   "

			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("port 70000 out of range"))
			Expect(err.Error()).To(ContainSubstring(`unknown filter mode "sometimes"`))
			Expect(err.Error()).To(ContainSubstring(`invalid allow-address "not-a-mac"`))
			Expect(err.Error()).To(ContainSubstring("suspend-command must not be empty"))
		})

		It("should require addresses in static mode", func() {
			cfg := DefaultConfig()
			cfg.FilterMode = FilterModeStatic

			Expect(cfg.Validate()).To(MatchError(ContainSubstring("requires at least one allow-address")))
		})

		It("should allow an empty suspend command in dry-run mode", func() {
			cfg := DefaultConfig()
			cfg.SuspendCommand = ""
			cfg.DryRun = true

			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject a non-positive suspend timeout", func() {
			cfg := DefaultConfig()
			cfg.SuspendTimeout = 0

			Expect(cfg.Validate()).To(MatchError(ContainSubstring("suspend-timeout must be positive")))
		})

		It("should accept the defaults", func() {
			Expect(DefaultConfig().Validate()).To(Succeed())
		})
	})

	Context("When building the static allow-list", func() {
		It("should parse every address", func() {
			cfg := DefaultConfig()
			cfg.AllowAddresses = []string{"AA-BB-CC-DD-EE-FF", "52:54:00:12:34:56"}

			set, err := cfg.StaticAddresses()
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Len()).To(Equal(2))
			Expect(set.Has(wol.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})).To(BeTrue())
			Expect(set.Has(wol.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56})).To(BeTrue())
		})

		It("should fail on an invalid address", func() {
			cfg := DefaultConfig()
			cfg.AllowAddresses = []string{"zz:zz"}

			_, err := cfg.StaticAddresses()
			Expect(err).To(HaveOccurred())
		})
	})
})
