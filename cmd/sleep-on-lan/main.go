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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/gpillon/sleep-on-lan/internal/config"
	"github.com/gpillon/sleep-on-lan/internal/power"
	"github.com/gpillon/sleep-on-lan/internal/wol"
)

var (
	setupLog = ctrl.Log.WithName("setup")
)

func main() {
	opts := zap.Options{
		Development: false,
	}
	opts.BindFlags(flag.CommandLine)

	config.BindFlags(pflag.CommandLine)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		setupLog.Error(err, "Invalid configuration")
		os.Exit(1)
	}

	allow, err := cfg.AllowList(nil, ctrl.Log.WithName("interfaces"))
	if err != nil {
		setupLog.Error(err, "Failed to build address allow-list", "filterMode", cfg.FilterMode)
		os.Exit(1)
	}

	var controller power.Controller
	if cfg.DryRun {
		controller = power.NewDryRunController(ctrl.Log.WithName("power"))
	} else {
		controller = power.NewCommandController(cfg.SuspendArgs(), cfg.SuspendTimeout, ctrl.Log.WithName("power"))
	}

	setupLog.Info("Starting Sleep-on-LAN daemon",
		"port", cfg.Port,
		"filterMode", cfg.FilterMode,
		"allowedAddresses", allow.Len(),
		"suspendCommand", cfg.SuspendCommand,
		"dryRun", cfg.DryRun,
		"version", "v0.0.1")

	// Cancel on SIGINT/SIGTERM so the listener closes its socket
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listener := wol.NewListener(cfg.Port, allow, controller, ctrl.Log.WithName("listener"))

	probes := wol.NewProbeServer(cfg.ProbeBindAddress, listener, ctrl.Log.WithName("probes"))
	go func() {
		if err := probes.Start(ctx); err != nil {
			setupLog.Error(err, "Probe server failed", "address", cfg.ProbeBindAddress)
			os.Exit(1)
		}
	}()

	if err := listener.Start(ctx); err != nil {
		setupLog.Error(err, "Listener failed to start")
		os.Exit(1)
	}

	setupLog.Info("Sleep-on-LAN daemon stopped gracefully")
}
