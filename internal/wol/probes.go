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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	healthzPath = "/healthz"
	readyzPath  = "/readyz"
	metricsPath = "/metrics"

	shutdownTimeout = 5 * time.Second
)

// ProbeServer serves health, readiness and Prometheus metrics over HTTP
type ProbeServer struct {
	addr     string
	listener *Listener
	log      logr.Logger
}

// NewProbeServer creates a probe server bound to addr. An empty addr or "0" disables it.
func NewProbeServer(addr string, listener *Listener, log logr.Logger) *ProbeServer {
	return &ProbeServer{
		addr:     addr,
		listener: listener,
		log:      log,
	}
}

// Enabled reports whether the server has an address to bind
func (p *ProbeServer) Enabled() bool {
	return p.addr != "" && p.addr != "0"
}

// Handler returns the mux serving /healthz, /readyz and /metrics
func (p *ProbeServer) Handler() http.Handler {
	mux := http.NewServeMux()

	healthzHandler := &healthz.Handler{Checks: map[string]healthz.Checker{
		"ping": healthz.Ping,
	}}
	readyzHandler := &healthz.Handler{Checks: map[string]healthz.Checker{
		"listener": func(_ *http.Request) error { return p.listener.Ready() },
	}}

	mux.Handle(healthzPath, http.StripPrefix(healthzPath, healthzHandler))
	mux.Handle(healthzPath+"/", http.StripPrefix(healthzPath, healthzHandler))
	mux.Handle(readyzPath, http.StripPrefix(readyzPath, readyzHandler))
	mux.Handle(readyzPath+"/", http.StripPrefix(readyzPath, readyzHandler))
	mux.Handle(metricsPath, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))

	return mux
}

// Start serves until ctx is cancelled
func (p *ProbeServer) Start(ctx context.Context) error {
	if !p.Enabled() {
		p.log.V(1).Info("Probe server disabled")
		return nil
	}

	server := &http.Server{
		Addr:              p.addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			p.log.Error(err, "Failed to shutdown probe server")
		}
	}()

	p.log.Info("Starting probe server", "address", p.addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
