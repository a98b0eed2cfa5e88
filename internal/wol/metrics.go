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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	suspendResultSuccess = "success"
	suspendResultFailure = "failure"
)

var (
	// PacketsTotal counts every datagram read from the socket
	PacketsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_packets_total",
			Help: "Number of UDP datagrams received",
		},
	)

	// PacketsAcceptedTotal counts datagrams accepted as magic packets
	PacketsAcceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_packets_accepted_total",
			Help: "Number of valid magic packets addressed to this host",
		},
	)

	// PacketsRejectedTotal counts rejected datagrams by reason
	PacketsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sol_packets_rejected_total",
			Help: "Number of datagrams rejected, by reason",
		},
		[]string{"reason"},
	)

	// SuspendAttemptsTotal counts suspend invocations by result
	SuspendAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sol_suspend_attempts_total",
			Help: "Number of suspend attempts, by result",
		},
		[]string{"result"},
	)

	// ErrorsTotal counts socket receive errors
	ErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sol_errors_total",
			Help: "Number of errors while receiving datagrams",
		},
	)

	// AllowedAddresses is the size of the allow-list, -1 when filtering is disabled
	AllowedAddresses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sol_allowed_addresses",
			Help: "Number of hardware addresses in the allow-list (-1 when filtering is disabled)",
		},
	)
)

func init() {
	// Register metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		PacketsTotal,
		PacketsAcceptedTotal,
		PacketsRejectedTotal,
		SuspendAttemptsTotal,
		ErrorsTotal,
		AllowedAddresses,
	)
}
