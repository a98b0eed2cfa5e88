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
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

const (
	// DefaultPort is the UDP port the sleep-on-LAN daemon listens on
	DefaultPort = 10

	readBufferSize   = 1024
	socketBufferSize = 1024 * 64

	// readErrorBackoff is the pause after a failed read before the next one
	readErrorBackoff = 100 * time.Millisecond
)

// PowerController puts the host to sleep
type PowerController interface {
	Suspend(ctx context.Context) error
}

// Listener receives magic packets and suspends the host when one targets it
type Listener struct {
	port  int
	allow *AddressSet
	power PowerController
	log   logr.Logger
	bound atomic.Bool
}

// NewListener creates a new listener. A nil allow-list disables address filtering,
// a non-nil one (even empty) requires the target address to be a member.
func NewListener(port int, allow *AddressSet, power PowerController, log logr.Logger) *Listener {
	if port <= 0 {
		port = DefaultPort
	}
	return &Listener{
		port:  port,
		allow: allow,
		power: power,
		log:   log,
	}
}

// Start binds 0.0.0.0:port and serves until ctx is cancelled.
// It only returns an error when the socket cannot be bound.
func (l *Listener) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: l.configureSocket}
	addr := net.JoinHostPort(net.IPv4zero.String(), strconv.Itoa(l.port))

	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", l.port, err)
	}

	if udpConn, ok := conn.(*net.UDPConn); ok {
		if err := udpConn.SetReadBuffer(socketBufferSize); err != nil {
			l.log.Error(err, "Failed to set read buffer size")
		}
	}

	l.log.Info("Sleep-on-LAN listener started",
		"port", l.port,
		"bindAddress", "0.0.0.0",
		"actualAddress", conn.LocalAddr().String(),
		"filtering", l.allow != nil)

	return l.Serve(ctx, conn)
}

// configureSocket sets socket options before bind
func (l *Listener) configureSocket(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		// Allow a quick restart while the previous socket lingers
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			l.log.Error(err, "Failed to enable SO_REUSEADDR")
		} else {
			l.log.V(1).Info("SO_REUSEADDR enabled")
		}

		// Magic packets are usually sent to the broadcast address
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
			sockErr = fmt.Errorf("SO_BROADCAST: %w", err)
			return
		}
		l.log.V(1).Info("SO_BROADCAST enabled")
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Serve runs the receive loop on an already bound socket and closes it on return.
// Datagrams are handled one at a time: the next read happens only after the
// previous datagram was validated and any suspend call returned.
func (l *Listener) Serve(ctx context.Context, conn net.PacketConn) error {
	done := make(chan struct{})
	defer close(done)

	// Unblock ReadFrom on cancellation
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.log.Error(err, "Failed to close UDP socket")
		}
	}()

	l.bound.Store(true)
	defer l.bound.Store(false)

	buffer := make([]byte, readBufferSize)
	l.log.Info("UDP listener loop started, waiting for magic packets...")

	for {
		n, addr, err := conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.log.Info("Sleep-on-LAN listener stopped")
				return nil
			}
			l.log.Error(err, "Error reading UDP packet")
			ErrorsTotal.Inc()

			select {
			case <-ctx.Done():
				l.log.Info("Sleep-on-LAN listener stopped")
				return nil
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		l.handlePacket(ctx, buffer[:n], addr)
	}
}

// handlePacket validates a single datagram and suspends the host when it is accepted
func (l *Listener) handlePacket(ctx context.Context, packet []byte, from net.Addr) {
	PacketsTotal.Inc()

	mac, err := Validate(packet, l.allow)
	if err != nil {
		reason := ReasonOf(err)
		PacketsRejectedTotal.WithLabelValues(string(reason)).Inc()
		l.log.Info("Received invalid packet",
			"from", from.String(),
			"size", len(packet),
			"reason", reason,
			"error", err.Error())
		return
	}

	PacketsAcceptedTotal.Inc()
	l.log.Info("Valid magic packet received", "from", from.String(), "mac", mac.String())

	if err := l.power.Suspend(ctx); err != nil {
		SuspendAttemptsTotal.WithLabelValues(suspendResultFailure).Inc()
		l.log.Error(err, "Failed to suspend system", "mac", mac.String(), "from", from.String())
		return
	}

	SuspendAttemptsTotal.WithLabelValues(suspendResultSuccess).Inc()
	l.log.Info("System suspend initiated", "mac", mac.String())
}

// Ready returns an error until the socket is bound and the loop is running
func (l *Listener) Ready() error {
	if !l.bound.Load() {
		return errors.New("UDP listener not active")
	}
	return nil
}

// Port returns the configured UDP port
func (l *Listener) Port() int {
	return l.port
}
