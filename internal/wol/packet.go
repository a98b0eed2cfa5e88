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
	"errors"
	"fmt"
	"net"
)

const (
	// HardwareAddrLen is the length of a link-layer address carried in a magic packet
	HardwareAddrLen = 6
	// Repetitions is how many times the target address follows the sync header
	Repetitions = 16
	// MagicPacketSize is the minimum size of a magic packet (6 + 6*16 = 102 bytes)
	MagicPacketSize = HardwareAddrLen + Repetitions*HardwareAddrLen
)

// syncHeader is the six 0xFF bytes every magic packet starts with
var syncHeader = bytes.Repeat([]byte{0xFF}, HardwareAddrLen)

// HardwareAddr is a 6-byte link-layer address. It is comparable and can be used as a map key.
type HardwareAddr [HardwareAddrLen]byte

// String formats the address as lowercase colon-separated hex (aa:bb:cc:dd:ee:ff)
func (a HardwareAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// IsZero reports whether every byte of the address is zero
func (a HardwareAddr) IsZero() bool {
	return a == HardwareAddr{}
}

// ParseHardwareAddr parses a 6-byte address in any format accepted by net.ParseMAC
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	var addr HardwareAddr
	mac, err := net.ParseMAC(s)
	if err != nil {
		return addr, err
	}
	if len(mac) != HardwareAddrLen {
		return addr, fmt.Errorf("hardware address %q has %d bytes, want %d", s, len(mac), HardwareAddrLen)
	}
	copy(addr[:], mac)
	return addr, nil
}

// RejectReason classifies why a datagram was not accepted as a magic packet
type RejectReason string

const (
	// ReasonSizeTooSmall means the datagram is shorter than MagicPacketSize
	ReasonSizeTooSmall RejectReason = "size-too-small"
	// ReasonHeaderMismatch means the first six bytes are not all 0xFF
	ReasonHeaderMismatch RejectReason = "header-mismatch"
	// ReasonRepetitionMismatch means one of the 16 address blocks differs from the first
	ReasonRepetitionMismatch RejectReason = "repetition-mismatch"
	// ReasonAddressNotLocal means the target address is not in the allow-list
	ReasonAddressNotLocal RejectReason = "address-not-local"
)

// ValidationError is returned by Validate for every rejected datagram
type ValidationError struct {
	Reason RejectReason

	// Got and Want are set for ReasonSizeTooSmall
	Got  int
	Want int
	// Block is the index (1..15) of the first mismatching repetition
	Block int
	// Addr is the target address for ReasonAddressNotLocal
	Addr HardwareAddr
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonSizeTooSmall:
		return fmt.Sprintf("invalid size: %d (expected at least %d)", e.Got, e.Want)
	case ReasonHeaderMismatch:
		return "invalid sync header"
	case ReasonRepetitionMismatch:
		return fmt.Sprintf("invalid address repetition at block %d", e.Block)
	case ReasonAddressNotLocal:
		return fmt.Sprintf("hardware address %s does not match any local interface", e.Addr)
	default:
		return string(e.Reason)
	}
}

// ReasonOf extracts the RejectReason from an error returned by Validate.
// It returns the empty string for nil or unrelated errors.
func ReasonOf(err error) RejectReason {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

// Validate checks that packet is a magic packet and returns the target address.
// A valid magic packet contains:
// - 6 bytes of 0xFF
// - 16 repetitions of the target hardware address (6 bytes each)
//
// Only the first MagicPacketSize bytes are inspected, trailing bytes are ignored.
// When allow is non-nil the target address must also be a member of it.
func Validate(packet []byte, allow *AddressSet) (HardwareAddr, error) {
	var addr HardwareAddr

	if len(packet) < MagicPacketSize {
		return addr, &ValidationError{Reason: ReasonSizeTooSmall, Got: len(packet), Want: MagicPacketSize}
	}

	if !bytes.Equal(packet[:HardwareAddrLen], syncHeader) {
		return addr, &ValidationError{Reason: ReasonHeaderMismatch}
	}

	// The first repetition (bytes 6-11) is the candidate
	candidate := packet[HardwareAddrLen : 2*HardwareAddrLen]
	for i := 1; i < Repetitions; i++ {
		offset := HardwareAddrLen + i*HardwareAddrLen
		if !bytes.Equal(packet[offset:offset+HardwareAddrLen], candidate) {
			return addr, &ValidationError{Reason: ReasonRepetitionMismatch, Block: i}
		}
	}
	copy(addr[:], candidate)

	if allow != nil && !allow.Has(addr) {
		return HardwareAddr{}, &ValidationError{Reason: ReasonAddressNotLocal, Addr: addr}
	}

	return addr, nil
}

// NewMagicPacket builds the 102-byte magic packet targeting addr
func NewMagicPacket(addr HardwareAddr) []byte {
	packet := make([]byte, 0, MagicPacketSize)
	packet = append(packet, syncHeader...)
	for i := 0; i < Repetitions; i++ {
		packet = append(packet, addr[:]...)
	}
	return packet
}
