// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package record encodes and decodes the fixed-size header that precedes
// every payload in a store file.
//
// A header is four little-endian 32-bit words:
//
//	 0         4         8         12        16
//	+---------+---------+---------+---------+
//	| status  | id      | forward | size    |
//	+---------+---------+---------+---------+
//
// followed by size bytes of opaque payload.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the encoded length of a Header.
const HeaderSize = 4 * 4

const (
	statusOff  = 0
	idOff      = 4
	forwardOff = 8
	sizeOff    = 12
)

// ErrCorruptHeader is returned when the bytes where a header is expected
// can't be decoded into one.
var ErrCorruptHeader = errors.New("corrupt record header")

// Status is the lifecycle state of a record.
type Status uint32

const (
	Deleted    Status = 0
	Active     Status = 1
	Superseded Status = 2
)

func (s Status) Valid() bool {
	return s <= Superseded
}

func (s Status) String() string {
	switch s {
	case Deleted:
		return "deleted"
	case Active:
		return "active"
	case Superseded:
		return "superseded"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// Header describes a single stored payload.
type Header struct {
	Status Status
	// ID is the logical identifier, stable across updates.
	ID uint32
	// Forward is the absolute offset of the record that replaced this
	// one.  Only meaningful when Status is Superseded, 0 otherwise.
	Forward uint32
	// PayloadSize is the number of payload bytes following the header.
	PayloadSize uint32
}

// RecordLen is the total on-disk length of the header and its payload.
func (h *Header) RecordLen() int64 {
	return HeaderSize + int64(h.PayloadSize)
}

func (h *Header) MarshalTo(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("buf too short: %d < %d", len(buf), HeaderSize)
	}
	buf = buf[:HeaderSize]

	binary.LittleEndian.PutUint32(buf[statusOff:idOff], uint32(h.Status))
	binary.LittleEndian.PutUint32(buf[idOff:forwardOff], h.ID)
	binary.LittleEndian.PutUint32(buf[forwardOff:sizeOff], h.Forward)
	binary.LittleEndian.PutUint32(buf[sizeOff:HeaderSize], h.PayloadSize)

	return nil
}

func (h *Header) UnmarshalBytes(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: %d bytes, need %d", ErrCorruptHeader, len(buf), HeaderSize)
	}
	buf = buf[:HeaderSize]

	status := Status(binary.LittleEndian.Uint32(buf[statusOff:idOff]))
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %d", ErrCorruptHeader, uint32(status))
	}

	h.Status = status
	h.ID = binary.LittleEndian.Uint32(buf[idOff:forwardOff])
	h.Forward = binary.LittleEndian.Uint32(buf[forwardOff:sizeOff])
	h.PayloadSize = binary.LittleEndian.Uint32(buf[sizeOff:HeaderSize])

	return nil
}
