// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	"github.com/bpowers/crudfile/internal/record"
)

const (
	countSlotSize = 4
	// DataStart is the offset of the first record header.
	DataStart = int64(countSlotSize)

	maxOffset = int64(math.MaxUint32)
)

var (
	ErrNotFound = errors.New("record not found")
	ErrTooLarge = errors.New("store file would exceed 4 GiB")
	ErrClosed   = errors.New("store file is closed")
	errNoIDs    = errors.New("logical id space exhausted")
)

// Handle is usually an *os.File, but specified as an interface for easier testing.
type Handle interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
}

// Option configures a File.
type Option func(*options)

type options struct {
	logger *slog.Logger
	sync   bool
}

// WithLogger sets an optional logger.  If not provided, no logging output
// will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithSync makes every mutation fsync the file before returning.
func WithSync() Option {
	return func(opts *options) {
		opts.sync = true
	}
}

type File struct {
	h      Handle
	size   int64
	nextID uint32
	logger *slog.Logger
	sync   bool
	closed atomic.Bool
}

// Open opens the store file at path, creating it if needed.  The file
// handle is closed again if anything after the open fails.
func Open(path string, opts ...Option) (_ *File, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	stats, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}

	return NewFile(f, stats.Size(), opts...)
}

// NewFile wraps an already-open handle whose current length is size.  An
// empty handle gets a zeroed counter slot.
func NewFile(h Handle, size int64, opts ...Option) (*File, error) {
	var options options
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	f := &File{
		h:      h,
		size:   size,
		nextID: 1,
		logger: options.logger,
		sync:   options.sync,
	}

	if size == 0 {
		f.logger.Debug("initializing empty store file")
		var zero [countSlotSize]byte
		if _, err := h.WriteAt(zero[:], 0); err != nil {
			return nil, fmt.Errorf("f.WriteAt: %w", err)
		}
		f.size = countSlotSize
		if err := f.maybeSync(); err != nil {
			return nil, err
		}
	} else if size < countSlotSize {
		return nil, fmt.Errorf("%w: data file too short: %d < %d", record.ErrCorruptHeader, size, countSlotSize)
	}

	return f, nil
}

// Size is the current length of the file in bytes.
func (f *File) Size() int64 {
	return f.size
}

func (f *File) maybeSync() error {
	if !f.sync {
		return nil
	}
	if err := f.h.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	return nil
}

func (f *File) checkOpen() error {
	if f.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Count returns the value stored in the counter slot.
func (f *File) Count() (uint32, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	var buf [countSlotSize]byte
	if _, err := f.h.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("f.ReadAt: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// SetCount overwrites the counter slot.
func (f *File) SetCount(n uint32) error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	var buf [countSlotSize]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	if _, err := f.h.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("f.WriteAt: %w", err)
	}
	return f.maybeSync()
}

// NextID is the id the next AllocID call will hand out.
func (f *File) NextID() uint32 {
	return f.nextID
}

// AllocID reserves the next logical id.  Ids are strictly increasing for
// the lifetime of the File and are never handed out twice, even after a
// delete.
func (f *File) AllocID() (uint32, error) {
	if f.nextID == 0 {
		return 0, errNoIDs
	}
	id := f.nextID
	f.nextID++
	return id, nil
}

// ResetNextID positions the id generator after maxID, the largest id
// already present in the store.
func (f *File) ResetNextID(maxID uint32) {
	f.nextID = maxID + 1
}

// Append writes a header and payload at end-of-file and returns the
// offset of the header.  The counter slot is untouched.
func (f *File) Append(payload []byte, id uint32, status record.Status) (off int64, err error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}

	off = f.size
	end := off + record.HeaderSize + int64(len(payload))
	if end > maxOffset {
		return 0, ErrTooLarge
	}

	h := record.Header{
		Status:      status,
		ID:          id,
		PayloadSize: uint32(len(payload)),
	}
	buf := make([]byte, h.RecordLen())
	if err := h.MarshalTo(buf); err != nil {
		return 0, fmt.Errorf("h.MarshalTo: %w", err)
	}
	copy(buf[record.HeaderSize:], payload)

	// on a short write size stays put, so the torn bytes get overwritten
	// by the next append
	if _, err := f.h.WriteAt(buf, off); err != nil {
		return 0, fmt.Errorf("f.WriteAt(%d): %w", off, err)
	}
	f.size = end

	if err := f.maybeSync(); err != nil {
		return 0, err
	}

	return off, nil
}

// RewriteHeaderAt overwrites the header at off.  The payload following it
// is left alone, so h.PayloadSize must match what is already on disk.
func (f *File) RewriteHeaderAt(off int64, h record.Header) error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if off < DataStart || off+h.RecordLen() > f.size {
		return fmt.Errorf("%w: rewrite at %d (len %d) outside file of size %d", record.ErrCorruptHeader, off, h.RecordLen(), f.size)
	}

	var buf [record.HeaderSize]byte
	if err := h.MarshalTo(buf[:]); err != nil {
		return fmt.Errorf("h.MarshalTo: %w", err)
	}
	if _, err := f.h.WriteAt(buf[:], off); err != nil {
		return fmt.Errorf("f.WriteAt(%d): %w", off, err)
	}

	return f.maybeSync()
}

// ReadHeaderAt decodes the header at off.  Fewer than HeaderSize bytes
// remaining in the file is ErrCorruptHeader.
func (f *File) ReadHeaderAt(off int64) (record.Header, error) {
	var h record.Header
	if err := f.checkOpen(); err != nil {
		return h, err
	}
	if off < DataStart {
		return h, fmt.Errorf("%w: header offset %d inside counter slot", record.ErrCorruptHeader, off)
	}
	if off+record.HeaderSize > f.size {
		return h, fmt.Errorf("%w: off %d + %d beyond bounds (%d)", record.ErrCorruptHeader, off, record.HeaderSize, f.size)
	}

	var buf [record.HeaderSize]byte
	if n, err := f.h.ReadAt(buf[:], off); err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return h, fmt.Errorf("f.ReadAt(%d): %w", off, err)
	}
	if err := h.UnmarshalBytes(buf[:]); err != nil {
		return h, fmt.Errorf("off %d: %w", off, err)
	}
	if off+h.RecordLen() > f.size {
		return h, fmt.Errorf("%w: off %d payload of %d bytes beyond bounds (%d)", record.ErrCorruptHeader, off, h.PayloadSize, f.size)
	}

	return h, nil
}

// ReadPayload reads the payload belonging to the header h found at off.
func (f *File) ReadPayload(off int64, h record.Header) ([]byte, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	if off+h.RecordLen() > f.size {
		return nil, fmt.Errorf("%w: off %d payload of %d bytes beyond bounds (%d)", record.ErrCorruptHeader, off, h.PayloadSize, f.size)
	}

	payload := make([]byte, h.PayloadSize)
	if len(payload) == 0 {
		return payload, nil
	}
	if n, err := f.h.ReadAt(payload, off+record.HeaderSize); err != nil && !(errors.Is(err, io.EOF) && n == len(payload)) {
		return nil, fmt.Errorf("f.ReadAt(%d, len: %d): %w", off+record.HeaderSize, len(payload), err)
	}

	return payload, nil
}

func (f *File) Sync() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if err := f.h.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	return nil
}

// Close releases the underlying handle.  Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	return f.h.Close()
}
