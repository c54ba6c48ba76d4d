// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package index maintains the position index: an append-only file of
// (logical id, offset) pairs recording where each id was first written
// in the store file.  The whole file is replayed into memory at open,
// and lookups give Resolve a starting point that skips the scan from the
// beginning of the store.
//
//	 0    4    8    12   16   20
//	+----+----+----+----+----+---
//	|rsvd| id | off| id | off| ...
//	+----+----+----+----+----+---
//
// Entries are added once per created id and never removed, so a deleted
// id is still found at its original offset.
package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bpowers/crudfile/internal/datafile"
)

const (
	reservedSlotSize  = 4
	entrySize         = 4 + 4 // 32-bit logical id + 32-bit offset into the store file
	defaultBufferSize = 64 * 1024
)

var ErrClosed = errors.New("index file is closed")

// Option configures an Index.
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

// WithSync makes every Record call fsync the index file before returning.
func WithSync() Option {
	return func(opts *options) {
		opts.sync = true
	}
}

type Index struct {
	h       datafile.Handle
	size    int64
	offsets map[uint32]uint32
	maxID   uint32
	lastOff uint32
	logger  *slog.Logger
	sync    bool
	closed  atomic.Bool
}

// Open opens or creates the index file at path and loads every entry.
func Open(path string, opts ...Option) (_ *Index, err error) {
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

	return New(f, stats.Size(), opts...)
}

// New loads an index from an already-open handle of the given length.
func New(h datafile.Handle, size int64, opts ...Option) (*Index, error) {
	var options options
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	idx := &Index{
		h:       h,
		offsets: make(map[uint32]uint32),
		logger:  options.logger,
		sync:    options.sync,
	}

	if size < reservedSlotSize {
		idx.logger.Debug("initializing empty index file")
		var zero [reservedSlotSize]byte
		if _, err := h.WriteAt(zero[:], 0); err != nil {
			return nil, fmt.Errorf("f.WriteAt: %w", err)
		}
		idx.size = reservedSlotSize
		return idx, nil
	}

	if err := idx.load(size); err != nil {
		return nil, err
	}

	return idx, nil
}

func (idx *Index) load(size int64) error {
	n := (size - reservedSlotSize) / entrySize
	if torn := (size - reservedSlotSize) % entrySize; torn != 0 {
		// a partially written trailing entry gets overwritten by the
		// next Record call
		idx.logger.Warn("ignoring torn index entry", "bytes", torn)
	}

	r := bufio.NewReaderSize(io.NewSectionReader(idx.h, reservedSlotSize, n*entrySize), defaultBufferSize)
	var buf [entrySize]byte
	for i := int64(0); i < n; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return fmt.Errorf("io.ReadFull(entry %d): %w", i, err)
		}
		idx.add(binary.LittleEndian.Uint32(buf[:4]), binary.LittleEndian.Uint32(buf[4:]))
	}
	idx.size = reservedSlotSize + n*entrySize

	idx.logger.Debug("loaded index", "entries", len(idx.offsets))
	return nil
}

// add keeps the first offset seen for id.
func (idx *Index) add(id, off uint32) {
	if _, ok := idx.offsets[id]; ok {
		return
	}
	idx.offsets[id] = off
	if id > idx.maxID {
		idx.maxID = id
	}
	if off > idx.lastOff {
		idx.lastOff = off
	}
}

// Record appends an entry for a newly created id.
func (idx *Index) Record(id uint32, off int64) error {
	if idx.closed.Load() {
		return ErrClosed
	}
	if off < datafile.DataStart || off > int64(^uint32(0)) {
		return fmt.Errorf("offset %d out of range for id %d", off, id)
	}

	var buf [entrySize]byte
	binary.LittleEndian.PutUint32(buf[:4], id)
	binary.LittleEndian.PutUint32(buf[4:], uint32(off))
	if _, err := idx.h.WriteAt(buf[:], idx.size); err != nil {
		return fmt.Errorf("f.WriteAt(%d): %w", idx.size, err)
	}
	idx.size += entrySize
	idx.add(id, uint32(off))

	if idx.sync {
		if err := idx.h.Sync(); err != nil {
			return fmt.Errorf("f.Sync: %w", err)
		}
	}
	return nil
}

// Lookup returns the offset of the first header ever written for id.
func (idx *Index) Lookup(id uint32) (off int64, ok bool) {
	o, ok := idx.offsets[id]
	return int64(o), ok
}

// Len is the number of distinct ids in the index.
func (idx *Index) Len() int {
	return len(idx.offsets)
}

// MaxID is the largest id in the index, or 0 if it is empty.
func (idx *Index) MaxID() uint32 {
	return idx.maxID
}

// LastOffset is the largest offset in the index: every id created after
// the last Record call lives at or beyond it.  It is
// datafile.DataStart for an empty index.
func (idx *Index) LastOffset() int64 {
	if idx.lastOff == 0 {
		return datafile.DataStart
	}
	return int64(idx.lastOff)
}

// Rebuild records the creation offset of every id in it that the index
// doesn't know about yet.  Records are appended in physical order, so the
// first header seen for an id is the one written when it was created.
// Scanning from LastOffset catches an index up with a store that was
// written to without it.
func (idx *Index) Rebuild(it *datafile.Iter) (added int, err error) {
	for item, ok := it.Next(); ok; item, ok = it.Next() {
		if _, known := idx.offsets[item.Header.ID]; known {
			continue
		}
		if err := idx.Record(item.Header.ID, item.Offset); err != nil {
			return added, err
		}
		added++
	}
	if err := it.Err(); err != nil {
		return added, fmt.Errorf("scan: %w", err)
	}
	return added, nil
}

// Close releases the underlying handle.  Closing twice is a no-op.
func (idx *Index) Close() error {
	if idx.closed.Swap(true) {
		return nil
	}
	return idx.h.Close()
}
