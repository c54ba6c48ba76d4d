// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"fmt"

	"github.com/bpowers/crudfile/internal/record"
)

// Resolved is the terminal record of an id's chain.
type Resolved struct {
	Header record.Header
	// Offset of Header in the file.
	Offset int64
	// Hops is the number of superseded records followed.
	Hops int
	// Visited is the number of headers decoded along the way.
	Visited int
}

// Resolve finds the current record for id, starting the walk at start
// (DataStart when there is no better hint).  Headers for other ids are
// skipped over; a superseded header for id is followed to its
// replacement.  The terminal record may be Active or Deleted.
func (f *File) Resolve(id uint32, start int64) (Resolved, error) {
	var res Resolved
	if err := f.checkOpen(); err != nil {
		return res, err
	}
	if start < DataStart {
		start = DataStart
	}

	for off := start; off < f.size; {
		h, err := f.ReadHeaderAt(off)
		if err != nil {
			return res, err
		}
		res.Visited++

		if h.ID != id {
			off += h.RecordLen()
			continue
		}

		if h.Status == record.Superseded {
			next := int64(h.Forward)
			// forward pointers are written to point at end-of-file, so
			// they always lead strictly further into the file
			if next <= off || next >= f.size {
				return res, fmt.Errorf("%w: id %d at off %d has forward offset %d (file size %d)", record.ErrCorruptHeader, id, off, next, f.size)
			}
			res.Hops++
			off = next
			continue
		}

		res.Header = h
		res.Offset = off
		return res, nil
	}

	return res, fmt.Errorf("id %d: %w", id, ErrNotFound)
}

// Item is a single record yielded by an Iter.
type Item struct {
	Header record.Header
	Offset int64
	// Payload is nil for iterators created with HeaderIter.
	Payload []byte
}

// Iter walks every record in physical order.  Each call to File.Iter
// starts a fresh scan from the beginning of the file.
type Iter struct {
	f            *File
	off          int64
	withPayloads bool
	err          error
}

// Iter returns an iterator over every record, payloads included.
func (f *File) Iter() *Iter {
	return &Iter{f: f, off: DataStart, withPayloads: true}
}

// HeaderIter returns an iterator that decodes headers only.
func (f *File) HeaderIter() *Iter {
	return f.HeaderIterFrom(DataStart)
}

// HeaderIterFrom is HeaderIter starting at off, which must be the offset
// of a header.
func (f *File) HeaderIterFrom(off int64) *Iter {
	if off < DataStart {
		off = DataStart
	}
	return &Iter{f: f, off: off}
}

// Next returns the next record.  When it returns false, check Err.
func (it *Iter) Next() (Item, bool) {
	if it.err != nil || it.off >= it.f.size {
		return Item{}, false
	}

	h, err := it.f.ReadHeaderAt(it.off)
	if err != nil {
		it.err = err
		return Item{}, false
	}

	item := Item{
		Header: h,
		Offset: it.off,
	}
	if it.withPayloads {
		if item.Payload, err = it.f.ReadPayload(it.off, h); err != nil {
			it.err = err
			return Item{}, false
		}
	}

	it.off += h.RecordLen()

	return item, true
}

func (it *Iter) Err() error {
	return it.err
}

// MaxID scans the file and returns the largest logical id present, or 0
// for an empty store.
func (f *File) MaxID() (uint32, error) {
	var maxID uint32
	it := f.HeaderIter()
	for item, ok := it.Next(); ok; item, ok = it.Next() {
		if item.Header.ID > maxID {
			maxID = item.Header.ID
		}
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("scan: %w", err)
	}
	return maxID, nil
}
