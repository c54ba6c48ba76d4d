// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crudfile

import (
	"fmt"

	"github.com/bpowers/crudfile/internal/datafile"
	"github.com/bpowers/crudfile/internal/record"
)

// Write appends payload as a new record and returns its id.  Ids start at
// 1 and are never reused, even after the record is deleted.
func (db *DB) Write(payload []byte) (id uint32, err error) {
	defer func() { db.observeOp(opWrite, err) }()
	if err := db.checkOpen(); err != nil {
		return 0, err
	}

	id, err = db.data.AllocID()
	if err != nil {
		return 0, err
	}
	off, err := db.data.Append(payload, id, record.Active)
	if err != nil {
		db.data.ResetNextID(id - 1)
		return 0, fmt.Errorf("data.Append: %w", err)
	}
	db.observeAppend(len(payload))

	// the record is on disk from here on: a failure below leaves the
	// live count or the index behind, which Verify reports
	if err := db.adjustCount(1); err != nil {
		return 0, err
	}
	if db.idx != nil {
		if err := db.idx.Record(id, off); err != nil {
			return 0, fmt.Errorf("idx.Record: %w", err)
		}
	}

	return id, nil
}

func (db *DB) adjustCount(delta int) error {
	n, err := db.data.Count()
	if err != nil {
		return fmt.Errorf("data.Count: %w", err)
	}
	switch {
	case delta < 0 && n == 0:
		db.logger.Warn("live count already zero", "path", db.path)
	case delta < 0:
		n--
	default:
		n++
	}
	if err := db.data.SetCount(n); err != nil {
		return fmt.Errorf("data.SetCount: %w", err)
	}
	db.observeLive(n)
	return nil
}

// resolve finds the current, non-deleted version of id.
func (db *DB) resolve(id uint32) (datafile.Resolved, error) {
	start := datafile.DataStart
	if db.idx != nil {
		off, ok := db.idx.Lookup(id)
		if !ok {
			return datafile.Resolved{}, fmt.Errorf("id %d: %w", id, ErrNotFound)
		}
		start = off
	}

	res, err := db.data.Resolve(id, start)
	if err != nil {
		return res, err
	}
	db.observeResolve(res.Hops, res.Visited)

	if res.Header.Status == record.Deleted {
		return res, fmt.Errorf("id %d deleted: %w", id, ErrNotFound)
	}
	return res, nil
}

// Read returns the current payload for id.
func (db *DB) Read(id uint32) (payload []byte, err error) {
	defer func() { db.observeOp(opRead, err) }()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	res, err := db.resolve(id)
	if err != nil {
		return nil, err
	}
	return db.data.ReadPayload(res.Offset, res.Header)
}

// Update replaces the payload for id and returns the one it replaced.
// The new version is appended before the old one is marked superseded,
// so an interrupted update leaves the old version current.
func (db *DB) Update(id uint32, payload []byte) (prev []byte, err error) {
	defer func() { db.observeOp(opUpdate, err) }()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	res, err := db.resolve(id)
	if err != nil {
		return nil, err
	}
	if prev, err = db.data.ReadPayload(res.Offset, res.Header); err != nil {
		return nil, err
	}

	off, err := db.data.Append(payload, id, record.Active)
	if err != nil {
		return nil, fmt.Errorf("data.Append: %w", err)
	}
	db.observeAppend(len(payload))

	old := res.Header
	old.Status = record.Superseded
	old.Forward = uint32(off)
	if err := db.data.RewriteHeaderAt(res.Offset, old); err != nil {
		return nil, fmt.Errorf("data.RewriteHeaderAt(%d): %w", res.Offset, err)
	}

	return prev, nil
}

// Delete marks the current version of id deleted and returns its
// payload.  The space isn't reclaimed.
func (db *DB) Delete(id uint32) (prev []byte, err error) {
	defer func() { db.observeOp(opDelete, err) }()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	res, err := db.resolve(id)
	if err != nil {
		return nil, err
	}
	if prev, err = db.data.ReadPayload(res.Offset, res.Header); err != nil {
		return nil, err
	}

	tomb := res.Header
	tomb.Status = record.Deleted
	tomb.Forward = 0
	if err := db.data.RewriteHeaderAt(res.Offset, tomb); err != nil {
		return nil, fmt.Errorf("data.RewriteHeaderAt(%d): %w", res.Offset, err)
	}
	if err := db.adjustCount(-1); err != nil {
		return nil, err
	}

	return prev, nil
}

// Size is the number of live records: those written and not since
// deleted.
func (db *DB) Size() (uint32, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	return db.data.Count()
}

// Item is a live record.
type Item struct {
	ID      uint32
	Payload []byte
}

// Iter walks the live records in the order they were last written.
type Iter struct {
	it  *datafile.Iter
	err error
}

// Iter starts a scan of the live records.  The DB must not be modified
// while the scan is in progress.
func (db *DB) Iter() *Iter {
	if err := db.checkOpen(); err != nil {
		return &Iter{err: err}
	}
	return &Iter{it: db.data.Iter()}
}

// Next returns the next live record.  When it returns false, check Err.
func (it *Iter) Next() (Item, bool) {
	if it.it == nil {
		return Item{}, false
	}
	for item, ok := it.it.Next(); ok; item, ok = it.it.Next() {
		if item.Header.Status != record.Active {
			continue
		}
		return Item{ID: item.Header.ID, Payload: item.Payload}, true
	}
	return Item{}, false
}

func (it *Iter) Err() error {
	if it.err != nil {
		return it.err
	}
	if it.it != nil {
		return it.it.Err()
	}
	return nil
}

// ReadAll returns every live record.
func (db *DB) ReadAll() ([]Item, error) {
	var items []Item
	it := db.Iter()
	for item, ok := it.Next(); ok; item, ok = it.Next() {
		items = append(items, item)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return items, nil
}
