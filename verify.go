// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crudfile

import (
	"errors"
	"fmt"

	"github.com/bpowers/crudfile/internal/record"
)

// Stats summarizes the contents of a store.
type Stats struct {
	Records    int
	Active     int
	Deleted    int
	Superseded int
	// IDs is the number of distinct logical ids ever written.
	IDs int
	// Live is the value of the store's live-record counter.
	Live uint32
	// FileBytes is the size of the store file and PayloadBytes the part
	// of it taken up by payloads, live or not.
	FileBytes    int64
	PayloadBytes int64
	// LongestChain is the largest number of superseded versions any id
	// has.
	LongestChain int
}

type idState struct {
	first     int64
	terminals int
	chain     int
}

// Verify scans the whole store and checks that every update chain is
// well formed: each superseded record points forward to a record of the
// same id that nothing else points to, each id ends in exactly one active
// or deleted record, and the live counter and index agree with the
// records on disk.  Problems are reported as ErrInconsistent; a record
// that can't be decoded at all is ErrCorruptHeader.
func (db *DB) Verify() (Stats, error) {
	var stats Stats
	if err := db.checkOpen(); err != nil {
		return stats, err
	}

	var problems []error
	ids := make(map[uint32]*idState)
	// forward targets not reached yet, and the id expected there
	pending := make(map[int64]uint32)

	it := db.data.HeaderIter()
	for item, ok := it.Next(); ok; item, ok = it.Next() {
		h, off := item.Header, item.Offset
		stats.Records++
		stats.PayloadBytes += int64(h.PayloadSize)

		if want, ok := pending[off]; ok {
			delete(pending, off)
			if want != h.ID {
				problems = append(problems, fmt.Errorf("off %d: id %d, but pointed to by a record for id %d", off, h.ID, want))
			}
		}

		st := ids[h.ID]
		if st == nil {
			st = &idState{first: off}
			ids[h.ID] = st
		}

		switch h.Status {
		case record.Superseded:
			stats.Superseded++
			st.chain++
			fwd := int64(h.Forward)
			if fwd <= off {
				problems = append(problems, fmt.Errorf("off %d: id %d forward offset %d doesn't point forward", off, h.ID, fwd))
			} else if prev, dup := pending[fwd]; dup {
				problems = append(problems, fmt.Errorf("off %d: id %d forward offset %d already claimed by id %d", off, h.ID, fwd, prev))
			} else {
				pending[fwd] = h.ID
			}
		case record.Active:
			stats.Active++
			st.terminals++
		case record.Deleted:
			stats.Deleted++
			st.terminals++
		}
		if h.Status != record.Superseded && h.Forward != 0 {
			problems = append(problems, fmt.Errorf("off %d: %s record for id %d has forward offset %d", off, h.Status, h.ID, h.Forward))
		}
	}
	if err := it.Err(); err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}

	for fwd, id := range pending {
		problems = append(problems, fmt.Errorf("id %d: forward offset %d is not a record header", id, fwd))
	}

	for id, st := range ids {
		if st.terminals != 1 {
			problems = append(problems, fmt.Errorf("id %d: %d current versions", id, st.terminals))
		}
		if st.chain > stats.LongestChain {
			stats.LongestChain = st.chain
		}
		if db.idx != nil {
			if off, ok := db.idx.Lookup(id); !ok {
				problems = append(problems, fmt.Errorf("id %d: missing from index", id))
			} else if off != st.first {
				problems = append(problems, fmt.Errorf("id %d: index has offset %d, created at %d", id, off, st.first))
			}
		}
	}
	if db.idx != nil && db.idx.Len() != len(ids) {
		problems = append(problems, fmt.Errorf("index has %d ids, store has %d", db.idx.Len(), len(ids)))
	}

	stats.IDs = len(ids)
	stats.FileBytes = db.data.Size()
	live, err := db.data.Count()
	if err != nil {
		return stats, fmt.Errorf("data.Count: %w", err)
	}
	stats.Live = live
	if int(live) != stats.Active {
		problems = append(problems, fmt.Errorf("live counter is %d, store has %d active records", live, stats.Active))
	}

	if len(problems) > 0 {
		db.logger.Warn("store failed verification", "path", db.path, "problems", len(problems))
		return stats, fmt.Errorf("%w: %w", ErrInconsistent, errors.Join(problems...))
	}
	return stats, nil
}
