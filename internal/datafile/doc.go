// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package datafile owns the append-only store file: the live-record
// counter, record appends, in-place header rewrites and the walk that
// resolves a logical id to its current record.
//
// A store file looks like:
//
//	┌───────────────────┐
//	│ live count (u32)  │
//	├───────────────────┤
//	│ header | payload  │
//	├───────────────────┤
//	│ header | payload  │
//	├───────────────────┤
//	│ ...               │
//	└───────────────────┘
//
// Records are only ever appended.  After an append, the only bytes that
// change are header words (status and forward offset), rewritten in
// place.  Updating a record appends its replacement and points the old
// header at it, so every id forms a singly-linked chain running strictly
// forward through the file:
//
//	off 4:   [superseded id=1 fwd=38] "a"
//	off 21:  [active     id=2 fwd=0 ] "b"
//	off 38:  [active     id=1 fwd=0 ] "aa"
//
// Offsets are 32 bits wide, so a store file is limited to 4 GiB.
package datafile
