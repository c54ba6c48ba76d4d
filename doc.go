// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package crudfile is a small single-file record store for embedding in
// one process.  Records are variable-length byte payloads addressed by a
// logical id handed out when the record is first written.
//
// Writes and updates only ever append to the store file: an update
// appends the new value and marks the old one as superseded with a
// pointer to its replacement, and a delete marks the record in place.
// Reads follow that chain of pointers to the current value.
//
// An optional position index, kept in a second file, remembers where
// each id was created so reads can start their walk there instead of at
// the beginning of the store.
//
// # Basic Usage
//
//	db, err := crudfile.Open("test.db", crudfile.WithIndex("test.index"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	id, err := db.WriteString("a")
//	prev, err := db.UpdateString(id, "aa") // prev == "a"
//	cur, err := db.ReadString(id)          // cur == "aa"
//
// # Concurrency
//
// A DB is not safe for concurrent use.  Open takes an advisory lock on a
// "<path>.lock" file, so a second process (or a second Open in the same
// process) fails with ErrLocked until the first DB is closed.
//
// Superseded and deleted records are never reclaimed; the store file only
// grows, up to the 4 GiB reachable with 32-bit offsets.
package crudfile
