// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crudfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/crudfile/internal/record"
)

// writeABC leaves the store holding, at offsets 4, 21, 38 and 55:
//
//	id 1 "a" superseded -> 55
//	id 2 "b" active
//	id 3 "c" active
//	id 1 "x" active
func writeABC(t *testing.T, db *DB) {
	t.Helper()
	for _, s := range []string{"a", "b", "c"} {
		_, err := db.WriteString(s)
		require.NoError(t, err)
	}
	_, err := db.UpdateString(1, "x")
	require.NoError(t, err)
}

func TestVerify(t *testing.T) {
	for _, cfg := range storeConfigs {
		t.Run(cfg.name, func(t *testing.T) {
			db := openTestDB(t, t.TempDir(), cfg.indexed)

			stats, err := db.Verify()
			require.NoError(t, err)
			assert.Equal(t, Stats{FileBytes: 4}, stats)

			writeABC(t, db)
			_, err = db.DeleteString(2)
			require.NoError(t, err)

			stats, err = db.Verify()
			require.NoError(t, err)
			assert.Equal(t, Stats{
				Records:      4,
				Active:       2,
				Deleted:      1,
				Superseded:   1,
				IDs:          3,
				Live:         2,
				FileBytes:    4 + 4*17,
				PayloadBytes: 4,
				LongestChain: 1,
			}, stats)
		})
	}
}

func TestVerify_StolenForward(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir, false)
	writeABC(t, db)

	// id 2 now claims id 1's replacement too
	patchFile(t, db.Path(), 21, encodeHeader(t, record.Header{
		Status:      record.Superseded,
		ID:          2,
		Forward:     55,
		PayloadSize: 1,
	}))

	_, err := db.Verify()
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "already claimed")
	assert.Contains(t, err.Error(), "id 2: 0 current versions")
}

func TestVerify_ForwardToOtherID(t *testing.T) {
	db := openTestDB(t, t.TempDir(), false)
	writeABC(t, db)

	patchFile(t, db.Path(), 4, encodeHeader(t, record.Header{
		Status:      record.Superseded,
		ID:          1,
		Forward:     38,
		PayloadSize: 1,
	}))

	_, err := db.Verify()
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "off 38: id 3, but pointed to by a record for id 1")
}

func TestVerify_ForwardIntoPayload(t *testing.T) {
	db := openTestDB(t, t.TempDir(), false)
	writeABC(t, db)

	patchFile(t, db.Path(), 4, encodeHeader(t, record.Header{
		Status:      record.Superseded,
		ID:          1,
		Forward:     40,
		PayloadSize: 1,
	}))

	_, err := db.Verify()
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "not a record header")
}

func TestVerify_StrayForward(t *testing.T) {
	db := openTestDB(t, t.TempDir(), false)
	writeABC(t, db)

	patchFile(t, db.Path(), 21, encodeHeader(t, record.Header{
		Status:      record.Active,
		ID:          2,
		Forward:     38,
		PayloadSize: 1,
	}))

	_, err := db.Verify()
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "has forward offset 38")
}

func TestVerify_Counter(t *testing.T) {
	db := openTestDB(t, t.TempDir(), false)
	writeABC(t, db)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 7)
	patchFile(t, db.Path(), 0, buf[:])

	n, err := db.Size()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), n)

	stats, err := db.Verify()
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Equal(t, uint32(7), stats.Live)
	assert.Equal(t, 3, stats.Active)
}

func TestVerify_StaleIndex(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir, true)
	writeABC(t, db)

	// an entry for an id the store never created
	require.NoError(t, db.idx.Record(9, 38))

	_, err := db.Verify()
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "index has 4 ids, store has 3")
}

func TestVerify_CorruptHeader(t *testing.T) {
	for _, cfg := range storeConfigs {
		t.Run(cfg.name, func(t *testing.T) {
			db := openTestDB(t, t.TempDir(), cfg.indexed)
			writeABC(t, db)

			var status [4]byte
			binary.LittleEndian.PutUint32(status[:], 9)
			patchFile(t, db.Path(), 21, status[:])

			_, err := db.Verify()
			require.ErrorIs(t, err, ErrCorruptHeader)

			_, err = db.Read(2)
			require.ErrorIs(t, err, ErrCorruptHeader)
		})
	}
}
