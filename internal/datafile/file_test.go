// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/crudfile/internal/record"
)

type memHandle struct {
	mu         sync.Mutex
	buf        []byte
	failWrites bool
	syncs      int
	closes     int
}

func (m *memHandle) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memHandle) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites {
		return 0, errors.New("write failed")
	}
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}

func (m *memHandle) Sync() error {
	m.syncs++
	return nil
}

func (m *memHandle) Close() error {
	m.closes++
	return nil
}

var _ Handle = &memHandle{}

func newMemFile(t *testing.T, opts ...Option) (*File, *memHandle) {
	t.Helper()
	h := &memHandle{}
	f, err := NewFile(h, 0, opts...)
	require.NoError(t, err)
	return f, h
}

func TestOpen_InitializesCounter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, DataStart, f.Size())

	n, err := f.Count()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n)
	require.NoError(t, f.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, contents)

	// reopening an existing file leaves it alone
	f, err = Open(path)
	require.NoError(t, err)
	assert.Equal(t, DataStart, f.Size())
	require.NoError(t, f.Close())
}

func TestOpen_TooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.db")
	require.NoError(t, os.WriteFile(path, []byte{1, 2}, 0644))

	_, err := Open(path)
	require.ErrorIs(t, err, record.ErrCorruptHeader)
}

func TestOpen_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "test.db")

	_, err := Open(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_Count(t *testing.T) {
	f, h := newMemFile(t)

	require.NoError(t, f.SetCount(12345))
	n, err := f.Count()
	require.NoError(t, err)
	assert.Equal(t, uint32(12345), n)
	assert.Equal(t, uint32(12345), binary.LittleEndian.Uint32(h.buf[:4]))
}

func TestFile_Append(t *testing.T) {
	f, h := newMemFile(t)

	off1, err := f.Append([]byte("hello"), 1, record.Active)
	require.NoError(t, err)
	assert.Equal(t, DataStart, off1)

	off2, err := f.Append(nil, 2, record.Active)
	require.NoError(t, err)
	assert.Equal(t, DataStart+record.HeaderSize+5, off2)

	off3, err := f.Append([]byte("x"), 3, record.Deleted)
	require.NoError(t, err)
	assert.Equal(t, off2+record.HeaderSize, off3)
	assert.Equal(t, int64(len(h.buf)), f.Size())

	// the counter slot isn't touched by appends
	n, err := f.Count()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n)

	hdr, err := f.ReadHeaderAt(off1)
	require.NoError(t, err)
	assert.Equal(t, record.Header{Status: record.Active, ID: 1, PayloadSize: 5}, hdr)
	payload, err := f.ReadPayload(off1, hdr)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)

	hdr, err = f.ReadHeaderAt(off2)
	require.NoError(t, err)
	payload, err = f.ReadPayload(off2, hdr)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestFile_AppendWriteError(t *testing.T) {
	f, h := newMemFile(t)
	h.failWrites = true

	_, err := f.Append([]byte("hello"), 1, record.Active)
	require.Error(t, err)
	assert.Equal(t, DataStart, f.Size())

	err = f.SetCount(1)
	require.Error(t, err)
}

func TestFile_AppendTooLarge(t *testing.T) {
	h := &memHandle{buf: make([]byte, countSlotSize)}
	f, err := NewFile(h, maxOffset-record.HeaderSize)
	require.NoError(t, err)

	_, err = f.Append([]byte("x"), 1, record.Active)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFile_RewriteHeaderAt(t *testing.T) {
	f, _ := newMemFile(t)

	off, err := f.Append([]byte("abc"), 9, record.Active)
	require.NoError(t, err)

	err = f.RewriteHeaderAt(off, record.Header{Status: record.Deleted, ID: 9, PayloadSize: 3})
	require.NoError(t, err)

	hdr, err := f.ReadHeaderAt(off)
	require.NoError(t, err)
	assert.Equal(t, record.Deleted, hdr.Status)

	// payload is untouched
	payload, err := f.ReadPayload(off, hdr)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), payload)

	// a rewrite claiming a longer payload than what's on disk is refused
	err = f.RewriteHeaderAt(off, record.Header{Status: record.Deleted, ID: 9, PayloadSize: 300})
	require.ErrorIs(t, err, record.ErrCorruptHeader)

	err = f.RewriteHeaderAt(0, record.Header{})
	require.ErrorIs(t, err, record.ErrCorruptHeader)
}

func TestFile_WithSync(t *testing.T) {
	f, h := newMemFile(t, WithSync())
	syncs := h.syncs

	_, err := f.Append([]byte("abc"), 1, record.Active)
	require.NoError(t, err)
	require.NoError(t, f.SetCount(1))
	assert.Equal(t, syncs+2, h.syncs)
}

func TestFile_AllocID(t *testing.T) {
	f, _ := newMemFile(t)
	assert.Equal(t, uint32(1), f.NextID())

	for want := uint32(1); want <= 3; want++ {
		id, err := f.AllocID()
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	f.ResetNextID(41)
	id, err := f.AllocID()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)

	f.ResetNextID(^uint32(0) - 1)
	_, err = f.AllocID()
	require.NoError(t, err)
	_, err = f.AllocID()
	require.Error(t, err)
}

func TestFile_Close(t *testing.T) {
	f, h := newMemFile(t)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, 1, h.closes)

	_, err := f.Count()
	require.ErrorIs(t, err, ErrClosed)
	_, err = f.Append([]byte("a"), 1, record.Active)
	require.ErrorIs(t, err, ErrClosed)
	_, err = f.Resolve(1, DataStart)
	require.ErrorIs(t, err, ErrClosed)
}
