// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build unix || windows

package flock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquire(t *testing.T) {
	t.Run("second acquire fails while the lock is held", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")

		l, err := Acquire(path)
		require.NoError(t, err)

		_, err = Acquire(path)
		require.ErrorIs(t, err, ErrLocked)

		require.NoError(t, l.Unlock())
	})

	t.Run("acquire succeeds after unlock", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")

		l, err := Acquire(path)
		require.NoError(t, err)
		require.NoError(t, l.Unlock())
		// unlocking twice is harmless
		require.NoError(t, l.Unlock())

		l, err = Acquire(path)
		require.NoError(t, err)
		require.NoError(t, l.Unlock())
	})
}
