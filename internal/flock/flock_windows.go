// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build windows

package flock

import (
	"errors"
	"fmt"
	"os"
)

// Acquire atomically creates the lock file for storePath.  If it already
// exists, the store is assumed to be in use.
func Acquire(storePath string) (*Lock, error) {
	path := Path(storePath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}

	return &Lock{f: f}, nil
}

// Unlock closes and removes the lock file.  Call it exactly once per
// successful Acquire.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil

	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
