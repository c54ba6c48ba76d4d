// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package flock guards a store against being opened by more than one
// process at a time with an advisory lock file next to it.
package flock

import (
	"errors"
	"os"
)

// ErrLocked is returned when another handle already holds the lock.
var ErrLocked = errors.New("store is locked by another process")

// Lock is a held lock.  It must be released with Unlock.
type Lock struct {
	f *os.File
}

// Path returns the lock file path used for the store at storePath.
func Path(storePath string) string {
	return storePath + ".lock"
}
