// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crudfile

import (
	"errors"

	"github.com/bpowers/crudfile/internal/datafile"
	"github.com/bpowers/crudfile/internal/flock"
	"github.com/bpowers/crudfile/internal/record"
)

var (
	// ErrNotFound is returned for ids that were never written or whose
	// current version has been deleted.
	ErrNotFound = datafile.ErrNotFound
	// ErrCorruptHeader is returned when a record header can't be decoded,
	// or points somewhere it can't.  Scanning can't safely continue past it.
	ErrCorruptHeader = record.ErrCorruptHeader
	ErrLocked        = flock.ErrLocked
	ErrTooLarge      = datafile.ErrTooLarge
	ErrClosed        = datafile.ErrClosed
	// ErrNotText is returned by the string helpers for payloads that
	// aren't valid UTF-8.
	ErrNotText = errors.New("crudfile: payload is not valid UTF-8")
	// ErrInconsistent is returned by Verify.
	ErrInconsistent = errors.New("crudfile: store is inconsistent")
)
