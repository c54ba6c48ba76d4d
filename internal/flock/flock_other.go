// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build !unix && !windows

package flock

// Acquire is a no-op on platforms without file locking.
func Acquire(storePath string) (*Lock, error) {
	return &Lock{}, nil
}

func (l *Lock) Unlock() error {
	return nil
}
