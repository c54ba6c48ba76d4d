// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crudfile

import (
	"fmt"
	"unicode/utf8"

	"github.com/bpowers/crudfile/internal/unsafestring"
)

// The string helpers store text as its UTF-8 bytes.  Payloads written
// through the []byte API that aren't valid UTF-8 come back as ErrNotText.

func decodeText(id uint32, payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("id %d: %w", id, ErrNotText)
	}
	return string(payload), nil
}

// WriteString is Write for text payloads.
func (db *DB) WriteString(s string) (uint32, error) {
	// Append copies the payload before returning, so the aliased bytes
	// are never retained or modified.
	return db.Write(unsafestring.ToBytes(s))
}

// ReadString is Read for text payloads.
func (db *DB) ReadString(id uint32) (string, error) {
	payload, err := db.Read(id)
	if err != nil {
		return "", err
	}
	return decodeText(id, payload)
}

// UpdateString is Update for text payloads.  If the previous payload
// isn't valid UTF-8 the update still happens, and ErrNotText is returned.
func (db *DB) UpdateString(id uint32, s string) (string, error) {
	prev, err := db.Update(id, unsafestring.ToBytes(s))
	if err != nil {
		return "", err
	}
	return decodeText(id, prev)
}

// DeleteString is Delete for text payloads.  If the deleted payload isn't
// valid UTF-8 the delete still happens, and ErrNotText is returned.
func (db *DB) DeleteString(id uint32) (string, error) {
	prev, err := db.Delete(id)
	if err != nil {
		return "", err
	}
	return decodeText(id, prev)
}

// ReadAllStrings returns the payload of every live record, in the order
// ReadAll does.
func (db *DB) ReadAllStrings() ([]string, error) {
	items, err := db.ReadAll()
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(items))
	for _, item := range items {
		s, err := decodeText(item.ID, item.Payload)
		if err != nil {
			return nil, err
		}
		texts = append(texts, s)
	}
	return texts, nil
}
