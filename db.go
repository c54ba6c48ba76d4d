// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crudfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bpowers/crudfile/internal/datafile"
	"github.com/bpowers/crudfile/internal/flock"
	"github.com/bpowers/crudfile/internal/index"
)

// Option configures a DB.
type Option func(*options)

type options struct {
	indexPath  string
	logger     *slog.Logger
	registerer prometheus.Registerer
	sync       bool
	noLock     bool
}

// WithIndex attaches a position index stored at path.  The index is
// created if it doesn't exist, and brought up to date with the store if
// records were written while it wasn't attached.
func WithIndex(path string) Option {
	return func(opts *options) {
		opts.indexPath = path
	}
}

// WithLogger sets an optional logger.  If not provided, no logging output
// will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithRegisterer registers the store's metrics with reg.  Every metric
// carries a "store" label with the base name of the store file, so several
// stores can share a registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(opts *options) {
		opts.registerer = reg
	}
}

// WithSyncWrites fsyncs the store (and index) after every mutation.
func WithSyncWrites() Option {
	return func(opts *options) {
		opts.sync = true
	}
}

// WithoutLock skips the advisory lock file.  The caller is responsible
// for making sure nothing else writes to the store.
func WithoutLock() Option {
	return func(opts *options) {
		opts.noLock = true
	}
}

// DB is an open store.  It is not safe for concurrent use.
type DB struct {
	path    string
	data    *datafile.File
	idx     *index.Index
	lock    *flock.Lock
	metrics *storeMetrics
	logger  *slog.Logger
	closed  atomic.Bool
}

// Open opens the store at path, creating it if it doesn't exist.
func Open(path string, opts ...Option) (_ *DB, err error) {
	var options options
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	db := &DB{
		path:   path,
		logger: options.logger,
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	if !options.noLock {
		if db.lock, err = flock.Acquire(path); err != nil {
			return nil, err
		}
	}

	dataOpts := []datafile.Option{datafile.WithLogger(options.logger)}
	if options.sync {
		dataOpts = append(dataOpts, datafile.WithSync())
	}
	if db.data, err = datafile.Open(path, dataOpts...); err != nil {
		return nil, fmt.Errorf("datafile.Open: %w", err)
	}

	if options.indexPath != "" {
		if err := db.attachIndex(options); err != nil {
			return nil, err
		}
	} else {
		maxID, err := db.data.MaxID()
		if err != nil {
			return nil, fmt.Errorf("data.MaxID: %w", err)
		}
		db.data.ResetNextID(maxID)
	}

	if options.registerer != nil {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"store": filepath.Base(path)}, options.registerer)
		if db.metrics, err = newStoreMetrics(reg); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		if n, err := db.data.Count(); err == nil {
			db.metrics.live.Set(float64(n))
		}
	}

	db.logger.Debug("opened store", "path", path, "size", db.data.Size(), "next_id", db.data.NextID(), "indexed", db.idx != nil)

	return db, nil
}

func (db *DB) attachIndex(options options) (err error) {
	idxOpts := []index.Option{index.WithLogger(options.logger)}
	if options.sync {
		idxOpts = append(idxOpts, index.WithSync())
	}
	if db.idx, err = index.Open(options.indexPath, idxOpts...); err != nil {
		return fmt.Errorf("index.Open: %w", err)
	}

	added, err := db.idx.Rebuild(db.data.HeaderIterFrom(db.idx.LastOffset()))
	if err != nil {
		return fmt.Errorf("idx.Rebuild: %w", err)
	}
	if added > 0 {
		db.logger.Debug("caught up index", "added", added, "entries", db.idx.Len())
	}
	db.data.ResetNextID(db.idx.MaxID())

	return nil
}

// With opens the store at path, calls fn, and closes the store again no
// matter how fn returns.  An error from Close is only reported if fn
// succeeded.
func With(path string, fn func(db *DB) error, opts ...Option) (err error) {
	db, err := Open(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); err == nil {
			err = closeErr
		}
	}()

	return fn(db)
}

// Path is the location of the store file.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) checkOpen() error {
	if db.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Sync flushes the store file to stable storage.  It is only needed
// without WithSyncWrites.
func (db *DB) Sync() error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.data.Sync()
}

// Close releases the index, the store file and the lock, in that order.
// Closing twice is a no-op.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}

	var errs []error
	if db.idx != nil {
		if err := db.idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("idx.Close: %w", err))
		}
	}
	if db.data != nil {
		if err := db.data.Close(); err != nil {
			errs = append(errs, fmt.Errorf("data.Close: %w", err))
		}
	}
	if db.lock != nil {
		if err := db.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("lock.Unlock: %w", err))
		}
	}
	if db.metrics != nil {
		db.metrics.unregister()
	}

	return errors.Join(errs...)
}
