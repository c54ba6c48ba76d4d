// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// crudfile-bench fills a fresh store with random text records, reads
// them back at random, runs a few updates and deletes, and reports
// timings, file sizes and process memory.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/dgryski/go-farm"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bpowers/crudfile"
	"github.com/bpowers/crudfile/internal/flock"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randString(rng *rand.Rand, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = letters[rng.Intn(len(letters))]
	}
	return string(buf)
}

type bench struct {
	cfg    *Config
	rng    *rand.Rand
	logger *slog.Logger
	// fingerprints of the current payload of every live id
	prints map[uint32]uint64
}

func (b *bench) randPayload() string {
	return randString(b.rng, b.cfg.MinSize+b.rng.Intn(b.cfg.MaxSize-b.cfg.MinSize))
}

func (b *bench) check(id uint32, s string) error {
	want, ok := b.prints[id]
	if !ok {
		return fmt.Errorf("id %d: read a record that should be gone", id)
	}
	if got := farm.Hash64([]byte(s)); got != want {
		return fmt.Errorf("id %d: fingerprint %x, want %x", id, got, want)
	}
	return nil
}

func (b *bench) run(db *crudfile.DB) error {
	start := time.Now()
	for i := 0; i < b.cfg.Writes; i++ {
		s := b.randPayload()
		id, err := db.WriteString(s)
		if err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}
		b.prints[id] = farm.Hash64([]byte(s))
	}
	size, err := db.Size()
	if err != nil {
		return err
	}
	b.logger.Info("wrote records", "count", b.cfg.Writes, "elapsed", time.Since(start))

	start = time.Now()
	for i := 0; i < b.cfg.Reads; i++ {
		id := uint32(b.rng.Intn(int(size))) + 1
		s, err := db.ReadString(id)
		if err != nil {
			return fmt.Errorf("read %d: %w", id, err)
		}
		if err := b.check(id, s); err != nil {
			return err
		}
	}
	b.logger.Info("read records", "count", b.cfg.Reads, "elapsed", time.Since(start))

	s, err := db.ReadString(2)
	if err != nil {
		return fmt.Errorf("read 2: %w", err)
	}
	b.logger.Info("read", "id", 2, "len", len(s))

	prev, err := db.DeleteString(3)
	if err != nil {
		return fmt.Errorf("delete 3: %w", err)
	}
	delete(b.prints, 3)
	b.logger.Info("deleted", "id", 3, "len", len(prev))

	next := randString(b.rng, 85)
	if prev, err = db.UpdateString(2, next); err != nil {
		return fmt.Errorf("update 2: %w", err)
	}
	b.prints[2] = farm.Hash64([]byte(next))
	b.logger.Info("updated", "id", 2, "prev_len", len(prev), "len", len(next))

	if s, err = db.ReadString(size); err != nil {
		return fmt.Errorf("read %d: %w", size, err)
	}
	if err := b.check(size, s); err != nil {
		return err
	}
	b.logger.Info("read", "id", size, "len", len(s))

	if size, err = db.Size(); err != nil {
		return err
	}
	b.logger.Info("size", "live", size)

	// every surviving record still matches what was written
	it := db.Iter()
	var seen int
	for item, ok := it.Next(); ok; item, ok = it.Next() {
		if err := b.check(item.ID, string(item.Payload)); err != nil {
			return err
		}
		seen++
	}
	if err := it.Err(); err != nil {
		return err
	}
	if seen != len(b.prints) {
		return fmt.Errorf("scan found %d live records, want %d", seen, len(b.prints))
	}

	stats, err := db.Verify()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	b.logger.Info("verified store",
		"records", stats.Records,
		"active", stats.Active,
		"deleted", stats.Deleted,
		"superseded", stats.Superseded,
		"longest_chain", stats.LongestChain)

	return nil
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "n/a"
	}
	return humanize.IBytes(uint64(fi.Size()))
}

// residentMemory reads the process collector's RSS gauge; it is absent
// on platforms without procfs.
func residentMemory(reg *prometheus.Registry) (uint64, bool) {
	families, err := reg.Gather()
	if err != nil {
		return 0, false
	}
	for _, mf := range families {
		if mf.GetName() != "process_resident_memory_bytes" {
			continue
		}
		if ms := mf.GetMetric(); len(ms) > 0 {
			return uint64(ms[0].GetGauge().GetValue()), true
		}
	}
	return 0, false
}

func removeOld(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "crudfile-bench: %s\n", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	logger.Debug("starting", "seed", cfg.Seed, "writes", cfg.Writes, "reads", cfg.Reads)

	if err := removeOld(cfg.DBPath, cfg.IndexPath, flock.Path(cfg.DBPath)); err != nil {
		logger.Error("removing old files", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []crudfile.Option{
		crudfile.WithLogger(logger),
		crudfile.WithRegisterer(reg),
	}
	if cfg.IndexPath != "" {
		opts = append(opts, crudfile.WithIndex(cfg.IndexPath))
	}
	if cfg.Sync {
		opts = append(opts, crudfile.WithSyncWrites())
	}

	b := &bench{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
		prints: make(map[uint32]uint64, cfg.Writes),
	}

	start := time.Now()
	if err := crudfile.With(cfg.DBPath, b.run, opts...); err != nil {
		logger.Error("benchmark failed", "seed", cfg.Seed, "err", err)
		os.Exit(1)
	}

	logger.Info("store file", "path", cfg.DBPath, "size", fileSize(cfg.DBPath))
	if cfg.IndexPath != "" {
		logger.Info("index file", "path", cfg.IndexPath, "size", fileSize(cfg.IndexPath))
	}
	if rss, ok := residentMemory(reg); ok {
		logger.Info("process", "rss", humanize.IBytes(rss))
	}
	logger.Info("done", "elapsed", time.Since(start))
}
