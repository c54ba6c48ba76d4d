// Copyright 2026 The crudfile Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath    string `yaml:"db"`
	IndexPath string `yaml:"index"`
	Writes    int    `yaml:"writes"`
	Reads     int    `yaml:"reads"`
	MinSize   int    `yaml:"min_size"`
	MaxSize   int    `yaml:"max_size"`
	Seed      int64  `yaml:"seed"`
	Sync      bool   `yaml:"sync"`
	Verbose   bool   `yaml:"verbose"`
}

func defaultConfig() Config {
	return Config{
		DBPath:    "test.db",
		IndexPath: "test.index",
		Writes:    100000,
		Reads:     100000,
		MinSize:   100,
		MaxSize:   1000,
	}
}

// loadConfig builds the configuration from defaults, then the YAML file
// named by -config (if any), then any flags given explicitly on the
// command line.
func loadConfig(args []string) (*Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("crudfile-bench", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML file with benchmark settings")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path of the store file (removed first)")
	fs.StringVar(&cfg.IndexPath, "index", cfg.IndexPath, "path of the index file (removed first); empty disables the index")
	fs.IntVar(&cfg.Writes, "writes", cfg.Writes, "number of records to write")
	fs.IntVar(&cfg.Reads, "reads", cfg.Reads, "number of random reads")
	fs.IntVar(&cfg.MinSize, "min-size", cfg.MinSize, "minimum payload length")
	fs.IntVar(&cfg.MaxSize, "max-size", cfg.MaxSize, "payload lengths are below this")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed; 0 picks one from the clock")
	fs.BoolVar(&cfg.Sync, "sync", cfg.Sync, "fsync after every mutation")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		flagged := cfg
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, fmt.Errorf("os.ReadFile(%s): %w", *configPath, err)
		}
		fileCfg := defaultConfig()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("yaml.Unmarshal(%s): %w", *configPath, err)
		}
		cfg = fileCfg
		// explicit flags beat the file
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "db":
				cfg.DBPath = flagged.DBPath
			case "index":
				cfg.IndexPath = flagged.IndexPath
			case "writes":
				cfg.Writes = flagged.Writes
			case "reads":
				cfg.Reads = flagged.Reads
			case "min-size":
				cfg.MinSize = flagged.MinSize
			case "max-size":
				cfg.MaxSize = flagged.MaxSize
			case "seed":
				cfg.Seed = flagged.Seed
			case "sync":
				cfg.Sync = flagged.Sync
			case "v":
				cfg.Verbose = flagged.Verbose
			}
		})
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path must be set"))
	}
	if c.IndexPath != "" && c.IndexPath == c.DBPath {
		errs = append(errs, errors.New("index and db paths must differ"))
	}
	// the fixed operations at the end delete id 3 and then read the
	// last id written
	if c.Writes < 4 {
		errs = append(errs, fmt.Errorf("writes must be at least 4, got %d", c.Writes))
	}
	if c.Reads < 0 {
		errs = append(errs, fmt.Errorf("reads must not be negative, got %d", c.Reads))
	}
	if c.MinSize < 0 || c.MaxSize <= c.MinSize {
		errs = append(errs, fmt.Errorf("need 0 <= min-size < max-size, got [%d, %d)", c.MinSize, c.MaxSize))
	}
	return errors.Join(errs...)
}
