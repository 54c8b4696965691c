// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"
	"io"
	"log/slog"

	"github.com/blinklabs-io/gavel/chain"
	"github.com/blinklabs-io/gavel/database/plugin/blob/badger"
	"github.com/blinklabs-io/gavel/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/token"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	DataDir        string
	BlockCacheSize uint64
	IndexCacheSize uint64
}

// Database pairs the SQLite metadata store holding governance records with
// the badger blob store holding token state and the chain height
type Database struct {
	logger   *slog.Logger
	blob     *badger.BlobStoreBadger
	metadata *sqlite.MetadataStoreSqlite
	dataDir  string
}

// Blob returns the underling blob store instance
func (d *Database) Blob() *badger.BlobStoreBadger {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() *sqlite.MetadataStoreSqlite {
	return d.metadata
}

// Governance returns the store for proposals, receipts and the event log
func (d *Database) Governance() governance.Store {
	return d.metadata
}

// Token returns the key/value store for token state
func (d *Database) Token() token.Store {
	return d.blob
}

// Height returns the store persisting the chain height
func (d *Database) Height() chain.HeightStore {
	return d.blob
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

// New creates a new database instance with optional persistence using the
// provided data directory
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	logger = logger.With("component", "database")
	metadataDb, err := sqlite.New(
		sqlite.WithDataDir(cfg.DataDir),
		sqlite.WithLogger(logger),
		sqlite.WithPromRegistry(cfg.PromRegistry),
	)
	if err != nil {
		if metadataDb != nil {
			metadataDb.Close() //nolint:errcheck
		}
		return nil, err
	}
	blobOpts := []badger.BlobStoreBadgerOptionFunc{
		badger.WithDataDir(cfg.DataDir),
		badger.WithLogger(logger),
		badger.WithPromRegistry(cfg.PromRegistry),
	}
	if cfg.BlockCacheSize > 0 {
		blobOpts = append(blobOpts, badger.WithBlockCacheSize(cfg.BlockCacheSize))
	}
	if cfg.IndexCacheSize > 0 {
		blobOpts = append(blobOpts, badger.WithIndexCacheSize(cfg.IndexCacheSize))
	}
	blobDb, err := badger.New(blobOpts...)
	if err != nil {
		metadataDb.Close() //nolint:errcheck
		if blobDb != nil {
			blobDb.Close() //nolint:errcheck
		}
		return nil, err
	}
	return &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  cfg.DataDir,
	}, nil
}
