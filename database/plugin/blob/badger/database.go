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

package badger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
)

// Defaults sized for many small checkpoint values
const (
	DefaultBlockCacheSize = 32 << 20
	DefaultIndexCacheSize = 8 << 20
	DefaultGcInterval     = 10 * time.Minute

	gcDiscardRatio = 0.5
	memTableSize   = 16 << 20
	valueThreshold = 256
)

type storeTuning struct {
	blockCacheSize uint64
	indexCacheSize uint64
	gcInterval     time.Duration
	syncWrites     bool
}

// BlobStoreBadger stores token state and chain height in badger. Data is
// not persisted when no data directory is configured.
type BlobStoreBadger struct {
	promRegistry prometheus.Registerer
	db           *badger.DB
	logger       *slog.Logger
	dataDir      string
	tuning       storeTuning
	gcStopCh     chan struct{}
	gcWg         sync.WaitGroup
	closeOnce    sync.Once
}

// New opens the token state store
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	d := &BlobStoreBadger{
		tuning: storeTuning{
			blockCacheSize: DefaultBlockCacheSize,
			indexCacheSize: DefaultIndexCacheSize,
			gcInterval:     DefaultGcInterval,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	badgerOpts, err := d.badgerOptions()
	if err != nil {
		return nil, err
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open token state store: %w", err)
	}
	d.db = db
	if d.promRegistry != nil {
		d.registerBlobMetrics()
	}
	// An in-memory store has no value log to compact
	if d.dataDir != "" && d.tuning.gcInterval > 0 {
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.gcLoop(d.tuning.gcInterval, d.gcStopCh)
	}
	return d, nil
}

func (d *BlobStoreBadger) badgerOptions() (badger.Options, error) {
	if d.dataDir == "" {
		return badger.DefaultOptions("").
			WithInMemory(true).
			WithLogger(NewBadgerLogger(d.logger)).
			WithLoggingLevel(badger.WARNING).
			WithValueThreshold(valueThreshold), nil
	}
	if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
		return badger.Options{}, fmt.Errorf("create data dir: %w", err)
	}
	//nolint:gosec // cache sizes are small configured values
	return badger.DefaultOptions(filepath.Join(d.dataDir, "token")).
		WithLogger(NewBadgerLogger(d.logger)).
		WithLoggingLevel(badger.WARNING).
		WithBlockCacheSize(int64(d.tuning.blockCacheSize)).
		WithIndexCacheSize(int64(d.tuning.indexCacheSize)).
		WithMemTableSize(memTableSize).
		WithValueThreshold(valueThreshold).
		WithSyncWrites(d.tuning.syncWrites).
		WithCompression(options.Snappy), nil
}

func (d *BlobStoreBadger) gcLoop(interval time.Duration, stop <-chan struct{}) {
	defer d.gcWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.runGc()
		}
	}
}

// runGc compacts the value log until badger reports nothing left to rewrite
func (d *BlobStoreBadger) runGc() {
	var rewrites int
	for {
		err := d.db.RunValueLogGC(gcDiscardRatio)
		if err == nil {
			rewrites++
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			d.logger.Warn(
				"token state value log GC failed",
				"error", err,
			)
		}
		break
	}
	if rewrites > 0 {
		d.logger.Debug(
			"compacted token state value log",
			"rewrites", rewrites,
		)
	}
}

// Close stops GC and closes the database handle
func (d *BlobStoreBadger) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.gcStopCh != nil {
			close(d.gcStopCh)
			d.gcWg.Wait()
		}
		err = d.db.Close()
	})
	return err
}

// DB returns the database handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}
