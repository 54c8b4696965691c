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

package sqlite

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/gavel/database/models"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	// DefaultMaxConnections is used when no connection limit is configured
	DefaultMaxConnections = 5
	// DefaultVacuumInterval is how often an on-disk store is vacuumed
	DefaultVacuumInterval = 24 * time.Hour

	metadataFileName = "governance.sqlite"
	// WAL journal, normal sync, 50MB page cache
	fileConnOpts = "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-50000)"
)

var memoryDbCounter atomic.Uint64

// MetadataStoreSqlite is a SQLite-based store for governance proposals,
// vote receipts and the governance event log.
type MetadataStoreSqlite struct {
	promRegistry   prometheus.Registerer
	db             *gorm.DB
	logger         *slog.Logger
	dataDir        string
	maxConnections int
	vacuumInterval time.Duration
	timerVacuum    *time.Timer
	timerMutex     sync.Mutex
	vacuumWG       sync.WaitGroup
	closed         bool
}

// New creates a SQLite metadata store. Uses in-memory database if no data
// directory is specified.
func New(opts ...SqliteOptionFunc) (*MetadataStoreSqlite, error) {
	d := &MetadataStoreSqlite{
		maxConnections: DefaultMaxConnections,
		vacuumInterval: DefaultVacuumInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if d.maxConnections <= 0 {
		d.maxConnections = DefaultMaxConnections
	}
	dsn, err := d.dsn()
	if err != nil {
		return nil, err
	}
	d.db, err = gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	if err := d.init(); err != nil {
		// The handle is returned so the caller can close it
		return d, err
	}
	return d, nil
}

// dsn returns the connection string. Each in-memory store gets its own
// named database so stores within one process stay isolated
func (d *MetadataStoreSqlite) dsn() (string, error) {
	if d.dataDir == "" {
		return fmt.Sprintf(
			"file:gavel-%d?mode=memory&cache=shared",
			memoryDbCounter.Add(1),
		), nil
	}
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return fmt.Sprintf(
		"file:%s?%s",
		filepath.Join(d.dataDir, metadataFileName),
		fileConnOpts,
	), nil
}

func (d *MetadataStoreSqlite) init() error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	sqlDb.SetMaxOpenConns(d.maxConnections)
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return fmt.Errorf("enable gorm tracing: %w", err)
	}
	if d.promRegistry != nil {
		d.registerMetrics()
	}
	if err := d.db.AutoMigrate(models.MigrateModels...); err != nil {
		return fmt.Errorf("migrate governance tables: %w", err)
	}
	if d.dataDir != "" && d.vacuumInterval > 0 {
		d.scheduleVacuum()
	}
	return nil
}

// scheduleVacuum arms the timer for the next vacuum run
func (d *MetadataStoreSqlite) scheduleVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed {
		return
	}
	d.timerVacuum = time.AfterFunc(d.vacuumInterval, func() {
		defer d.scheduleVacuum()
		if err := d.vacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in metadata store",
				"error", err,
			)
		}
	})
}

func (d *MetadataStoreSqlite) vacuum() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()
	d.logger.Debug("running vacuum on metadata store")
	return d.db.Exec("VACUUM").Error
}

// Close shuts down the database connection and stops background processes.
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()
	d.vacuumWG.Wait()
	sqlDb, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDb.Close()
}

// DB returns the underlying GORM database handle.
func (d *MetadataStoreSqlite) DB() *gorm.DB {
	return d.db
}
