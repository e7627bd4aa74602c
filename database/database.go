// Copyright 2025 Blink Labs Software
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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/vedao/database/plugin"
	"github.com/blinklabs-io/vedao/database/plugin/blob"
	"github.com/blinklabs-io/vedao/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"

	// Register the bundled storage plugins
	_ "github.com/blinklabs-io/vedao/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/vedao/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/vedao/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/vedao/database/plugin/metadata/sqlite"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// Config holds the database configuration
type Config struct {
	PromRegistry   prometheus.Registerer
	Logger         *slog.Logger
	BlobPlugin     string
	MetadataPlugin string
	// DataDir overrides the data-dir option of both plugins when set. Use
	// InMemory to force in-memory storage
	DataDir  string
	InMemory bool
}

// Database couples the canonical record store (blob) with the queryable
// index (metadata)
type Database struct {
	logger     *slog.Logger
	blob       blob.BlobStore
	metadata   metadata.MetadataStore
	config     *Config
	commitLock sync.Mutex
	indexStale atomic.Bool
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// IndexStale reports whether an index update failed after its record
// transaction committed. A rebuild clears it
func (d *Database) IndexStale() bool {
	return d.indexStale.Load()
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Update runs fn in a read-write transaction and commits it when fn
// succeeds. A commit that loses a write conflict returns
// types.ErrTxnConflict
func (d *Database) Update(fn func(*Txn) error) error {
	return d.Transaction(true).Do(fn)
}

// View runs fn in a read-only transaction
func (d *Database) View(fn func(*Txn) error) error {
	txn := d.Transaction(false)
	defer txn.Release()
	return fn(txn)
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

func (d *Database) init() error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return d.checkCommitTimestamp()
}

// New creates a new database instance from the configured plugins. A
// CommitTimestampError is returned together with a usable database so the
// caller can rebuild the index
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	if config.BlobPlugin == "" {
		config.BlobPlugin = DefaultBlobPlugin
	}
	if config.MetadataPlugin == "" {
		config.MetadataPlugin = DefaultMetadataPlugin
	}
	if config.DataDir != "" || config.InMemory {
		dataDir := config.DataDir
		if config.InMemory {
			dataDir = ""
		}
		if err := plugin.SetPluginOption(plugin.PluginTypeBlob, config.BlobPlugin, "data-dir", dataDir); err != nil {
			return nil, err
		}
		if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, config.MetadataPlugin, "data-dir", dataDir); err != nil {
			return nil, err
		}
	}
	blobDb, err := blob.New(
		config.BlobPlugin,
		config.Logger,
		config.PromRegistry,
	)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	metadataDb, err := metadata.New(
		config.MetadataPlugin,
		config.Logger,
		config.PromRegistry,
	)
	if err != nil {
		_ = blobDb.Close()
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	db := &Database{
		logger:   config.Logger,
		blob:     blobDb,
		metadata: metadataDb,
		config:   config,
	}
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}
