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

package postgres

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blinklabs-io/vedao/database/plugin/metadata/internal/gormindex"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MetadataStorePostgres keeps the governance index in Postgres
type MetadataStorePostgres struct {
	gormindex.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	conn         gormindex.Conn
}

// NewWithOptions creates an unconnected store. The connection is
// established by Start()
func NewWithOptions(opts ...PostgresOptionFunc) *MetadataStorePostgres {
	db := &MetadataStorePostgres{}
	for _, opt := range opts {
		opt(db)
	}
	db.conn = db.conn.WithDefaults(defaultConn)
	return db
}

// connString builds the keyword/value connection string unless a full DSN
// was configured
func (d *MetadataStorePostgres) connString() string {
	if d.conn.DSN != "" {
		return d.conn.DSN
	}
	parts := []string{
		"host=" + d.conn.Host,
		"user=" + d.conn.User,
		"password=" + d.conn.Password,
		"dbname=" + d.conn.Database,
		"port=" + strconv.FormatUint(uint64(d.conn.Port), 10),
		"sslmode=" + d.conn.TLSMode,
	}
	if d.conn.TimeZone != "" {
		parts = append(parts, "TimeZone="+d.conn.TimeZone)
	}
	return strings.Join(parts, " ")
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	if d.DB() != nil {
		return nil
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	db, err := gorm.Open(
		postgres.Open(d.connString()),
		gormindex.GormConfig(true),
	)
	if err != nil {
		return err
	}
	d.Bind(db)
	if err := gormindex.Instrument(db, "postgres", d.promRegistry); err != nil {
		return err
	}
	if err := gormindex.ConfigureServerPool(db); err != nil {
		return err
	}
	d.logger.Info(
		"connected to postgres metadata store",
		"component", "database",
		"host", d.conn.Host,
		"port", d.conn.Port,
		"database", d.conn.Database,
	)
	return gormindex.Migrate(db, d.logger)
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

// Close closes the connection pool
func (d *MetadataStorePostgres) Close() error {
	return d.CloseDB()
}
