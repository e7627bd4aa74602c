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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/vedao/database/plugin/metadata/internal/gormindex"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// mysqlErrUnknownDatabase is returned by the server for a missing schema
const mysqlErrUnknownDatabase = 1049

// MetadataStoreMysql keeps the governance index in MySQL
type MetadataStoreMysql struct {
	gormindex.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	conn         gormindex.Conn
}

// NewWithOptions creates an unconnected store. The connection is
// established by Start()
func NewWithOptions(opts ...MysqlOptionFunc) *MetadataStoreMysql {
	db := &MetadataStoreMysql{}
	for _, opt := range opts {
		opt(db)
	}
	db.conn = db.conn.WithDefaults(defaultConn)
	return db
}

// buildDSN returns the configured DSN, or one assembled from the connection
// fields, along with the schema name it selects
func (d *MetadataStoreMysql) buildDSN() (string, string) {
	if d.conn.DSN != "" {
		if parsedDB, ok := parseMysqlDatabaseFromDSN(d.conn.DSN); ok {
			return d.conn.DSN, parsedDB
		}
		return d.conn.DSN, d.conn.Database
	}
	cfg := mysql.NewConfig()
	cfg.User = d.conn.User
	cfg.Passwd = d.conn.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(
		d.conn.Host,
		strconv.FormatUint(uint64(d.conn.Port), 10),
	)
	cfg.DBName = d.conn.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{}
	if d.conn.TimeZone != "" {
		loc, err := time.LoadLocation(d.conn.TimeZone)
		if err != nil {
			loc = time.UTC
		}
		cfg.Loc = loc
		cfg.Params["loc"] = d.conn.TimeZone
	}
	if d.conn.TLSMode != "" {
		cfg.Params["tls"] = d.conn.TLSMode
	}
	return cfg.FormatDSN(), d.conn.Database
}

func openMysql(dsn string) (*gorm.DB, error) {
	return gorm.Open(gormmysql.Open(dsn), gormindex.GormConfig(true))
}

// Start implements the plugin.Plugin interface. A missing schema is created
// once before giving up
func (d *MetadataStoreMysql) Start() error {
	if d.DB() != nil {
		return nil
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dsn, schema := d.buildDSN()
	db, err := openMysql(dsn)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) ||
			mysqlErr.Number != mysqlErrUnknownDatabase {
			return err
		}
		created, createErr := createSchema(dsn, schema)
		if createErr != nil {
			return errors.Join(err, createErr)
		}
		if !created {
			return err
		}
		if db, err = openMysql(dsn); err != nil {
			return err
		}
	}
	d.Bind(db)
	if err := gormindex.Instrument(db, "mysql", d.promRegistry); err != nil {
		return err
	}
	if err := gormindex.ConfigureServerPool(db); err != nil {
		return err
	}
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"host", d.conn.Host,
		"port", d.conn.Port,
		"database", schema,
	)
	return gormindex.Migrate(db, d.logger)
}

func createSchema(dsn string, schema string) (bool, error) {
	if schema == "" {
		return false, nil
	}
	adminDsn, ok := stripDatabaseFromDSN(dsn)
	if !ok {
		return false, nil
	}
	adminDb, err := openMysql(adminDsn)
	if err != nil {
		return false, err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return false, err
	}
	defer sqlAdminDb.Close()
	stmt := fmt.Sprintf(
		"CREATE DATABASE IF NOT EXISTS `%s`",
		strings.ReplaceAll(schema, "`", "``"),
	)
	if result := adminDb.Exec(stmt); result.Error != nil {
		return false, result.Error
	}
	return true, nil
}

func parseMysqlDatabaseFromDSN(dsn string) (string, bool) {
	base, _, _ := strings.Cut(dsn, "?")
	slash := strings.LastIndex(base, "/")
	if slash < 0 || slash == len(base)-1 {
		return "", false
	}
	return base[slash+1:], true
}

func stripDatabaseFromDSN(dsn string) (string, bool) {
	base, params, hasParams := strings.Cut(dsn, "?")
	slash := strings.LastIndex(base, "/")
	if slash < 0 {
		return "", false
	}
	base = base[:slash+1]
	if !hasParams || params == "" {
		return base, true
	}
	return base + "?" + params, true
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

// Close closes the connection pool
func (d *MetadataStoreMysql) Close() error {
	return d.CloseDB()
}
