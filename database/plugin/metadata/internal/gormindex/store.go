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

package gormindex

import (
	"fmt"
	"time"

	"github.com/blinklabs-io/vedao/database/models"
	"github.com/blinklabs-io/vedao/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// GormConfig returns the GORM settings used by every index backend
func GormConfig(prepareStmt bool) *gorm.Config {
	return &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		PrepareStmt:            prepareStmt,
	}
}

// Instrument installs GORM tracing and, when a registry is given, a
// connection pool collector named metadata_<backend>
func Instrument(
	db *gorm.DB,
	backend string,
	promRegistry prometheus.Registerer,
) error {
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if promRegistry == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := promRegistry.Register(
		collectors.NewDBStatsCollector(sqlDB, "metadata_"+backend),
	); err != nil {
		return fmt.Errorf("failed to register %s metrics: %w", backend, err)
	}
	return nil
}

// ConfigureServerPool sizes the connection pool of a networked backend
func ConfigureServerPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

// Store implements the query and write side of metadata.MetadataStore on
// top of a GORM handle. Backends embed it and Bind the handle once opened
type Store struct {
	db *gorm.DB
}

// Bind sets the handle used by every method
func (s *Store) Bind(db *gorm.DB) {
	s.db = db
}

// DB returns the database handle, nil before Bind
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AutoMigrate wraps the gorm AutoMigrate
func (s *Store) AutoMigrate(dst ...any) error {
	return s.db.AutoMigrate(dst...)
}

// CloseDB closes the bound handle. It is a no-op when nothing was bound
func (s *Store) CloseDB() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) GetCommitTimestamp() (int64, error) {
	return GetCommitTimestamp(s.db)
}

// Apply runs fn and records the commit timestamp in one SQL transaction
func (s *Store) Apply(
	timestamp int64,
	fn func(metadata.IndexWriter) error,
) error {
	return Apply(s.db, timestamp, func(w *Writer) error { return fn(w) })
}

func (s *Store) Reset() error {
	return Reset(s.db)
}

func (s *Store) GetProposals(
	filter models.ProposalFilter,
) ([]models.GovernanceProposal, error) {
	return GetProposals(s.db, filter)
}

func (s *Store) CountProposals(filter models.ProposalFilter) (int64, error) {
	return CountProposals(s.db, filter)
}

func (s *Store) GetVotes(proposalId uint64) ([]models.GovernanceVote, error) {
	return GetVotes(s.db, proposalId)
}
