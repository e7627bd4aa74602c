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

// Package gormindex holds the governance index queries shared by every
// GORM-backed metadata plugin
package gormindex

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/vedao/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	commitTimestampRowId = 1
)

// CommitTimestamp represents the table used to track the current commit timestamp
type CommitTimestamp struct {
	ID        uint `gorm:"primarykey"`
	Timestamp int64
}

func (CommitTimestamp) TableName() string {
	return "commit_timestamp"
}

// Migrate creates or updates the commit timestamp table and every index model
func Migrate(db *gorm.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	allModels := append([]any{&CommitTimestamp{}}, models.MigrateModels...)
	for _, model := range allModels {
		logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

func GetCommitTimestamp(db *gorm.DB) (int64, error) {
	var tmpCommitTimestamp CommitTimestamp
	result := db.First(&tmpCommitTimestamp)
	if result.Error != nil {
		// It's not an error if there's no records found
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return tmpCommitTimestamp.Timestamp, nil
}

func setCommitTimestamp(db *gorm.DB, timestamp int64) error {
	tmpCommitTimestamp := CommitTimestamp{
		ID:        commitTimestampRowId,
		Timestamp: timestamp,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
	}).Create(&tmpCommitTimestamp)
	return result.Error
}

// Writer applies index changes inside an open GORM transaction
type Writer struct {
	tx *gorm.DB
}

func (w *Writer) SetProposal(p *models.GovernanceProposal) error {
	result := w.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(p)
	return result.Error
}

func (w *Writer) SetVote(v *models.GovernanceVote) error {
	result := w.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proposal_id"}, {Name: "voter"}},
		UpdateAll: true,
	}).Create(v)
	return result.Error
}

func (w *Writer) DeleteVote(proposalId uint64, voter string) error {
	result := w.tx.Where(
		"proposal_id = ? AND voter = ?",
		proposalId,
		voter,
	).Delete(&models.GovernanceVote{})
	return result.Error
}

// Apply runs fn and the commit timestamp update in one transaction
func Apply(db *gorm.DB, timestamp int64, fn func(*Writer) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := fn(&Writer{tx: tx}); err != nil {
			return err
		}
		return setCommitTimestamp(tx, timestamp)
	})
}

// Reset empties every index table
func Reset(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.GovernanceVote{},
			&models.GovernanceProposal{},
			&CommitTimestamp{},
		} {
			result := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
				Delete(model)
			if result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
}

func applyFilter(db *gorm.DB, filter models.ProposalFilter) *gorm.DB {
	query := db.Model(&models.GovernanceProposal{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("proposal_type = ?", *filter.Type)
	}
	if filter.Proposer != nil {
		query = query.Where("proposer = ?", *filter.Proposer)
	}
	if filter.AppealOf != nil {
		query = query.Where("appeal_of = ?", *filter.AppealOf)
	}
	return query
}

// GetProposals returns the index rows matching filter ordered by ID
func GetProposals(
	db *gorm.DB,
	filter models.ProposalFilter,
) ([]models.GovernanceProposal, error) {
	var ret []models.GovernanceProposal
	query := applyFilter(db, filter).Order(clause.OrderByColumn{
		Column: clause.Column{Name: "id"},
		Desc:   filter.Order == models.OrderDescending,
	})
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountProposals returns the number of index rows matching filter, ignoring
// paging
func CountProposals(db *gorm.DB, filter models.ProposalFilter) (int64, error) {
	var count int64
	if result := applyFilter(db, filter).Count(&count); result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// GetVotes returns the current votes of a proposal ordered by vote time
func GetVotes(db *gorm.DB, proposalId uint64) ([]models.GovernanceVote, error) {
	var ret []models.GovernanceVote
	result := db.Where("proposal_id = ?", proposalId).
		Order("voted_at, voter").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
