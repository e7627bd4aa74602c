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

package metadata

import (
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/vedao/database/models"
	"github.com/blinklabs-io/vedao/database/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// IndexWriter receives the index changes of one committed record
// transaction
type IndexWriter interface {
	SetProposal(*models.GovernanceProposal) error
	SetVote(*models.GovernanceVote) error
	DeleteVote(proposalId uint64, voter string) error
}

// MetadataStore keeps the queryable index of the governance records
type MetadataStore interface {
	plugin.Plugin
	Close() error
	DB() *gorm.DB
	AutoMigrate(dst ...any) error

	GetCommitTimestamp() (int64, error)
	// Apply runs fn in a single SQL transaction and records the commit
	// timestamp alongside it
	Apply(timestamp int64, fn func(IndexWriter) error) error
	// Reset removes all index rows and the commit timestamp
	Reset() error

	GetProposals(models.ProposalFilter) ([]models.GovernanceProposal, error)
	CountProposals(models.ProposalFilter) (int64, error)
	GetVotes(proposalId uint64) ([]models.GovernanceVote, error)
}

// New returns the started metadata plugin selected by name
func New(
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	p, err := plugin.StartPluginWith(
		plugin.PluginTypeMetadata,
		pluginName,
		logger,
		promRegistry,
	)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
