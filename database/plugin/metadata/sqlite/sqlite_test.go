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

package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/vedao/database/models"
	"github.com/blinklabs-io/vedao/database/plugin/metadata"
	"github.com/blinklabs-io/vedao/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/vedao/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *sqlite.MetadataStoreSqlite {
	t.Helper()
	store, err := sqlite.New("", nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func ptr[T any](v T) *T {
	return &v
}

func seedProposals(t *testing.T, store *sqlite.MetadataStoreSqlite) {
	t.Helper()
	err := store.Apply(100, func(w metadata.IndexWriter) error {
		rows := []models.GovernanceProposal{
			{ID: 0, Proposer: "alice", Title: "a", DescriptionCid: "cid", ProposalType: 0, Status: 0},
			{ID: 1, Proposer: "bob", Title: "b", DescriptionCid: "cid", ProposalType: 1, Status: 1},
			{ID: 2, Proposer: "alice", Title: "c", DescriptionCid: "cid", ProposalType: 1, Status: 0},
			{ID: 3, Proposer: "carol", Title: "d", DescriptionCid: "cid", ProposalType: 2, Status: 2, AppealOf: ptr(uint64(1))},
		}
		for i := range rows {
			if err := w.SetProposal(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestStoresAreIsolated(t *testing.T) {
	store1 := setupTestStore(t)
	store2 := setupTestStore(t)
	seedProposals(t, store1)
	count, err := store2.CountProposals(models.ProposalFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestGetProposalsFilter(t *testing.T) {
	store := setupTestStore(t)
	seedProposals(t, store)

	testDefs := []struct {
		name     string
		filter   models.ProposalFilter
		expected []uint64
	}{
		{name: "all", filter: models.ProposalFilter{}, expected: []uint64{0, 1, 2, 3}},
		{name: "status", filter: models.ProposalFilter{Status: ptr(uint8(0))}, expected: []uint64{0, 2}},
		{name: "type", filter: models.ProposalFilter{Type: ptr(uint8(1))}, expected: []uint64{1, 2}},
		{name: "proposer", filter: models.ProposalFilter{Proposer: ptr("alice")}, expected: []uint64{0, 2}},
		{name: "appeal", filter: models.ProposalFilter{AppealOf: ptr(uint64(1))}, expected: []uint64{3}},
		{name: "descending", filter: models.ProposalFilter{Order: models.OrderDescending}, expected: []uint64{3, 2, 1, 0}},
		{name: "paged", filter: models.ProposalFilter{Offset: 1, Limit: 2}, expected: []uint64{1, 2}},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			rows, err := store.GetProposals(testDef.filter)
			require.NoError(t, err)
			ids := make([]uint64, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, row.ID)
			}
			assert.Equal(t, testDef.expected, ids)
		})
	}

	count, err := store.CountProposals(models.ProposalFilter{Proposer: ptr("alice"), Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSetProposalUpserts(t *testing.T) {
	store := setupTestStore(t)
	seedProposals(t, store)
	err := store.Apply(200, func(w metadata.IndexWriter) error {
		return w.SetProposal(&models.GovernanceProposal{
			ID:             0,
			Proposer:       "alice",
			Title:          "a",
			DescriptionCid: "cid",
			Status:         1,
			ForVotes:       types.Uint64(1 << 63),
		})
	})
	require.NoError(t, err)
	rows, err := store.GetProposals(models.ProposalFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint8(1), rows[0].Status)
	assert.Equal(t, types.Uint64(1<<63), rows[0].ForVotes)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(200), ts)
}

func TestVotes(t *testing.T) {
	store := setupTestStore(t)
	err := store.Apply(1, func(w metadata.IndexWriter) error {
		if err := w.SetVote(&models.GovernanceVote{ProposalID: 5, Voter: "bob", Choice: 1, Weight: 300, VotedAt: 20}); err != nil {
			return err
		}
		return w.SetVote(&models.GovernanceVote{ProposalID: 5, Voter: "alice", Choice: 0, Weight: 600, VotedAt: 10})
	})
	require.NoError(t, err)
	votes, err := store.GetVotes(5)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, "alice", votes[0].Voter)
	assert.Equal(t, types.Uint64(600), votes[0].Weight)

	require.NoError(t, store.Apply(2, func(w metadata.IndexWriter) error {
		return w.DeleteVote(5, "alice")
	}))
	votes, err = store.GetVotes(5)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "bob", votes[0].Voter)
}

func TestApplyRollsBackOnError(t *testing.T) {
	store := setupTestStore(t)
	seedProposals(t, store)
	err := store.Apply(300, func(w metadata.IndexWriter) error {
		if err := w.DeleteVote(1, "x"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts)
}

func TestReset(t *testing.T) {
	store := setupTestStore(t)
	seedProposals(t, store)
	require.NoError(t, store.Reset())
	count, err := store.CountProposals(models.ProposalFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)
}

func TestOnDiskStore(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "index")
	store, err := sqlite.NewWithOptions(
		sqlite.WithDataDir(dataDir),
		sqlite.WithVacuumInterval(0),
	)
	require.NoError(t, err)
	require.NoError(t, store.Start())
	seedProposals(t, store)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "second close is a no-op")
	_, err = os.Stat(filepath.Join(dataDir, "metadata.sqlite"))
	require.NoError(t, err)

	reopened, err := sqlite.NewWithOptions(sqlite.WithDataDir(dataDir))
	require.NoError(t, err)
	require.NoError(t, reopened.Start())
	t.Cleanup(func() { _ = reopened.Close() })
	ts, err := reopened.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts)
	count, err := reopened.CountProposals(models.ProposalFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
