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

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/blinklabs-io/vedao/api"
	"github.com/blinklabs-io/vedao/database"
	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with a config file pointing at dataDir
func runCommand(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfgFile := filepath.Join(t.TempDir(), "vedao.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("databasePath: "+strconv.Quote(dataDir)+"\n"), 0o600))
	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionAndList(t *testing.T) {
	out, err := runCommand(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, programName+" "))

	assert.Contains(t, listAllPlugins(), "badger")
	assert.Contains(t, listAllPlugins(), "sqlite")
	shouldExit, output := listPlugins("list", "sqlite")
	assert.True(t, shouldExit)
	assert.Contains(t, output, "Available blob plugins")
	assert.NotContains(t, output, "Available metadata plugins")
	shouldExit, _ = listPlugins("badger", "sqlite")
	assert.False(t, shouldExit)
}

func TestKeyCommands(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "voter")
	out, err := runCommand(t, t.TempDir(), "key", "generate", prefix)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.Len(t, id, 56)

	out, err = runCommand(t, t.TempDir(), "key", "identity", prefix+".vkey")
	require.NoError(t, err)
	assert.Equal(t, id, strings.TrimSpace(out))

	body := []byte(`{"proposalId":0,"choice":"For"}`)
	bodyFile := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(bodyFile, body, 0o600))
	out, err = runCommand(t, t.TempDir(), "key", "sign", "cast_vote", bodyFile, "--skey", prefix+".skey", "--timestamp", "1700000000")
	require.NoError(t, err)
	headers := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		name, value, ok := strings.Cut(line, ": ")
		require.True(t, ok, line)
		headers[name] = value
	}
	assert.Equal(t, id, headers[api.HeaderIdentity])
	assert.Equal(t, "1700000000", headers[api.HeaderTimestamp])
	vkey, err := hex.DecodeString(headers[api.HeaderVKey])
	require.NoError(t, err)
	sig, err := hex.DecodeString(headers[api.HeaderSignature])
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(vkey, api.CommandMessage("cast_vote", 1_700_000_000, body), sig))

	_, err = runCommand(t, t.TempDir(), "key", "sign", "cast_vote", bodyFile)
	require.Error(t, err)
}

func seedDatabase(t *testing.T, dataDir string) {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	l := ledger.NewStoreLedger(db, "GOV")
	require.NoError(t, l.Mint("council", 1_000*governance.TokenUnit))
	gov, err := governance.NewEngine(db, l, identity.StaticVerifier{})
	require.NoError(t, err)
	ctx := identity.WithCaller(context.Background(), "council")
	_, err = gov.Initialize(ctx, "council", governance.DefaultInitParams("treasury", "bond-escrow", "vote-vault", "GOV"))
	require.NoError(t, err)
	for _, title := range []string{"First", "Second"} {
		_, err = gov.CreateProposal(ctx, "council", governance.CreateProposalParams{
			Title:          title,
			DescriptionCid: "cid",
		})
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
}

func TestProposalCommands(t *testing.T) {
	dataDir := t.TempDir()
	seedDatabase(t, dataDir)

	out, err := runCommand(t, dataDir, "proposals", "list", "--desc")
	require.NoError(t, err)
	var proposals []governance.Proposal
	require.NoError(t, json.Unmarshal([]byte(out), &proposals))
	require.Len(t, proposals, 2)
	assert.Equal(t, "Second", proposals[0].Title)

	out, err = runCommand(t, dataDir, "proposals", "list", "--status", "Passed")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, err = runCommand(t, dataDir, "proposals", "list", "--status", "Bogus")
	require.Error(t, err)

	out, err = runCommand(t, dataDir, "proposals", "show", "1")
	require.NoError(t, err)
	var p governance.Proposal
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, identity.Identity("council"), p.Proposer)

	_, err = runCommand(t, dataDir, "proposals", "show", "9")
	require.ErrorIs(t, err, governance.ErrProposalNotFound)

	out, err = runCommand(t, dataDir, "proposals", "votes", "0")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, err = runCommand(t, dataDir, "proposals", "reindex")
	require.NoError(t, err)
	assert.Contains(t, out, "index rebuilt")
}

func TestConfigShow(t *testing.T) {
	dataDir := t.TempDir()
	out, err := runCommand(t, dataDir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "databasePath: "+dataDir)
	assert.Contains(t, out, "apiPort: 8650")
}
