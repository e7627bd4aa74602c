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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/blinklabs-io/vedao/database"
	"github.com/blinklabs-io/vedao/governance"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/blinklabs-io/vedao/internal/config"
	"github.com/blinklabs-io/vedao/ledger"
	"github.com/spf13/cobra"
)

// openGovernance opens the local store read-write for inspection. The
// engine must not be running against the same database path
func openGovernance(cfg *config.Config) (*governance.Engine, func() error, error) {
	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		BlobPlugin:     cfg.BlobPlugin,
		MetadataPlugin: cfg.MetadataPlugin,
	})
	if err != nil {
		var tsErr database.CommitTimestampError
		if db == nil || !errors.As(err, &tsErr) {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
	}
	gov, err := governance.NewEngine(
		db,
		ledger.NewStoreLedger(db, cfg.Genesis.GovernanceAsset),
		identity.StaticVerifier{},
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return gov, db.Close, nil
}

func withGovernance(
	cmd *cobra.Command,
	fn func(ctx context.Context, gov *governance.Engine) error,
) (err error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	gov, closeFn, err := openGovernance(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeFn())
	}()
	return fn(cmd.Context(), gov)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func proposalsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "Inspect proposals in the local database",
	}
	cmd.AddCommand(proposalsListCommand())
	cmd.AddCommand(proposalsShowCommand())
	cmd.AddCommand(proposalsVotesCommand())
	cmd.AddCommand(proposalsReindexCommand())
	return cmd
}

func proposalsListCommand() *cobra.Command {
	var status, proposalType, proposer string
	var offset, limit int
	var descending bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter governance.ProposalFilter
			if status != "" {
				s, err := governance.ParseProposalStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &s
			}
			if proposalType != "" {
				pt, err := governance.ParseProposalType(proposalType)
				if err != nil {
					return err
				}
				filter.Type = &pt
			}
			if proposer != "" {
				p := identity.Identity(proposer)
				filter.Proposer = &p
			}
			filter.Offset = offset
			filter.Limit = limit
			filter.Descending = descending
			return withGovernance(cmd, func(ctx context.Context, gov *governance.Engine) error {
				proposals, err := gov.GetProposals(ctx, filter)
				if err != nil {
					return err
				}
				if proposals == nil {
					proposals = []governance.Proposal{}
				}
				return printJSON(cmd.OutOrStdout(), proposals)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only proposals with this status")
	cmd.Flags().StringVar(&proposalType, "type", "", "only proposals of this type")
	cmd.Flags().StringVar(&proposer, "proposer", "", "only proposals by this identity")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of proposals to skip")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of proposals")
	cmd.Flags().BoolVar(&descending, "desc", false, "newest first")
	return cmd
}

func proposalIdArg(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q: %w", arg, err)
	}
	return id, nil
}

func proposalsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := proposalIdArg(args[0])
			if err != nil {
				return err
			}
			return withGovernance(cmd, func(ctx context.Context, gov *governance.Engine) error {
				p, err := gov.GetProposal(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func proposalsVotesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "votes <id>",
		Short: "List the votes cast on a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := proposalIdArg(args[0])
			if err != nil {
				return err
			}
			return withGovernance(cmd, func(ctx context.Context, gov *governance.Engine) error {
				votes, err := gov.GetVotes(ctx, id)
				if err != nil {
					return err
				}
				if votes == nil {
					votes = []governance.VoteRecord{}
				}
				return printJSON(cmd.OutOrStdout(), votes)
			})
		},
	}
}

func proposalsReindexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the proposal and vote index from the stored records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withGovernance(cmd, func(ctx context.Context, gov *governance.Engine) error {
				if err := gov.RebuildIndex(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "index rebuilt")
				return nil
			})
		},
	}
}
