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
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/blinklabs-io/vedao/api"
	"github.com/blinklabs-io/vedao/identity"
	"github.com/spf13/cobra"
)

func keyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage governance keys and sign API commands",
	}
	cmd.AddCommand(keyGenerateCommand())
	cmd.AddCommand(keyIdentityCommand())
	cmd.AddCommand(keySignCommand())
	return cmd
}

func keyGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prefix>",
		Short: "Write a new key pair to <prefix>.vkey and <prefix>.skey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, skey, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			id, err := identity.WriteKeyPair(args[0], skey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func keyIdentityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "identity <vkey-file>",
		Short: "Print the identity of a verification key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vkey, err := identity.LoadVerificationKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), identity.KeyHash(vkey))
			return nil
		},
	}
}

func keySignCommand() *cobra.Command {
	var skeyFile string
	var timestamp int64
	cmd := &cobra.Command{
		Use:   "sign <op> <body-file>",
		Short: "Print the request headers authenticating an API command",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			skey, err := identity.LoadSigningKey(skeyFile)
			if err != nil {
				return err
			}
			body, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if timestamp == 0 {
				timestamp = time.Now().Unix()
			}
			proof := identity.Sign(skey, api.CommandMessage(args[0], timestamp, body))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", api.HeaderIdentity, identity.KeyHash(proof.VKey))
			fmt.Fprintf(out, "%s: %s\n", api.HeaderVKey, hex.EncodeToString(proof.VKey))
			fmt.Fprintf(out, "%s: %s\n", api.HeaderSignature, hex.EncodeToString(proof.Signature))
			fmt.Fprintf(out, "%s: %s\n", api.HeaderTimestamp, strconv.FormatInt(timestamp, 10))
			return nil
		},
	}
	cmd.Flags().StringVar(&skeyFile, "skey", "", "signing key file")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "unix timestamp to sign, defaults to now")
	_ = cmd.MarkFlagRequired("skey")
	return cmd
}
