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
	"errors"
	"fmt"
	"os"

	"github.com/blinklabs-io/vedao/internal/config"
	"github.com/spf13/cobra"
)

func configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and encrypt configuration",
	}
	cmd.AddCommand(configShowCommand())
	cmd.AddCommand(configEncryptCommand())
	cmd.AddCommand(configDecryptCommand())
	return cmd
}

func configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// writeOutput replaces path when inPlace is set and prints data otherwise
func writeOutput(cmd *cobra.Command, path string, inPlace bool, data []byte) error {
	if !inPlace {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, info.Mode().Perm())
}

func configEncryptCommand() *cobra.Command {
	var inPlace bool
	cmd := &cobra.Command{
		Use:   "encrypt <file>",
		Short: "Encrypt a config file with SOPS",
		Long: fmt.Sprintf(
			"Encrypt a YAML config file with SOPS. Master keys are taken from %s, %s and %s.",
			config.EnvAgeRecipients,
			config.EnvGcpKmsResourceId,
			config.EnvAwsKmsKeyArns,
		),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			encrypted, err := config.Encrypt(data)
			if err != nil {
				return err
			}
			return writeOutput(cmd, args[0], inPlace, encrypted)
		},
	}
	cmd.Flags().BoolVarP(&inPlace, "in-place", "i", false, "replace the file instead of printing")
	return cmd
}

func configDecryptCommand() *cobra.Command {
	var inPlace bool
	cmd := &cobra.Command{
		Use:   "decrypt <file>",
		Short: "Decrypt a SOPS encrypted config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.ReadConfigFile(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, args[0], inPlace, data)
		},
	}
	cmd.Flags().BoolVarP(&inPlace, "in-place", "i", false, "replace the file instead of printing")
	return cmd
}
