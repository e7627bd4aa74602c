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

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/vedao/database/plugin"
	"github.com/blinklabs-io/vedao/governance"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "vedao.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultMaxClockSkew    = "5m"
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"
	EnvPrefix              = "vedao"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config   *Config                   `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	BlobPlugin        string        `yaml:"blobPlugin"        split_words:"true"`
	MetadataPlugin    string        `yaml:"metadataPlugin"    split_words:"true"`
	DatabasePath      string        `yaml:"databasePath"      split_words:"true"`
	BindAddr          string        `yaml:"bindAddr"          split_words:"true"`
	ShutdownTimeout   string        `yaml:"shutdownTimeout"   split_words:"true"`
	MaxClockSkew      string        `yaml:"maxClockSkew"      split_words:"true"`
	ApiPort           uint          `yaml:"apiPort"           split_words:"true"`
	MetricsPort       uint          `yaml:"metricsPort"       split_words:"true"`
	TrustCallerHeader bool          `yaml:"trustCallerHeader" split_words:"true"`
	Tracing           bool          `yaml:"tracing"`
	TracingStdout     bool          `yaml:"tracingStdout"     split_words:"true"`
	Genesis           GenesisConfig `yaml:"genesis"`
}

// GenesisConfig describes the DAO created when the store is empty. It is
// enabled when an authority or an authority key file is set
type GenesisConfig struct {
	Authority         string            `yaml:"authority"`
	AuthorityKeyFile  string            `yaml:"authorityKeyFile"  split_words:"true"`
	TreasuryAccount   string            `yaml:"treasuryAccount"   split_words:"true"`
	BondEscrowAccount string            `yaml:"bondEscrowAccount" split_words:"true"`
	VoteVaultAccount  string            `yaml:"voteVaultAccount"  split_words:"true"`
	GovernanceAsset   string            `yaml:"governanceAsset"   split_words:"true"`
	VotingPeriod      string            `yaml:"votingPeriod"      split_words:"true"`
	DiscussionPeriod  string            `yaml:"discussionPeriod"  split_words:"true"`
	ProposalBond      uint64            `yaml:"proposalBond"      split_words:"true"`
	QuorumPercentage  uint8             `yaml:"quorumPercentage"  split_words:"true"`
	ApprovalThreshold uint8             `yaml:"approvalThreshold" split_words:"true"`
	Balances          map[string]uint64 `yaml:"balances,omitempty"`
}

func (g GenesisConfig) Enabled() bool {
	return g.Authority != "" || g.AuthorityKeyFile != ""
}

// InitParams converts the genesis section into initialization parameters.
// Unset values take the governance defaults
func (g GenesisConfig) InitParams() (governance.InitParams, error) {
	ret := governance.DefaultInitParams(
		g.TreasuryAccount,
		g.BondEscrowAccount,
		g.VoteVaultAccount,
		g.GovernanceAsset,
	)
	if g.VotingPeriod != "" {
		d, err := time.ParseDuration(g.VotingPeriod)
		if err != nil {
			return ret, fmt.Errorf("invalid genesis voting period: %w", err)
		}
		ret.VotingPeriod = int64(d / time.Second)
	}
	if g.DiscussionPeriod != "" {
		d, err := time.ParseDuration(g.DiscussionPeriod)
		if err != nil {
			return ret, fmt.Errorf("invalid genesis discussion period: %w", err)
		}
		ret.DiscussionPeriod = int64(d / time.Second)
	}
	if g.ProposalBond != 0 {
		ret.ProposalBond = g.ProposalBond
	}
	if g.QuorumPercentage != 0 {
		ret.QuorumPercentage = g.QuorumPercentage
	}
	if g.ApprovalThreshold != 0 {
		ret.ApprovalThreshold = g.ApprovalThreshold
	}
	return ret, nil
}

func defaultConfig() *Config {
	return &Config{
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		DatabasePath:    ".vedao",
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxClockSkew:    DefaultMaxClockSkew,
		ApiPort:         8650,
		MetricsPort:     12799,
		Genesis: GenesisConfig{
			TreasuryAccount:   "treasury",
			BondEscrowAccount: "bond-escrow",
			VoteVaultAccount:  "vote-vault",
			GovernanceAsset:   "GOV",
		},
	}
}

var globalConfig = defaultConfig()

// findConfigFile returns ~/.vedao/vedao.yaml or /etc/vedao/vedao.yaml,
// whichever exists first
func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".vedao", "vedao.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/vedao/vedao.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// ReadConfigFile reads a config file and decrypts it when it is SOPS
// encrypted
func ReadConfigFile(configFile string) ([]byte, error) {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	encrypted, err := IsEncrypted(buf)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if !encrypted {
		return buf, nil
	}
	buf, err = Decrypt(buf)
	if err != nil {
		return nil, fmt.Errorf("error decrypting config file: %w", err)
	}
	return buf, nil
}

func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := ReadConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		if err := loadConfigBytes(cfg, buf); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	// Process plugin environment variables
	if err := plugin.ProcessEnvVars(EnvPrefix); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func loadConfigBytes(cfg *Config, buf []byte) error {
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config != nil {
		// Overlay the config section onto the defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		if err := yaml.Unmarshal(configBytes, cfg); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		// Otherwise the whole file is the main config
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process plugin configurations
	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			name, section := splitPluginSection("blob", tempCfg.Database.Blob)
			if name != "" {
				cfg.BlobPlugin = name
			}
			mergePluginSection(pluginConfig, "blob", section)
		}
		if tempCfg.Database.Metadata != nil {
			name, section := splitPluginSection("metadata", tempCfg.Database.Metadata)
			if name != "" {
				cfg.MetadataPlugin = name
			}
			mergePluginSection(pluginConfig, "metadata", section)
		}
	}
	if len(pluginConfig) > 0 {
		if err := plugin.ProcessConfig(pluginConfig); err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// splitPluginSection separates the "plugin" selector from the per-plugin
// option maps of a database section
func splitPluginSection(
	typeName string,
	section map[string]any,
) (string, map[string]map[string]any) {
	var name string
	options := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			if pluginName, ok := v.(string); ok {
				name = pluginName
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			options[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			options[k] = stringAnyMap
		default:
			fmt.Fprintf(os.Stderr, "warning: skipping %s config entry %q: expected map, got %T\n", typeName, k, v)
		}
	}
	return name, options
}

func mergePluginSection(
	pluginConfig map[string]map[string]map[string]any,
	typeName string,
	section map[string]map[string]any,
) {
	if pluginConfig[typeName] == nil {
		pluginConfig[typeName] = section
		return
	}
	maps.Copy(pluginConfig[typeName], section)
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdownTimeout: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxClockSkew); err != nil {
		return fmt.Errorf("invalid maxClockSkew: %w", err)
	}
	if c.TrustCallerHeader && c.ApiPort == 0 {
		return errors.New("trustCallerHeader requires apiPort")
	}
	if c.Genesis.Authority != "" && c.Genesis.AuthorityKeyFile != "" {
		return errors.New("genesis authority and authorityKeyFile are mutually exclusive")
	}
	if _, err := c.Genesis.InitParams(); err != nil {
		return err
	}
	return nil
}

// Marshal renders the config as YAML
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func GetConfig() *Config {
	return globalConfig
}
