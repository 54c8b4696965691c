// Copyright 2026 Blink Labs Software
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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "gavel.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultBlockInterval   = "12s"
	// 100 whole 18-decimal tokens
	DefaultProposalThreshold = "100000000000000000000"
	DefaultQuadraticUnit     = "1000000000000000000"
	DefaultTokenAddress      = "0x00000000000000000000000000000000000070c3"
	DefaultGovernorAddress   = "0x0000000000000000000000000000000000009000"
)

var ErrInvalidConfig = errors.New("invalid config")

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

type TracingExporter string

const (
	TracingExporterNone   TracingExporter = ""
	TracingExporterStdout TracingExporter = "stdout"
	TracingExporterOtlp   TracingExporter = "otlp"
)

func (e TracingExporter) Valid() bool {
	switch e {
	case TracingExporterNone, TracingExporterStdout, TracingExporterOtlp:
		return true
	default:
		return false
	}
}

type Config struct {
	// An empty DatabasePath keeps all state in memory
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	ApiPort         uint   `yaml:"apiPort"         split_words:"true"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	// BlockInterval is the period of the node's block ticker. Zero disables it.
	BlockInterval   string           `yaml:"blockInterval"   split_words:"true"`
	TracingExporter TracingExporter  `yaml:"tracingExporter" split_words:"true"`
	TracingEndpoint string           `yaml:"tracingEndpoint" split_words:"true"`
	Governance      GovernanceConfig `yaml:"governance"`
	Token           TokenConfig      `yaml:"token"`
}

type GovernanceConfig struct {
	VotingDelay       uint64 `yaml:"votingDelay"       envconfig:"VOTING_DELAY"`
	VotingPeriod      uint64 `yaml:"votingPeriod"      envconfig:"VOTING_PERIOD"`
	ProposalThreshold string `yaml:"proposalThreshold" envconfig:"PROPOSAL_THRESHOLD"`
	QuorumPercent     uint64 `yaml:"quorumPercent"     envconfig:"QUORUM_PERCENT"`
	TimelockDelay     uint64 `yaml:"timelockDelay"     envconfig:"TIMELOCK_DELAY"`
	GracePeriod       uint64 `yaml:"gracePeriod"       envconfig:"GRACE_PERIOD"`
	QuadraticUnit     string `yaml:"quadraticUnit"     envconfig:"QUADRATIC_UNIT"`
	Admin             string `yaml:"admin"             envconfig:"ADMIN"`
	GovernorAddress   string `yaml:"governorAddress"   envconfig:"GOVERNOR_ADDRESS"`
}

type TokenConfig struct {
	Address string              `yaml:"address" envconfig:"ADDRESS"`
	Name    string              `yaml:"name"    envconfig:"NAME"`
	Symbol  string              `yaml:"symbol"  envconfig:"SYMBOL"`
	Genesis []GenesisAllocation `yaml:"genesis" ignored:"true"`
}

// GenesisAllocation mints Amount to Address when the token ledger is first
// created. A non-empty Delegate also delegates the voting power.
type GenesisAllocation struct {
	Address  string `yaml:"address"`
	Amount   string `yaml:"amount"`
	Delegate string `yaml:"delegate"`
}

var globalConfig = defaultConfig()

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".gavel",
		BindAddr:        "0.0.0.0",
		ApiPort:         8080,
		MetricsPort:     12798,
		ShutdownTimeout: DefaultShutdownTimeout,
		BlockInterval:   DefaultBlockInterval,
		Governance: GovernanceConfig{
			VotingDelay:       1,
			VotingPeriod:      20,
			ProposalThreshold: DefaultProposalThreshold,
			QuorumPercent:     4,
			QuadraticUnit:     DefaultQuadraticUnit,
			GovernorAddress:   DefaultGovernorAddress,
		},
		Token: TokenConfig{
			Address: DefaultTokenAddress,
			Name:    "Gavel Governance Token",
			Symbol:  "GVL",
		},
	}
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.gavel/gavel.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".gavel", "gavel.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		// Try to check for /etc/gavel/gavel.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/gavel/gavel.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("gavel", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks every derived value so that start-up fails early
func (c *Config) Validate() error {
	if !c.TracingExporter.Valid() {
		return fmt.Errorf(
			"%w: tracingExporter %q (must be 'stdout' or 'otlp')",
			ErrInvalidConfig,
			c.TracingExporter,
		)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.BlockIntervalDuration(); err != nil {
		return err
	}
	if _, err := c.TokenAddress(); err != nil {
		return err
	}
	if _, err := c.GenesisAllocations(); err != nil {
		return err
	}
	if _, err := c.GovernanceParams(); err != nil {
		return err
	}
	return nil
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	ret, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: shutdownTimeout: %w", ErrInvalidConfig, err)
	}
	return ret, nil
}

func (c *Config) BlockIntervalDuration() (time.Duration, error) {
	if c.BlockInterval == "" || c.BlockInterval == "0" {
		return 0, nil
	}
	ret, err := time.ParseDuration(c.BlockInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: blockInterval: %w", ErrInvalidConfig, err)
	}
	if ret < 0 {
		return 0, fmt.Errorf("%w: blockInterval must not be negative", ErrInvalidConfig)
	}
	return ret, nil
}

func (c *Config) TokenAddress() (common.Address, error) {
	return parseAddress("token.address", c.Token.Address)
}

// GovernanceParams converts the governance section into engine parameters
func (c *Config) GovernanceParams() (governance.Params, error) {
	g := c.Governance
	threshold, err := parseAmount("governance.proposalThreshold", g.ProposalThreshold)
	if err != nil {
		return governance.Params{}, err
	}
	unit, err := parseAmount("governance.quadraticUnit", g.QuadraticUnit)
	if err != nil {
		return governance.Params{}, err
	}
	governorAddr, err := parseAddress("governance.governorAddress", g.GovernorAddress)
	if err != nil {
		return governance.Params{}, err
	}
	var admin common.Address
	if g.Admin != "" {
		admin, err = parseAddress("governance.admin", g.Admin)
		if err != nil {
			return governance.Params{}, err
		}
	}
	ret := governance.Params{
		VotingDelay:       g.VotingDelay,
		VotingPeriod:      g.VotingPeriod,
		ProposalThreshold: threshold,
		QuorumPercent:     g.QuorumPercent,
		TimelockDelay:     g.TimelockDelay,
		GracePeriod:       g.GracePeriod,
		QuadraticUnit:     unit,
		Admin:             admin,
		GovernorAddress:   governorAddr,
	}
	if err := ret.Validate(); err != nil {
		return governance.Params{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return ret, nil
}

// GenesisAllocations parses the token genesis allocations
func (c *Config) GenesisAllocations() ([]token.Allocation, error) {
	ret := make([]token.Allocation, 0, len(c.Token.Genesis))
	for i, alloc := range c.Token.Genesis {
		field := fmt.Sprintf("token.genesis[%d]", i)
		addr, err := parseAddress(field+".address", alloc.Address)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(field+".amount", alloc.Amount)
		if err != nil {
			return nil, err
		}
		tmpAlloc := token.Allocation{
			Address: addr,
			Amount:  amount,
		}
		if alloc.Delegate != "" {
			delegate, err := parseAddress(field+".delegate", alloc.Delegate)
			if err != nil {
				return nil, err
			}
			tmpAlloc.Delegate = &delegate
		}
		ret = append(ret, tmpAlloc)
	}
	return ret, nil
}

func parseAddress(field string, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf(
			"%w: %s: not a hex address: %q",
			ErrInvalidConfig,
			field,
			value,
		)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field string, value string) (*uint256.Int, error) {
	ret, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
	}
	return ret, nil
}
