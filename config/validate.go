package config

import (
	"fmt"
	"strings"

	"contractorium/crypto"
	"contractorium/native/bounty"
)

// Validate checks ranges and address encodings.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chain id must be non-zero")
	}
	if err := bounty.ValidateCutBps(c.Bounty.Cut()); err != nil {
		return fmt.Errorf("bounty: %w", err)
	}
	for name, value := range map[string]string{"manager": c.Bounty.Manager, "deployer": c.Bounty.Deployer} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := crypto.ParseIdentity(value); err != nil {
			return fmt.Errorf("bounty: %s: %w", name, err)
		}
	}
	for addr := range c.Bounty.InitialBalances {
		if _, err := crypto.ParseIdentity(addr); err != nil {
			return fmt.Errorf("bounty: initial balance %q: %w", addr, err)
		}
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must be non-negative")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: max body bytes must be non-negative")
	}
	if c.RPC.MaxConnections < 0 {
		return fmt.Errorf("rpc: max connections must be non-negative")
	}
	if c.Indexer.Enabled && strings.TrimSpace(c.Indexer.DSN) == "" {
		return fmt.Errorf("indexer: dsn required when enabled")
	}
	if strings.TrimSpace(c.Indexer.WebhookURL) != "" && strings.TrimSpace(c.Indexer.WebhookSecretEnv) == "" {
		return fmt.Errorf("indexer: webhook secret env required with webhook url")
	}
	return nil
}

// InitialBalances decodes the configured genesis balances.
func (c *Config) InitialBalances() (map[[20]byte]uint64, error) {
	out := make(map[[20]byte]uint64, len(c.Bounty.InitialBalances))
	for addr, amount := range c.Bounty.InitialBalances {
		raw, err := crypto.ParseIdentity(addr)
		if err != nil {
			return nil, err
		}
		out[raw] = amount
	}
	return out, nil
}
