package main

import (
	"fmt"
	"strings"

	"contractorium/config"
	"contractorium/core"
	"contractorium/crypto"
	"contractorium/native/bounty"
)

// operatorLoader returns a lazy lookup of the operator address from the
// configured keystore.
func operatorLoader(cfg *config.Config, pass func() (string, error)) func() ([20]byte, error) {
	return func() ([20]byte, error) {
		secret, err := pass()
		if err != nil {
			return [20]byte{}, err
		}
		key, err := crypto.LoadFromKeystore(cfg.KeystorePath, secret)
		if err != nil {
			return [20]byte{}, fmt.Errorf("load operator keystore: %w", err)
		}
		return key.PubKey().Address().Raw(), nil
	}
}

// buildGenesis turns the [Bounty] section into the node's first-start state.
// Blank manager or deployer fields fall back to the operator key, which is
// only read when needed.
func buildGenesis(cfg *config.Config, operator func() ([20]byte, error)) (core.Genesis, error) {
	resolve := func(value string) ([20]byte, error) {
		if strings.TrimSpace(value) == "" {
			return operator()
		}
		return crypto.ParseIdentity(value)
	}
	deployer, err := resolve(cfg.Bounty.Deployer)
	if err != nil {
		return core.Genesis{}, fmt.Errorf("deployer: %w", err)
	}
	manager, err := resolve(cfg.Bounty.Manager)
	if err != nil {
		return core.Genesis{}, fmt.Errorf("manager: %w", err)
	}
	balances, err := cfg.InitialBalances()
	if err != nil {
		return core.Genesis{}, err
	}
	return core.Genesis{
		Config: bounty.Config{
			Manager:  manager,
			Deployer: deployer,
			Contract: crypto.DeriveAddress(bounty.ContractLabel),
			CutBps:   cfg.Bounty.Cut(),
		},
		Balances: balances,
	}, nil
}
