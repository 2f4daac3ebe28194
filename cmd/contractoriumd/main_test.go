package main

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"contractorium/config"
	"contractorium/crypto"
	"contractorium/native/bounty"
)

func TestBuildGenesisUsesConfiguredAuthorities(t *testing.T) {
	manager := crypto.DeriveAddress("manager")
	deployer := crypto.DeriveAddress("deployer")
	funded := crypto.DeriveAddress("funded")
	cut := uint32(9500)
	cfg := &config.Config{Bounty: config.BountyConfig{
		Manager:         crypto.AddressFromRaw(manager).String(),
		Deployer:        crypto.AddressFromRaw(deployer).String(),
		CutBps:          &cut,
		InitialBalances: map[string]uint64{crypto.AddressFromRaw(funded).String(): 42},
	}}
	operator := func() ([20]byte, error) { return [20]byte{}, errors.New("operator key should not be read") }

	genesis, err := buildGenesis(cfg, operator)
	require.NoError(t, err)
	require.Equal(t, manager, genesis.Config.Manager)
	require.Equal(t, deployer, genesis.Config.Deployer)
	require.Equal(t, crypto.DeriveAddress(bounty.ContractLabel), genesis.Config.Contract)
	require.Equal(t, cut, genesis.Config.CutBps)
	require.Equal(t, uint64(42), genesis.Balances[funded])
}

func TestBuildGenesisFallsBackToOperator(t *testing.T) {
	op := crypto.DeriveAddress("operator")
	calls := 0
	genesis, err := buildGenesis(&config.Config{}, func() ([20]byte, error) {
		calls++
		return op, nil
	})
	require.NoError(t, err)
	require.Equal(t, op, genesis.Config.Manager)
	require.Equal(t, op, genesis.Config.Deployer)
	require.Equal(t, bounty.DefaultCutBps, genesis.Config.CutBps)
	require.Equal(t, 2, calls)
}

func TestOperatorLoaderReadsKeystore(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	path := t.TempDir() + "/operator.keystore"
	require.NoError(t, crypto.SaveToKeystore(path, key, "pw"))

	load := operatorLoader(&config.Config{KeystorePath: path}, func() (string, error) { return "pw", nil })
	addr, err := load()
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().Raw(), addr)

	bad := operatorLoader(&config.Config{KeystorePath: path}, func() (string, error) { return "wrong", nil })
	_, err = bad()
	require.Error(t, err)
}

func TestRPCServerConfigReadsSecretFromEnv(t *testing.T) {
	cfg := &config.Config{RPC: config.RPCConfig{
		JWTSecretEnv:       "RPC_SECRET",
		JWTIssuer:          "ops",
		RateLimitPerSecond: 5,
		RateLimitBurst:     10,
		MaxBodyBytes:       1024,
	}}
	out := rpcServerConfig(cfg, func(key string) string {
		if key == "RPC_SECRET" {
			return " s3cret "
		}
		return ""
	})
	require.Equal(t, "s3cret", out.JWTSecret)
	require.Equal(t, "ops", out.JWTIssuer)
	require.Equal(t, 10, out.RateLimitBurst)

	cfg.RPC.JWTSecretEnv = ""
	require.Empty(t, rpcServerConfig(cfg, func(string) string { return "ignored" }).JWTSecret)
}

func TestListenCapsConnections(t *testing.T) {
	ln, err := listen("127.0.0.1:0", 1)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 2)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	first, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	second, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	var served net.Conn
	select {
	case served = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection was not accepted")
	}
	select {
	case <-accepted:
		t.Fatal("second connection accepted past the limit")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, served.Close())
	select {
	case conn := <-accepted:
		require.NoError(t, conn.Close())
	case <-time.After(2 * time.Second):
		t.Fatal("second connection was not accepted after the first closed")
	}
}

func TestListenUnlimited(t *testing.T) {
	ln, err := listen("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer ln.Close()
	_, plain := ln.(*net.TCPListener)
	require.True(t, plain)
}
