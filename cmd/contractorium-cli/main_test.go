package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"contractorium/core"
	"contractorium/core/types"
	"contractorium/crypto"
	"contractorium/native/bounty"
	"contractorium/rpc"
	"contractorium/storage"
)

type harness struct {
	t        *testing.T
	endpoint string
	dir      string
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--rpc", h.endpoint}, args...)
	code := run(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	code, stdout, stderr := h.run(args...)
	require.Equal(h.t, 0, code, "command %v failed: %s", args, stderr)
	return stdout
}

func (h *harness) keygen(name string) (string, string) {
	h.t.Helper()
	path := filepath.Join(h.dir, name+".keystore")
	var out keyResult
	require.NoError(h.t, json.Unmarshal([]byte(h.mustRun("keygen", "--out", path)), &out))
	return path, out.Address
}

func decodeReceipt(t *testing.T, raw string) types.Receipt {
	t.Helper()
	var receipt types.Receipt
	require.NoError(t, json.Unmarshal([]byte(raw), &receipt))
	return receipt
}

func newHarness(t *testing.T) *harness {
	t.Setenv(keystorePassEnv, "correct horse")
	return &harness{t: t, dir: t.TempDir()}
}

func (h *harness) startNode(deployer string, balances map[string]uint64) {
	h.t.Helper()
	deployerRaw, err := crypto.ParseIdentity(deployer)
	require.NoError(h.t, err)
	genesis := map[[20]byte]uint64{}
	for addr, amount := range balances {
		raw, err := crypto.ParseIdentity(addr)
		require.NoError(h.t, err)
		genesis[raw] = amount
	}
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		ChainID: 5,
		Genesis: core.Genesis{
			Config:   bounty.DefaultConfig(deployerRaw, crypto.DeriveAddress(bounty.ContractLabel)),
			Balances: genesis,
		},
	})
	require.NoError(h.t, err)
	server := httptest.NewServer(rpc.NewServer(node, rpc.ServerConfig{}, nil).Router())
	h.t.Cleanup(server.Close)
	h.endpoint = server.URL
}

func TestCLISettlementFlow(t *testing.T) {
	h := newHarness(t)
	deployerKey, deployer := h.keygen("deployer")
	programKey, program := h.keygen("program")
	finderKey, finder := h.keygen("finder")
	h.startNode(deployer, map[string]uint64{program: 5000})

	receipt := decodeReceipt(t, h.mustRun("program", "create", "--keystore", programKey, "--name", "Acme", "--description", "web"))
	require.Equal(t, types.ReceiptStatusApplied, receipt.Status)

	receipt = decodeReceipt(t, h.mustRun("report", "create", "--keystore", finderKey, "--program", program, "--title", "SQLi", "--description", "login form"))
	require.Equal(t, uint64(1), receipt.ClaimID)

	var open []rpc.ClaimResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("report", "list", "--program", program, "--status", "open")), &open))
	require.Len(t, open, 1)

	receipt = decodeReceipt(t, h.mustRun("report", "pay", "--keystore", programKey, "--id", "1", "--amount", "1000", "--note", "paid"))
	require.Equal(t, types.ReceiptStatusApplied, receipt.Status)

	require.NoError(t, json.Unmarshal([]byte(h.mustRun("report", "list", "--program", program, "--status", "open")), &open))
	require.Empty(t, open)

	var balance rpc.BalanceResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("balance", "--address", finder)), &balance))
	require.Equal(t, uint64(980), balance.Balance)

	yamlOut := h.mustRun("--output", "yaml", "settlement", "get", "--id", "1")
	require.Contains(t, yamlOut, "payout: 980")
	require.Contains(t, yamlOut, "cutBps: 9800")

	csvPath := filepath.Join(h.dir, "settlements.csv")
	var export exportResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("export", "--program", program, "--format", "csv", "--out", csvPath)), &export))
	require.Equal(t, 1, export.Rows)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	require.Contains(t, string(data), ",1000,980,20,9800,")

	receipt = decodeReceipt(t, h.mustRun("admin", "payday", "--keystore", deployerKey))
	require.Equal(t, uint64(20), receipt.Amount)

	replay := decodeReceipt(t, h.mustRun("report", "pay", "--keystore", programKey, "--id", "1", "--amount", "1000", "--note", "again"))
	require.Equal(t, types.ReceiptStatusRefunded, replay.Status)
	require.NotEmpty(t, replay.RefundReason)
}

func TestCLIAdminAndTransfer(t *testing.T) {
	h := newHarness(t)
	deployerKey, deployer := h.keygen("deployer")
	_, other := h.keygen("other")
	h.startNode(deployer, map[string]uint64{deployer: 100})

	receipt := decodeReceipt(t, h.mustRun("transfer", "--keystore", deployerKey, "--to", other, "--amount", "40"))
	require.Equal(t, types.ReceiptStatusApplied, receipt.Status)

	h.mustRun("admin", "set-cut", "--keystore", deployerKey, "--bps", "9000")
	var preview rpc.PreviewCutResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("preview-cut", "--amount", "1000")), &preview))
	require.Equal(t, uint64(900), preview.Payout)

	code, _, stderr := h.run("admin", "set-cut", "--keystore", deployerKey, "--bps", "10001")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Error:")

	h.mustRun("admin", "resign", "--keystore", deployerKey, "--manager", other)
	var cfg rpc.ConfigResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("config")), &cfg))
	require.Equal(t, other, cfg.Manager)
}

func TestCLIUsageErrors(t *testing.T) {
	h := newHarness(t)
	h.endpoint = "http://127.0.0.1:1"

	code, _, stderr := h.run("nope")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "Unknown command")

	code, _, _ = h.run("report", "list")
	require.Equal(t, 2, code)

	code, _, stderr = h.run("program", "create", "--name", "x")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "--keystore is required")

	code, _, _ = h.run("--output", "xml", "status")
	require.Equal(t, 2, code)

	code, _, _ = h.run("export", "--out", filepath.Join(h.dir, "x"), "--format", "xlsx", "--dsn", "a.db")
	require.Equal(t, 2, code)

	code, stdout, _ := h.run("help")
	require.Equal(t, 0, code)
	require.True(t, strings.HasPrefix(stdout, "Usage: contractorium-cli"))
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	h := newHarness(t)
	path, address := h.keygen("key")
	code, _, stderr := h.run("keygen", "--out", path)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "already exists")

	var out keyResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("address", "--keystore", path)), &out))
	require.Equal(t, address, out.Address)
}
