package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"contractorium/core"
	"contractorium/core/events"
	"contractorium/core/types"
	"contractorium/crypto"
	"contractorium/native/bounty"
	"contractorium/storage"
)

const testChainID = 99

type fixture struct {
	node     *core.Node
	server   *httptest.Server
	client   *Client
	deployer *crypto.PrivateKey
	program  *crypto.PrivateKey
	finder   *crypto.PrivateKey
	contract [20]byte
}

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func raw(key *crypto.PrivateKey) [20]byte {
	return key.PubKey().Address().Raw()
}

func newFixture(t *testing.T, cfg ServerConfig) *fixture {
	t.Helper()
	return newLoggedFixture(t, cfg, nil)
}

func newLoggedFixture(t *testing.T, cfg ServerConfig, logger *slog.Logger) *fixture {
	t.Helper()
	f := &fixture{
		deployer: newKey(t),
		program:  newKey(t),
		finder:   newKey(t),
		contract: crypto.DeriveAddress(bounty.ContractLabel),
	}
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		ChainID: testChainID,
		Genesis: core.Genesis{
			Config:   bounty.DefaultConfig(raw(f.deployer), f.contract),
			Balances: map[[20]byte]uint64{raw(f.program): 10_000},
		},
	})
	require.NoError(t, err)
	f.node = node
	f.server = httptest.NewServer(NewServer(node, cfg, logger).Router())
	t.Cleanup(f.server.Close)
	f.client = NewClient(f.server.URL, "")
	return f
}

func (f *fixture) send(t *testing.T, key *crypto.PrivateKey, txType types.TxType, payload interface{}) (*types.Receipt, error) {
	t.Helper()
	ctx := context.Background()
	nonce, err := f.client.Nonce(ctx, key.PubKey().Address().String())
	require.NoError(t, err)
	tx := &types.Transaction{ChainID: testChainID, Type: txType, Nonce: nonce}
	require.NoError(t, tx.SetPayload(payload))
	require.NoError(t, tx.Sign(key.PrivateKey))
	return f.client.SendTransaction(ctx, tx)
}

func rpcCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "expected RPC error, got %v", err)
	return rpcErr.Code
}

func TestBountyFlowOverRPC(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx := context.Background()

	_, err := f.send(t, f.program, types.TxTypeCreateProgram, types.ProgramPayload{Name: "Acme", Description: "web"})
	require.NoError(t, err)
	owner := raw(f.program)
	receipt, err := f.send(t, f.finder, types.TxTypeCreateReport, types.CreateReportPayload{To: owner[:], Title: "SQLi", Description: "login form"})
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.ClaimID)

	var preview PreviewCutResult
	require.NoError(t, f.client.Call(ctx, "bounty_previewCut", previewCutParams{Amount: 1000}, &preview))
	require.Equal(t, uint64(980), preview.Payout)
	require.Equal(t, uint64(20), preview.Revenue)

	settled, err := f.send(t, f.program, types.TxTypeCloseAndPayReport, types.CloseAndPayPayload{
		ClaimID: 1,
		Note:    "paid",
		Payment: types.PaymentPayload{Sender: owner[:], Receiver: f.contract[:], Amount: 1000},
	})
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusApplied, settled.Status)

	var claim ClaimResult
	require.NoError(t, f.client.Call(ctx, "bounty_getClaim", claimParams{ClaimID: 1}, &claim))
	require.Equal(t, "settled", claim.Status)
	require.Equal(t, f.program.PubKey().Address().String(), claim.Holder)
	require.Empty(t, claim.Reporter)

	var rec SettlementResult
	require.NoError(t, f.client.Call(ctx, "bounty_getSettlement", claimParams{ClaimID: 1}, &rec))
	require.Equal(t, uint64(980), rec.Payout)

	var listed []ClaimResult
	require.NoError(t, f.client.Call(ctx, "bounty_listClaims", listClaimsParams{Reporter: f.finder.PubKey().Address().String()}, &listed))
	require.Len(t, listed, 1)
	require.NoError(t, f.client.Call(ctx, "bounty_listClaims", listClaimsParams{Program: f.program.PubKey().Address().String(), Status: "open"}, &listed))
	require.Empty(t, listed)
	require.NoError(t, f.client.Call(ctx, "bounty_listClaims", listClaimsParams{Program: f.program.PubKey().Address().String(), Status: "Settled"}, &listed))
	require.Len(t, listed, 1)

	var balance BalanceResult
	require.NoError(t, f.client.Call(ctx, "bounty_getBalance", addressParams{Address: f.finder.PubKey().Address().String()}, &balance))
	require.Equal(t, uint64(980), balance.Balance)
	require.Equal(t, uint64(1), balance.Nonce)

	var stored types.Receipt
	require.NoError(t, f.client.Call(ctx, "bounty_getReceipt", receiptParams{TxHash: settled.TxHash}, &stored))
	require.Equal(t, settled.StateRoot, stored.StateRoot)

	var records []events.Record
	require.NoError(t, f.client.Call(ctx, "bounty_listEvents", listEventsParams{After: 0, Limit: 100}, &records))
	require.NotEmpty(t, records)
	require.Equal(t, bounty.EventTypeConfigInitialized, records[0].Event.Type)

	var cfg ConfigResult
	require.NoError(t, f.client.Call(ctx, "bounty_getConfig", nil, &cfg))
	require.Equal(t, bounty.DefaultCutBps, cfg.CutBps)

	status, err := f.client.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(testChainID), status.ChainID)
	require.Equal(t, uint64(3), status.Height)
}

func TestRPCErrorCodes(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx := context.Background()

	err := f.client.Call(ctx, "bounty_nope", nil, nil)
	require.Equal(t, codeMethodNotFound, rpcCode(t, err))

	err = f.client.Call(ctx, "bounty_getClaim", claimParams{ClaimID: 42}, nil)
	require.Equal(t, codeBountyNotFound, rpcCode(t, err))

	err = f.client.Call(ctx, "bounty_getProgram", addressParams{Address: "not-an-address"}, nil)
	require.Equal(t, codeInvalidParams, rpcCode(t, err))

	err = f.client.Call(ctx, "bounty_listClaims", listClaimsParams{}, nil)
	require.Equal(t, codeInvalidParams, rpcCode(t, err))

	err = f.client.Call(ctx, "bounty_listClaims", listClaimsParams{Reporter: f.finder.PubKey().Address().String(), Status: "pending"}, nil)
	require.Equal(t, codeInvalidParams, rpcCode(t, err))

	_, err = f.send(t, f.finder, types.TxTypeSetCut, types.SetCutPayload{CutBps: 100})
	require.Equal(t, codeBountyForbidden, rpcCode(t, err))

	_, err = f.send(t, f.deployer, types.TxTypeSetCut, types.SetCutPayload{CutBps: bounty.BasisPoints + 1})
	require.Equal(t, codeBountyInvalidParams, rpcCode(t, err))

	_, err = f.send(t, f.program, types.TxTypeCreateProgram, types.ProgramPayload{Name: "A", Description: "x"})
	require.NoError(t, err)
	_, err = f.send(t, f.program, types.TxTypeCreateProgram, types.ProgramPayload{Name: "A", Description: "x"})
	require.Equal(t, codeBountyConflict, rpcCode(t, err))
}

func TestMalformedRequests(t *testing.T) {
	f := newFixture(t, ServerConfig{MaxBodyBytes: 64})

	resp, err := http.Post(f.server.URL, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var parsed RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.Equal(t, codeParseError, parsed.Error.Code)

	big := `{"jsonrpc":"2.0","method":"bounty_getStatus","params":[],"id":1,"pad":"` + strings.Repeat("x", 128) + `"}`
	resp2, err := http.Post(f.server.URL, "application/json", strings.NewReader(big))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp2.StatusCode)
}

func TestSendTransactionRequiresBearerWhenConfigured(t *testing.T) {
	secret := "s3cret"
	f := newFixture(t, ServerConfig{JWTSecret: secret, JWTIssuer: "ops", JWTAudience: []string{"contractorium"}})

	_, err := f.send(t, f.program, types.TxTypeCreateProgram, types.ProgramPayload{Name: "A", Description: "x"})
	require.Equal(t, codeUnauthorized, rpcCode(t, err))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "ops",
		"aud": "contractorium",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	f.client = NewClient(f.server.URL, signed)
	_, err = f.send(t, f.program, types.TxTypeCreateProgram, types.ProgramPayload{Name: "A", Description: "x"})
	require.NoError(t, err)

	wrongAudience := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "ops",
		"aud": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err = wrongAudience.SignedString([]byte(secret))
	require.NoError(t, err)
	f.client = NewClient(f.server.URL, signed)
	_, err = f.send(t, f.program, types.TxTypeEditProgram, types.ProgramPayload{Name: "B", Description: "y"})
	require.Equal(t, codeUnauthorized, rpcCode(t, err))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestUnauthorizedWriteLogMasksCredential(t *testing.T) {
	logs := &lockedBuffer{}
	f := newLoggedFixture(t, ServerConfig{JWTSecret: "s3cret"}, slog.New(slog.NewJSONHandler(logs, nil)))
	f.client = NewClient(f.server.URL, "forged-bearer-value")

	_, err := f.send(t, f.program, types.TxTypeCreateProgram, types.ProgramPayload{Name: "A", Description: "x"})
	require.Equal(t, codeUnauthorized, rpcCode(t, err))

	out := logs.String()
	require.Contains(t, out, "rpc write unauthorized")
	require.Contains(t, out, `"authorization":"[REDACTED]"`)
	require.NotContains(t, out, "forged-bearer-value")
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	limiter := newRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	require.True(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.1"))
	require.False(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.2"))
	now = now.Add(time.Second)
	require.True(t, limiter.allow("10.0.0.1"))

	require.True(t, newRateLimiter(0, 0).allow("anyone"))
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/events?after=0&type=bounty.program"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, err = f.send(t, f.program, types.TxTypeCreateProgram, types.ProgramPayload{Name: "A", Description: "x"})
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var rec events.Record
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, bounty.EventTypeProgramCreated, rec.Event.Type)
}
