// Package testserver runs the full JSON-RPC and MCP stack on httptest for
// end-to-end tests.
package testserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/contract"
	"github.com/rpggio/blossom/internal/domain/activity"
	"github.com/rpggio/blossom/internal/domain/allocation"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/order"
	"github.com/rpggio/blossom/internal/domain/projection"
	"github.com/rpggio/blossom/internal/gateway"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/rpggio/blossom/internal/mcp"
	"github.com/rpggio/blossom/internal/sqlite"
	"github.com/rpggio/blossom/internal/transport"
	"github.com/stretchr/testify/require"
)

const (
	AdminMSP  = "AdminMSP"
	jwtSecret = "testserver-secret"
	jwtIssuer = "blossom-test"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	resolver *transport.JWTResolver

	mu  sync.Mutex
	now time.Time
}

// New starts a server whose world state and activity log live in an
// in-memory SQLite database. accounts maps member MSP IDs to their status.
func New(t *testing.T, accounts map[string]string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	require.NoError(t, db.EnsureRecordFormat(t.Context()))

	policy, err := authz.NewPolicy(AdminMSP, nil)
	require.NoError(t, err)
	directory, err := authz.NewStaticDirectory(AdminMSP, accounts)
	require.NoError(t, err)
	resolver, err := transport.NewJWTResolver(jwtSecret, jwtIssuer)
	require.NoError(t, err)

	ts := &TestServer{DB: db, resolver: resolver, now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	executor := ledger.NewExecutor(sqlite.NewStateRepository(db), AdminMSP,
		ledger.WithClock(ts.clock),
		ledger.WithTxLogger(activitySvc),
	)
	handler := contract.NewHandler(gateway.New(executor, gateway.Options{MaxRetries: 3}, nil), contract.Services{
		Assets:      asset.NewService(policy, nil),
		Orders:      order.NewService(policy, directory, nil),
		Allocations: allocation.NewService(policy, directory, nil),
		Projections: projection.NewService(policy, nil),
		Activity:    activitySvc,
		Authorizer:  policy,
	})

	mcpServer := mcp.NewServer(mcp.Config{
		Handler:       handler,
		Resolver:      resolver,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	ts.Server = httptest.NewServer(transport.NewServer(handler, transport.Options{
		Identity: transport.AuthMiddleware(resolver),
		MCP:      mcp.NewHTTPHandler(mcpServer),
	}))

	t.Cleanup(func() {
		ts.Server.Close()
		_ = db.Close()
	})

	return ts
}

// SetNow moves the ledger clock used for later transactions.
func (ts *TestServer) SetNow(now time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.now = now
}

func (ts *TestServer) clock() time.Time {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.now
}

// Token returns a bearer token for msp.
func (ts *TestServer) Token(t *testing.T, msp string) string {
	t.Helper()
	token, err := ts.resolver.Sign(ledger.Identity{MSPID: msp, Subject: "test"}, time.Hour)
	require.NoError(t, err)
	return token
}

// Call sends one JSON-RPC request as msp and decodes the result into out,
// which may be nil. It returns the JSON-RPC error, if any.
func (ts *TestServer) Call(t *testing.T, msp, method string, params, out any) *transport.Error {
	t.Helper()

	payload, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method, "params": params, "id": 1})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.Server.URL+"/rpc", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.Token(t, msp))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Result json.RawMessage  `json:"result"`
		Error  *transport.Error `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if envelope.Error != nil {
		return envelope.Error
	}
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Result, out))
	}
	return nil
}

// MustCall is Call that fails the test on a JSON-RPC error.
func (ts *TestServer) MustCall(t *testing.T, msp, method string, params, out any) {
	t.Helper()
	if rpcErr := ts.Call(t, msp, method, params, out); rpcErr != nil {
		t.Fatalf("%s as %s: %d %s %v", method, msp, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
}

// ErrorCode returns the application code carried by a JSON-RPC error.
func ErrorCode(rpcErr *transport.Error) string {
	if rpcErr == nil {
		return ""
	}
	data, ok := rpcErr.Data.(map[string]any)
	if !ok {
		return ""
	}
	code, _ := data["code"].(string)
	return code
}
