//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pendergraft/sourceproof/internal/config"
	"github.com/pendergraft/sourceproof/internal/ledger"
	"github.com/pendergraft/sourceproof/internal/server"
	"github.com/pendergraft/sourceproof/internal/storage"
	"github.com/pendergraft/sourceproof/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	Ledger            *ledgerStub
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("sourceproof"),
		postgres.WithUsername("sourceproof"),
		postgres.WithPassword("sourceproof"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// ledgerStub is an in-process JSON-RPC node answering ledger_getObject from a
// mutable object registry. Tests register objects, the server under test
// reads them back through the real ledger client.
type ledgerStub struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte // address -> module name -> bytecode
	server  *httptest.Server
}

func newLedgerStub() *ledgerStub {
	stub := &ledgerStub{objects: make(map[string]map[string][]byte)}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.handle))
	return stub
}

func (s *ledgerStub) URL() string { return s.server.URL }

func (s *ledgerStub) Close() { s.server.Close() }

// RegisterPackage publishes a package object at address.
func (s *ledgerStub) RegisterPackage(address string, modules map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[address] = modules
}

type ledgerRequest struct {
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// handle answers both single and batch JSON-RPC requests.
func (s *ledgerStub) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if len(bytes.TrimSpace(body)) > 0 && bytes.TrimSpace(body)[0] == '[' {
		var reqs []ledgerRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resps := make([]map[string]any, len(reqs))
		for i, req := range reqs {
			resps[i] = s.respond(req)
		}
		json.NewEncoder(w).Encode(resps)
		return
	}

	var req ledgerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(s.respond(req))
}

func (s *ledgerStub) respond(req ledgerRequest) map[string]any {
	s.mu.Lock()
	modules, ok := s.objects[req.Params[0]]
	s.mu.Unlock()

	result := map[string]any{"status": "notExists"}
	if ok {
		encoded := make(map[string]string, len(modules))
		for name, bytecode := range modules {
			encoded[name] = base64.StdEncoding.EncodeToString(bytecode)
		}
		result = map[string]any{
			"status": "exists",
			"object": map[string]any{
				"address": req.Params[0],
				"kind":    "package",
				"modules": encoded,
			},
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  result,
	}
}

// startServerE starts the sourceproof server in-process with the given config
func startServerE(connString, ledgerEndpoint string) (*httptest.Server, storage.Store, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Ledger: config.LedgerConfig{
			Endpoint:       ledgerEndpoint,
			TimeoutSeconds: 10,
		},
		Verify: config.VerifyConfig{
			FanOut:   4,
			FailFast: true,
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Create store
	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	// Run migrations
	err = store.Migrate(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create the real ledger client pointed at the stub node
	ledgerClient, err := ledger.NewClient(cfg.Ledger.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ledger client: %w", err)
	}

	// Create server
	srv := server.New(cfg, store, ledgerClient, logger)

	testServer := httptest.NewServer(srv.Handler())

	return testServer, store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server) *client.Client {
	return client.New(testServer.URL)
}

// assertAPIError fails unless err is an APIError with the given code
func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected APIError with code %s, got nil", code)
	}
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Fatalf("Expected error code %s, got %s", code, apiErr.Code)
	}
}
