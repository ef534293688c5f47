package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/rpggio/blossom/internal/transport"
)

// OperationHandler dispatches one contract operation for a caller.
type OperationHandler interface {
	Handle(ctx context.Context, caller ledger.Identity, method string, params json.RawMessage) (any, error)
}

// Config contains server configuration.
type Config struct {
	Handler       OperationHandler
	Resolver      transport.IdentityResolver
	AuthEnabled   bool
	DefaultMSP    string
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "blossom",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	// Stdio is local only and never authenticates.
	identity := noAuthMiddleware(cfg.DefaultMSP)
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		identity = authMiddleware(cfg.Resolver)
	}
	server.AddReceivingMiddleware(identity, trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	registerTools(server, cfg.Handler, buildToolCatalog())

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, nil)
}

// RunStdio serves server on stdin/stdout until ctx is done or the client
// disconnects.
func RunStdio(ctx context.Context, server *sdkmcp.Server) error {
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}
