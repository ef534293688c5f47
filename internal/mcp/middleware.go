package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/rpggio/blossom/internal/transport"
)

func skipsIdentity(method string) bool {
	return method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/")
}

func headerValue(req sdkmcp.Request, name string) string {
	extra := req.GetExtra()
	if extra == nil || extra.Header == nil {
		return ""
	}
	return extra.Header.Get(name)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver transport.IdentityResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if skipsIdentity(method) {
				return next(ctx, method, req)
			}

			token := transport.BearerToken(headerValue(req, "Authorization"))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			caller, err := resolver.ResolveIdentity(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if caller.MSPID == "" {
				return nil, fmt.Errorf("unauthorized: token names no organization")
			}

			return next(transport.WithIdentity(ctx, caller), method, req)
		}
	}
}

// noAuthMiddleware uses the MSP header when present and defaultMSP otherwise.
// Stdio requests carry no headers and always get defaultMSP.
func noAuthMiddleware(defaultMSP string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			msp := strings.TrimSpace(headerValue(req, transport.MSPHeader))
			if msp == "" {
				msp = defaultMSP
			}
			return next(transport.WithIdentity(ctx, ledger.Identity{MSPID: msp}), method, req)
		}
	}
}
