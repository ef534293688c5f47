package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/blossom/internal/contract"
	"github.com/rpggio/blossom/internal/ledger"
)

// OperationHandler dispatches one contract operation for a caller.
type OperationHandler interface {
	Handle(ctx context.Context, caller ledger.Identity, method string, params json.RawMessage) (any, error)
}

// Server wires HTTP handlers.
type Server struct {
	handler OperationHandler
	logger  *slog.Logger
}

// Options configures the router.
type Options struct {
	// Identity resolves the caller for /rpc. Required.
	Identity func(http.Handler) http.Handler
	// MCP, when set, is mounted at /mcp. It authenticates on its own.
	MCP    http.Handler
	Logger *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(handler OperationHandler, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	srv := &Server{handler: handler, logger: logger}

	r.Get("/health", srv.handleHealth)
	r.Group(func(r chi.Router) {
		if opts.Identity != nil {
			r.Use(opts.Identity)
		}
		r.Post("/rpc", srv.handleRPC)
	})
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, rpcErr := ParseRequest(r.Body)
	if rpcErr != nil {
		WriteError(w, nil, rpcErr)
		return
	}

	caller, ok := IdentityFromContext(r.Context())
	if !ok || caller.MSPID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	result, err := s.handler.Handle(r.Context(), caller, req.Method, req.Params)
	if err != nil {
		s.writeOperationError(w, r, req, caller, err)
		return
	}

	WriteResult(w, req.ID, result)
}

func (s *Server) writeOperationError(w http.ResponseWriter, r *http.Request, req Request, caller ledger.Identity, err error) {
	apiErr := contract.MapError(err)
	if apiErr == nil {
		s.logger.ErrorContext(r.Context(), "operation failed", "method", req.Method, "caller", caller.MSPID, "error", err)
		WriteError(w, req.ID, &Error{Code: ErrInternal, Message: "internal error"})
		return
	}

	s.logger.DebugContext(r.Context(), "operation rejected", "method", req.Method, "caller", caller.MSPID, "code", apiErr.Code)
	WriteError(w, req.ID, &Error{Code: rpcCode(apiErr.Code), Message: apiErr.Message, Data: apiErr})
}

func rpcCode(apiCode string) int {
	switch apiCode {
	case "UNKNOWN_OPERATION":
		return ErrMethodNotFound
	case "INVALID_ARGUMENT":
		return ErrInvalidParams
	default:
		return ErrApplication
	}
}
