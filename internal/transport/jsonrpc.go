package transport

import (
	"encoding/json"
	"io"
	"net/http"
)

// Version is the only JSON-RPC version accepted.
const Version = "2.0"

// JSON-RPC 2.0 error codes.
const (
	ErrParseCode      = -32700
	ErrInvalidReq     = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603

	// ErrApplication carries a domain error; Data holds the contract.APIError.
	ErrApplication = -32000
)

// Request is one JSON-RPC call. Batches are not supported.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response carries either Result or Error.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// ParseRequest decodes one request. On failure it returns the error object
// to answer with.
func ParseRequest(body io.Reader) (Request, *Error) {
	var req Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return Request{}, &Error{Code: ErrParseCode, Message: "parse error: " + err.Error()}
	}
	if req.JSONRPC != Version {
		return Request{}, &Error{Code: ErrInvalidReq, Message: `jsonrpc must be "2.0"`}
	}
	if req.Method == "" {
		return Request{}, &Error{Code: ErrInvalidReq, Message: "method is required"}
	}
	return req, nil
}

// WriteResult answers id with result.
func WriteResult(w http.ResponseWriter, id any, result any) {
	write(w, Response{JSONRPC: Version, Result: result, ID: id})
}

// WriteError answers id with rpcErr.
func WriteError(w http.ResponseWriter, id any, rpcErr *Error) {
	write(w, Response{JSONRPC: Version, Error: rpcErr, ID: id})
}

// Errors travel in the body; the status is always 200.
func write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
