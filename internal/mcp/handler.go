package mcp

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/blossom/internal/contract"
	"github.com/rpggio/blossom/internal/transport"
)

func registerTools(server *sdkmcp.Server, h OperationHandler, catalog []ToolDefinition) {
	for _, def := range catalog {
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, toolHandler(h, def))
	}
}

func toolHandler(h OperationHandler, def ToolDefinition) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		caller, ok := transport.IdentityFromContext(ctx)
		if !ok || caller.MSPID == "" {
			return errorResult(&contract.APIError{Code: "UNAUTHORIZED", Message: "no caller identity"}), nil
		}

		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}

		out, err := h.Handle(ctx, caller, string(def.Operation), args)
		if err != nil {
			apiErr := contract.MapError(err)
			if apiErr == nil {
				return nil, err
			}
			return errorResult(apiErr), nil
		}
		return jsonResult(out)
	}
}

func jsonResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(apiErr *contract.APIError) *sdkmcp.CallToolResult {
	data, err := json.Marshal(apiErr)
	if err != nil {
		data = []byte(apiErr.Error())
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}
