package mcp

import (
	"github.com/rpggio/blossom/internal/authz"
)

// ToolDefinition binds an MCP tool to a contract operation.
type ToolDefinition struct {
	Name        string
	Operation   authz.Operation
	Description string
	InputSchema map[string]any
}

func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func date(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "pattern": `^\d{4}-\d{2}-\d{2}$`}
}

func strs(desc string) map[string]any {
	return map[string]any{"type": "array", "description": desc, "items": map[string]any{"type": "string"}}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

var (
	assetID    = str("Asset ID")
	orderID    = str("Order ID")
	account    = str("Account (MSP ID) that owns the order")
	licenseIDs = strs("License IDs")
)

func orderRef() map[string]any {
	return object([]string{"order_id", "account"}, map[string]any{"order_id": orderID, "account": account})
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Inventory
		{
			Name:        "create_asset",
			Operation:   authz.OpCreateAsset,
			Description: "Create a software asset with an initial pool of license IDs (admin only)",
			InputSchema: object([]string{"name", "end_date"}, map[string]any{
				"name":     str("Asset display name"),
				"end_date": date("Contract end date (YYYY-MM-DD)"),
				"licenses": licenseIDs,
			}),
		},
		{
			Name:        "add_licenses",
			Operation:   authz.OpAddLicenses,
			Description: "Add license IDs to an asset's available pool; fails if any ID already exists",
			InputSchema: object([]string{"asset_id", "licenses"}, map[string]any{"asset_id": assetID, "licenses": licenseIDs}),
		},
		{
			Name:        "remove_licenses",
			Operation:   authz.OpRemoveLicenses,
			Description: "Remove available license IDs from an asset; allocated IDs cannot be removed",
			InputSchema: object([]string{"asset_id", "licenses"}, map[string]any{"asset_id": assetID, "licenses": licenseIDs}),
		},
		{
			Name:        "update_end_date",
			Operation:   authz.OpUpdateEndDate,
			Description: "Change an asset's contract end date",
			InputSchema: object([]string{"asset_id", "end_date"}, map[string]any{
				"asset_id": assetID,
				"end_date": date("New contract end date (YYYY-MM-DD)"),
			}),
		},
		{
			Name:        "remove_asset",
			Operation:   authz.OpRemoveAsset,
			Description: "Delete an asset that has no outstanding allocations",
			InputSchema: object([]string{"asset_id"}, map[string]any{"asset_id": assetID}),
		},
		{
			Name:        "list_assets",
			Operation:   authz.OpListAssets,
			Description: "List all assets with available license counts",
			InputSchema: object(nil, map[string]any{}),
		},
		{
			Name:        "get_asset_detail",
			Operation:   authz.OpGetAssetDetail,
			Description: "Get an asset with its available licenses and the licenses allocated to your account",
			InputSchema: object([]string{"asset_id"}, map[string]any{"asset_id": assetID}),
		},
		{
			Name:        "get_asset_history",
			Operation:   authz.OpGetAssetHistory,
			Description: "Get every committed version of an asset",
			InputSchema: object([]string{"asset_id"}, map[string]any{"asset_id": assetID}),
		},

		// Orders
		{
			Name:        "request_quote",
			Operation:   authz.OpRequestQuote,
			Description: "Request a price quote for a new order, or for renewing an allocated order when order_id is set",
			InputSchema: object(nil, map[string]any{
				"order_id": str("Existing allocated order to renew (omit for a new order)"),
				"asset_id": assetID,
				"amount":   integer("Number of licenses"),
				"duration": integer("Duration in years"),
			}),
		},
		{
			Name:        "send_quote",
			Operation:   authz.OpSendQuote,
			Description: "Answer a quote request with a price (admin only)",
			InputSchema: object([]string{"order_id", "account", "price"}, map[string]any{
				"order_id": orderID,
				"account":  account,
				"price":    map[string]any{"type": "number", "description": "Quoted price", "minimum": 0},
			}),
		},
		{
			Name:        "initiate_order",
			Operation:   authz.OpInitiateOrder,
			Description: "Place a new order, or initiate the renewal of a quoted order when order_id is set",
			InputSchema: object([]string{"duration"}, map[string]any{
				"order_id": str("Renewal order to initiate (omit for a new order)"),
				"asset_id": assetID,
				"amount":   integer("Number of licenses"),
				"duration": integer("Duration in years"),
			}),
		},
		{
			Name:        "approve_order",
			Operation:   authz.OpApproveOrder,
			Description: "Approve an initiated order or renewal (admin only)",
			InputSchema: orderRef(),
		},
		{
			Name:        "deny_order",
			Operation:   authz.OpDenyOrder,
			Description: "Deny an order or renewal that has not been allocated (admin only)",
			InputSchema: orderRef(),
		},
		{
			Name:        "delete_order",
			Operation:   authz.OpDeleteOrder,
			Description: "Delete an order that holds no licenses",
			InputSchema: orderRef(),
		},

		// Allocation
		{
			Name:        "allocate_licenses",
			Operation:   authz.OpAllocateLicenses,
			Description: "Allocate licenses to an approved order, or extend the expiration of an approved renewal (admin only)",
			InputSchema: orderRef(),
		},
		{
			Name:        "send_licenses",
			Operation:   authz.OpSendLicenses,
			Description: "Deliver an allocation record to the account; the record must match the committed one exactly (admin only)",
			InputSchema: object([]string{"order_id", "asset_id", "account", "expiration", "licenses"}, map[string]any{
				"order_id":   orderID,
				"asset_id":   assetID,
				"account":    account,
				"expiration": date("Expiration date (YYYY-MM-DD)"),
				"licenses":   licenseIDs,
			}),
		},
		{
			Name:        "return_licenses",
			Operation:   authz.OpReturnLicenses,
			Description: "Return license IDs from your account's copy of an allocation",
			InputSchema: object([]string{"order_id", "asset_id", "account", "licenses"}, map[string]any{
				"order_id": orderID,
				"asset_id": assetID,
				"account":  account,
				"licenses": licenseIDs,
			}),
		},
		{
			Name:        "deallocate_licenses",
			Operation:   authz.OpDeallocateLicenses,
			Description: "Reclaim returned licenses; licenses lists the IDs the account still holds (admin only)",
			InputSchema: object([]string{"order_id", "account", "licenses"}, map[string]any{
				"order_id": orderID,
				"account":  account,
				"licenses": strs("License IDs the account retains"),
			}),
		},

		// Queries
		{
			Name:        "get_order",
			Operation:   authz.OpGetOrder,
			Description: "Get an order",
			InputSchema: orderRef(),
		},
		{
			Name:        "list_orders_for_account",
			Operation:   authz.OpListOrdersForAccount,
			Description: "List every order of an account",
			InputSchema: object([]string{"account"}, map[string]any{"account": account}),
		},
		{
			Name:        "list_orders_for_asset",
			Operation:   authz.OpListOrdersForAsset,
			Description: "List orders for an asset visible to you",
			InputSchema: object([]string{"asset_id"}, map[string]any{"asset_id": assetID}),
		},
		{
			Name:        "list_allocated_licenses_for_asset",
			Operation:   authz.OpListAllocatedLicensesForAsset,
			Description: "List the allocation records an account holds for an asset",
			InputSchema: object([]string{"account", "asset_id"}, map[string]any{"account": account, "asset_id": assetID}),
		},
		{
			Name:        "list_orders_with_expired_licenses",
			Operation:   authz.OpListOrdersWithExpiredLicenses,
			Description: "List an account's orders whose allocations have expired",
			InputSchema: object([]string{"account"}, map[string]any{"account": account}),
		},
		{
			Name:        "get_recent_activity",
			Operation:   authz.OpListActivity,
			Description: "Get recent committed transactions, newest first (admin only)",
			InputSchema: object(nil, map[string]any{
				"operation": str("Filter by operation name, e.g. AllocateLicenses"),
				"caller":    str("Filter by caller MSP ID"),
				"limit":     integer("Maximum number of entries"),
				"offset":    integer("Offset for pagination"),
			}),
		},
	}
}
