package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `blossom tracks software license inventory and allocates licenses to accounts through an order workflow.

Core concepts:
- Asset: a software product with a pool of available license IDs and a contract end date. Only the admin organization manages assets.
- Account: an organization (MSP ID). You act as exactly one account.
- Order: an account's request for licenses of one asset. Status moves through QUOTE_REQUESTED, QUOTE_RECEIVED, INITIATED, APPROVED, ALLOCATED, or DENIED. Renewals use the RENEWAL_* statuses.
- Allocation record: the license IDs an order holds and their expiration date. The admin keeps the authoritative copy; the account receives its own copy through send_licenses.

Typical flow:
1) Account: initiate_order (or request_quote, then wait for send_quote).
2) Admin: approve_order, then allocate_licenses. Licenses are taken from the pool in ascending ID order.
3) Admin: send_licenses with the record returned by allocate_licenses, unchanged. Any edit is rejected as INTEGRITY_MISMATCH.
4) Account: return_licenses to give IDs back; admin: deallocate_licenses with the IDs the account kept.
5) Renewal: request_quote or initiate_order with order_id on an ALLOCATED order, approve, then allocate_licenses again to extend the expiration.

Errors come back as JSON with code, message and recovery_hint. MVCC_READ_CONFLICT means a concurrent transaction won; resubmit.

Docs:
- blossom://docs/order-lifecycle
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "blossom://docs/order-lifecycle",
		Name:        "order_lifecycle",
		Title:       "Order lifecycle",
		Description: "Every order status, the action that leaves it, and who may take that action.",
		Content: `# Order lifecycle

| From | Action | To | Who |
|---|---|---|---|
| (new) | request_quote | QUOTE_REQUESTED | account |
| QUOTE_REQUESTED | send_quote | QUOTE_RECEIVED | admin |
| (new) | initiate_order | INITIATED | account |
| INITIATED | approve_order | APPROVED | admin |
| APPROVED | allocate_licenses | ALLOCATED | admin |
| ALLOCATED | request_quote (order_id) | RENEWAL_QUOTE_REQUESTED | account |
| RENEWAL_QUOTE_REQUESTED | send_quote | RENEWAL_QUOTE_RECEIVED | admin |
| RENEWAL_QUOTE_REQUESTED, RENEWAL_QUOTE_RECEIVED | initiate_order (order_id) | RENEWAL_INITIATED | account |
| RENEWAL_INITIATED | approve_order | RENEWAL_APPROVED | admin |
| RENEWAL_APPROVED | allocate_licenses | ALLOCATED | admin |
| QUOTE_REQUESTED, QUOTE_RECEIVED, INITIATED, APPROVED | deny_order | DENIED | admin |
| RENEWAL_QUOTE_REQUESTED, RENEWAL_QUOTE_RECEIVED, RENEWAL_INITIATED, RENEWAL_APPROVED | deny_order | RENEWAL_DENIED | admin |

Any other action fails with INVALID_STATE and leaves the order unchanged.

## Deleting

delete_order succeeds only while the order holds no licenses. Return every ID and have the admin deallocate first.

## Expiration

An allocation expires at the end of its expiration date. list_orders_with_expired_licenses reports orders past that point.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
