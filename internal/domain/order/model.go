package order

// Order is one account's request to license an asset.
type Order struct {
	ID                string  `json:"id"`
	Account           string  `json:"account"`
	Status            Status  `json:"status"`
	InitiationDate    string  `json:"initiation_date"`
	ApprovalDate      string  `json:"approval_date"`
	AllocatedDate     string  `json:"allocated_date"`
	LatestRenewalDate string  `json:"latest_renewal_date"`
	AssetID           string  `json:"asset_id"`
	Amount            int     `json:"amount"`
	Duration          int     `json:"duration"`
	Price             float64 `json:"price"`
}

// QuoteRequest asks for a quote. With OrderID set it starts a renewal of an
// allocated order; otherwise it opens a new order for AssetID.
type QuoteRequest struct {
	OrderID  string `json:"order_id,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// SendQuoteRequest prices a requested quote.
type SendQuoteRequest struct {
	OrderID string  `json:"order_id"`
	Account string  `json:"account"`
	Price   float64 `json:"price"`
}

// InitiateRequest commits to an order. With OrderID set it initiates a
// renewal for Duration more years; otherwise it opens a new order.
type InitiateRequest struct {
	OrderID  string `json:"order_id,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Duration int    `json:"duration"`
}

// Ref identifies an order.
type Ref struct {
	OrderID string `json:"order_id"`
	Account string `json:"account"`
}
