package allocation

// ReturnRequest declares license ids an account gives back.
type ReturnRequest struct {
	OrderID  string   `json:"order_id"`
	AssetID  string   `json:"asset_id"`
	Account  string   `json:"account"`
	Licenses []string `json:"licenses"`
}

// DeallocateRequest confirms a return. Licenses are the ids the account
// retains, which must match the account's declared copy.
type DeallocateRequest struct {
	OrderID  string   `json:"order_id"`
	Account  string   `json:"account"`
	Licenses []string `json:"licenses"`
}

// DeallocateResult reports what a confirmed return released.
type DeallocateResult struct {
	OrderID  string   `json:"order_id"`
	AssetID  string   `json:"asset_id"`
	Account  string   `json:"account"`
	Returned []string `json:"returned"`
	Retained []string `json:"retained"`
	Amount   int      `json:"amount"`
}
