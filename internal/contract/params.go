package contract

// AssetIDParams names an asset.
type AssetIDParams struct {
	AssetID string `json:"asset_id"`
}

// AssetLicensesParams carries license ids for an asset.
type AssetLicensesParams struct {
	AssetID  string   `json:"asset_id"`
	Licenses []string `json:"licenses"`
}

// UpdateEndDateParams sets a new contract end date.
type UpdateEndDateParams struct {
	AssetID string `json:"asset_id"`
	EndDate string `json:"end_date"`
}

// AccountParams names an account.
type AccountParams struct {
	Account string `json:"account"`
}

// AccountAssetParams names an account and an asset.
type AccountAssetParams struct {
	Account string `json:"account"`
	AssetID string `json:"asset_id"`
}

// ListActivityParams filters the activity log.
type ListActivityParams struct {
	Operation string `json:"operation,omitempty"`
	Caller    string `json:"caller,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// StatusResponse acknowledges an operation without a result body.
type StatusResponse struct {
	Status string `json:"status"`
}
