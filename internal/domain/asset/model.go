package asset

import (
	"time"

	"github.com/rpggio/blossom/internal/domain/licenses"
)

// Asset is a licensable product tracked by the administrator.
type Asset struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	StartDate         string       `json:"start_date"`
	EndDate           string       `json:"end_date"`
	AvailableLicenses licenses.Set `json:"available_licenses"`
}

// AssetSummary is the listing projection of an asset.
type AssetSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	NumAvailable int    `json:"num_available"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// LicenseWithExpiration is an allocated license id and when it lapses.
type LicenseWithExpiration struct {
	LicenseID  string `json:"license_id"`
	Expiration string `json:"expiration"`
}

// AssetDetail adds the available pool and the allocation breakdown,
// keyed account -> order id.
type AssetDetail struct {
	AssetSummary
	TotalLicenses     int                                           `json:"total_licenses"`
	AvailableLicenses []string                                      `json:"available_licenses"`
	AllocatedLicenses map[string]map[string][]LicenseWithExpiration `json:"allocated_licenses"`
}

// HistoryEntry is one committed change to an asset record.
type HistoryEntry struct {
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"is_delete"`
	Asset     *Asset    `json:"asset,omitempty"`
}

// Summary projects the asset for listings.
func (a *Asset) Summary() AssetSummary {
	return AssetSummary{
		ID:           a.ID,
		Name:         a.Name,
		NumAvailable: a.AvailableLicenses.Len(),
		StartDate:    a.StartDate,
		EndDate:      a.EndDate,
	}
}
