package activity

import "time"

// ActivityEntry is one committed ledger transaction.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	TxID      string    `json:"tx_id"`
	Operation string    `json:"operation"`
	Caller    string    `json:"caller"`
	Event     string    `json:"event,omitempty"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
