package authz

import (
	"context"
	"fmt"
)

// Status is an account's governance status.
type Status string

const (
	StatusAuthorized   Status = "AUTHORIZED"
	StatusPending      Status = "PENDING"
	StatusUnauthorized Status = "UNAUTHORIZED"
)

// StaticDirectory serves account statuses from configuration. The
// administrator is always authorized; unlisted accounts are not.
type StaticDirectory struct {
	adminMSP string
	statuses map[string]Status
}

func NewStaticDirectory(adminMSP string, statuses map[string]string) (*StaticDirectory, error) {
	d := &StaticDirectory{adminMSP: adminMSP, statuses: make(map[string]Status, len(statuses))}
	for account, raw := range statuses {
		switch s := Status(raw); s {
		case StatusAuthorized, StatusPending, StatusUnauthorized:
			d.statuses[account] = s
		default:
			return nil, fmt.Errorf("unknown status %q for account %s", raw, account)
		}
	}
	return d, nil
}

// Status returns the recorded status of account.
func (d *StaticDirectory) Status(account string) Status {
	if account == d.adminMSP {
		return StatusAuthorized
	}
	if s, ok := d.statuses[account]; ok {
		return s
	}
	return StatusUnauthorized
}

func (d *StaticDirectory) IsAuthorized(_ context.Context, account string) (bool, error) {
	return d.Status(account) == StatusAuthorized, nil
}
