package model

import "time"

type WithdrawalStatus string

const (
	StatusPending WithdrawalStatus = "pending"
	StatusPaid    WithdrawalStatus = "paid"
)

// Account is the per-user ledger record. Balance is in whole naira.
type Account struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Balance     int64        `json:"balance"`
	ReferredBy  string       `json:"referred_by,omitempty"`
	Referrals   []string     `json:"referrals"`
	Withdrawals []Withdrawal `json:"withdrawals"`
	CreatedAt   time.Time    `json:"created_at"`
}

// HasReferral reports whether id was already credited to this account.
func (a Account) HasReferral(id string) bool {
	for _, r := range a.Referrals {
		if r == id {
			return true
		}
	}
	return false
}

// Withdrawal is append-only once created; only Status changes afterwards,
// and only via an explicit transition.
type Withdrawal struct {
	ID        string           `json:"id"`
	AccountID string           `json:"account_id"`
	Amount    int64            `json:"amount"`
	Phone     string           `json:"phone"`
	Network   string           `json:"network"`
	Status    WithdrawalStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
