package models

import "time"

// Transaction is one append-only log row per balance mutation. Transfers
// write two rows (debit and credit) sharing a reference id.
type Transaction struct {
	ID         int64     `json:"id" db:"id"`
	Reference  string    `json:"reference" db:"reference"`
	UserID     int64     `json:"user_id" db:"user_id"`
	CurrencyID int64     `json:"currency_id" db:"currency_id"`
	Amount     int64     `json:"amount" db:"amount"` // signed, negative = debit
	ToWallet   bool      `json:"to_wallet" db:"to_wallet"`
	Reason     string    `json:"reason" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
