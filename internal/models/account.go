package models

// Account holds one user's balances under one currency. Exactly one row per
// (user, currency) pair; rows are created lazily on first read with zero
// balances. Wallet is the spending balance, bank is only reachable through an
// explicit transfer by the account's own holder.
type Account struct {
	UserID     int64 `json:"user_id" db:"user_id"`
	CurrencyID int64 `json:"currency_id" db:"currency_id"`
	Wallet     int64 `json:"wallet" db:"wallet"`
	Bank       int64 `json:"bank" db:"bank"`
}
