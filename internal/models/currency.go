package models

import (
	"fmt"
	"time"
)

// Currency is a user-defined virtual currency. Rows are immutable after
// creation; the only lifecycle operations are create and cascade delete.
type Currency struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Icon         string    `json:"icon" db:"icon"`
	OwnerID      int64     `json:"owner_id" db:"owner_id"`
	Hidden       bool      `json:"hidden" db:"hidden"`
	AllowedRoles []int64   `json:"allowed_roles" db:"allowed_roles"` // roles granted banker rights
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// InfoShort renders the currency the way listing surfaces display it.
func (c *Currency) InfoShort() string {
	return fmt.Sprintf("(%s) %s - ID %d", c.Icon, c.Name, c.ID)
}

// CurrencyInfo is the expanded info view: the currency plus how widely it is
// used. Shown before deletion so callers know how many accounts go with it.
type CurrencyInfo struct {
	Currency Currency `json:"currency"`
	Users    int64    `json:"users"`
	Guilds   int64    `json:"guilds"`
}
