package models

// GuildConfig is the per-scope list of enabled currency ids. A scope is a
// guild, or a per-user pseudo-scope when no guild context exists.
type GuildConfig struct {
	ScopeID    int64   `json:"scope_id" db:"scope_id"`
	Currencies []int64 `json:"currencies" db:"currencies"`
}

// Contains reports whether the currency id is enabled in this config.
func (g *GuildConfig) Contains(currencyID int64) bool {
	for _, id := range g.Currencies {
		if id == currencyID {
			return true
		}
	}
	return false
}
