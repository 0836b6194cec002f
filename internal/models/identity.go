package models

// Identity is the acting caller, resolved once at the request boundary.
// Sudo marks an elevated caller that bypasses ownership and capacity checks;
// it is a boundary capability, never re-derived inside domain logic.
type Identity struct {
	UserID  int64   `json:"user_id"`
	RoleIDs []int64 `json:"role_ids"`
	Sudo    bool    `json:"sudo"`
}

// HasRole reports whether the caller holds any of the given role ids.
func (i Identity) HasRole(roles []int64) bool {
	for _, want := range roles {
		for _, have := range i.RoleIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Scope is the guild-like context a request acts in. GuildID is zero for a
// DM context, in which case the scope is keyed by the caller's user id.
type Scope struct {
	GuildID      int64 `json:"guild_id"`
	GuildOwnerID int64 `json:"guild_owner_id"`
	UserID       int64 `json:"user_id"`
}

// IsGuild reports whether the scope has a real guild behind it.
func (s Scope) IsGuild() bool {
	return s.GuildID != 0
}

// ID returns the storage key for this scope.
func (s Scope) ID() int64 {
	if s.IsGuild() {
		return s.GuildID
	}
	return s.UserID
}

// MaxCurrencies is the enabled-currency capacity: 5 per guild, 1 per DM.
func (s Scope) MaxCurrencies() int {
	if s.IsGuild() {
		return 5
	}
	return 1
}
