package models

import "time"

// GraphCredential stores the per-user Microsoft OAuth token pair used to
// authorize Graph calls. The refresh token is rotated on every exchange.
type GraphCredential struct {
	UserID       string    `db:"user_id" json:"user_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ValidFor reports whether the cached access token is still usable with the
// given freshness buffer before expiry.
func (c *GraphCredential) ValidFor(buffer time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return time.Now().UTC().Add(buffer).Before(c.ExpiresAt)
}
