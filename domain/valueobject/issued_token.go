package valueobject

import "time"

// TokenInfo is the display view of a token's lifetime.
type TokenInfo struct {
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssuedToken pairs a freshly minted token with its lifetime.
type IssuedToken struct {
	Token string
	TokenInfo
}

func NewIssuedToken(token string, issuedAt, expiresAt time.Time) IssuedToken {
	return IssuedToken{
		Token: token,
		TokenInfo: TokenInfo{
			IssuedAt:  issuedAt.UTC(),
			ExpiresAt: expiresAt.UTC(),
		},
	}
}

// ExpiresIn is the remaining lifetime in whole seconds relative to now.
func (t IssuedToken) ExpiresIn(now time.Time) int {
	remaining := t.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}
