package models

import "time"

// TokenKind identifies which authentication cookie a token was captured from.
type TokenKind string

const (
	// TokenLastLogin is the primary login JWT issued after the Okta ceremony.
	TokenLastLogin TokenKind = "last_login_jwt"
	// TokenCell is the cell-scoped JWT that pins a user to a Gong cell.
	TokenCell TokenKind = "cell_jwt"
)

// JWTPayload is the decoded claim set of a Gong JWT. The signature is issued
// and checked upstream; this side only reads the claims.
type JWTPayload struct {
	GP   string `json:"gp,omitempty"`
	Exp  int64  `json:"exp"`
	Iat  int64  `json:"iat"`
	JTI  string `json:"jti,omitempty"`
	GU   string `json:"gu,omitempty"`
	Cell string `json:"cell,omitempty"`
}

// Token is a decoded bearer credential derived from a captured artifact.
// A Token is only ever constructed from a payload that decoded cleanly.
type Token struct {
	Kind      TokenKind  `json:"kind"`
	Raw       string     `json:"-"` // never serialized; cleartext credential
	Payload   JWTPayload `json:"payload"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CellID    string     `json:"cellId,omitempty"`
	UserEmail string     `json:"userEmail,omitempty"`
}

// Expired reports whether the token's expiry has passed at the given time.
// Evaluated on every call rather than cached at construction.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Lifetime returns the issued-to-expiry span of the token.
func (t Token) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}
