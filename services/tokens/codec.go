// Package tokens decodes Gong JWT payloads without verifying signatures.
// Signature verification belongs to Gong and the capture flow that produced
// the token; this side only needs the claims.
package tokens

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gongbridge/models"
)

// Claim timestamps outside this window are treated as garbage, not clamped.
const (
	minClaimUnix = 978307200  // 2001-01-01
	maxClaimUnix = 9999999999 // ~2286-11-20
)

// Codec decodes raw JWT strings into typed payloads.
type Codec struct {
	parser *jwt.Parser
}

// NewCodec creates a codec. The parser never validates claims or signatures;
// expiry is the caller's concern and is re-checked on every use.
func NewCodec() *Codec {
	return &Codec{parser: jwt.NewParser(jwt.WithoutClaimsValidation())}
}

// Decode parses the payload of a raw JWT. It returns (nil, false) for anything
// that does not decode into the expected shape; malformed input never errors
// so that extraction can skip bad artifacts and keep going.
func (c *Codec) Decode(raw string) (*models.JWTPayload, bool) {
	// Cheap fast-reject: every JWT we care about starts with the base64 of
	// {"alg". Not a security control, just avoids parsing obvious non-tokens.
	if !strings.HasPrefix(raw, "eyJ") {
		return nil, false
	}

	tok, _, err := c.parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, false
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	payload := models.JWTPayload{
		GP:   stringClaim(claims, "gp"),
		Exp:  intClaim(claims, "exp"),
		Iat:  intClaim(claims, "iat"),
		JTI:  stringClaim(claims, "jti"),
		GU:   stringClaim(claims, "gu"),
		Cell: stringClaim(claims, "cell"),
	}

	if !saneUnix(payload.Exp) || !saneUnix(payload.Iat) {
		return nil, false
	}
	if payload.Iat >= payload.Exp {
		return nil, false
	}

	return &payload, true
}

// Token builds a typed Token from a decoded payload. The payload must have
// come from Decode (or a capture provider that already decoded it); Token does
// not re-validate the claim window.
func Token(kind models.TokenKind, raw string, payload models.JWTPayload) models.Token {
	return models.Token{
		Kind:      kind,
		Raw:       raw,
		Payload:   payload,
		IssuedAt:  time.Unix(payload.Iat, 0).UTC(),
		ExpiresAt: time.Unix(payload.Exp, 0).UTC(),
		CellID:    payload.Cell,
		UserEmail: payload.GU,
	}
}

// Valid reports whether a pre-decoded payload satisfies the same shape checks
// Decode applies, so provider-decoded artifacts get no free pass.
func Valid(payload models.JWTPayload) bool {
	return saneUnix(payload.Exp) && saneUnix(payload.Iat) && payload.Iat < payload.Exp
}

func saneUnix(v int64) bool {
	return v >= minClaimUnix && v <= maxClaimUnix
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func intClaim(claims jwt.MapClaims, key string) int64 {
	switch v := claims[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
