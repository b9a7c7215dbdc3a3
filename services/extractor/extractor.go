// Package extractor turns captured authentication artifacts into typed tokens
// and a session cookie map. It is the single conversion boundary between the
// capture provider's loose artifact stream and the typed session model.
package extractor

import (
	"gongbridge/models"
	"gongbridge/services/tokens"
)

// tokenKinds maps token-bearing artifact kinds to the token kind they carry.
var tokenKinds = map[string]models.TokenKind{
	models.ArtifactLastLoginJWT: models.TokenLastLogin,
	models.ArtifactCellJWT:      models.TokenCell,
}

// cookieNames maps plain-cookie artifact kinds to their canonical cookie name,
// used when the artifact itself does not carry one.
var cookieNames = map[string]string{
	models.ArtifactGongSession: "g-session",
	models.ArtifactAWSALB:      "AWSALB",
	models.ArtifactAWSALBTG:    "AWSALBTG",
	models.ArtifactGongUserID:  "ajs_user_id",
	models.ArtifactGongGroupID: "ajs_group_id",
}

// Extractor classifies artifacts and decodes the token-bearing ones.
type Extractor struct {
	codec *tokens.Codec
}

// New creates an extractor with a fresh codec.
func New() *Extractor {
	return &Extractor{codec: tokens.NewCodec()}
}

// Extract walks the artifact stream and returns the decoded tokens plus the
// recorded session cookies. Malformed artifacts are skipped, never fatal; a
// result with zero tokens is valid output and left to the caller to judge.
//
// Tokens are de-duplicated by raw value (the same token observed in a request
// and its response is one token, first observation keeps its position).
// Cookies are last-write-wins by name, matching stream order.
func (e *Extractor) Extract(artifacts []models.Artifact) ([]models.Token, map[string]string) {
	var toks []models.Token
	seen := make(map[string]bool)
	cookies := make(map[string]string)

	for _, a := range artifacts {
		if kind, ok := tokenKinds[a.Kind]; ok {
			tok, ok := e.decodeToken(kind, a)
			if !ok || seen[tok.Raw] {
				continue
			}
			seen[tok.Raw] = true
			toks = append(toks, tok)
			continue
		}

		if name, ok := cookieNames[a.Kind]; ok {
			if a.Name != "" {
				name = a.Name
			}
			cookies[name] = a.Value
		}
	}

	return toks, cookies
}

// decodeToken builds a token from either the provider's pre-decoded payload or
// the raw value. Pre-decoded payloads still go through the same shape checks.
func (e *Extractor) decodeToken(kind models.TokenKind, a models.Artifact) (models.Token, bool) {
	if a.Value == "" {
		return models.Token{}, false
	}
	if a.Decoded != nil {
		if !tokens.Valid(*a.Decoded) {
			return models.Token{}, false
		}
		return tokens.Token(kind, a.Value, *a.Decoded), true
	}
	payload, ok := e.codec.Decode(a.Value)
	if !ok {
		return models.Token{}, false
	}
	return tokens.Token(kind, a.Value, *payload), true
}
