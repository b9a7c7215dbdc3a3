package models

import "time"

// Session is the validated aggregate of tokens, cookies and identity used to
// authorize Gong calls. Sessions are replaced whole on refresh, never patched;
// the only field mutated in place is LastActivity.
type Session struct {
	ID           string            `json:"id"`
	UserEmail    string            `json:"userEmail"`
	CellID       string            `json:"cellId"`
	CompanyID    string            `json:"companyId,omitempty"`
	WorkspaceID  string            `json:"workspaceId,omitempty"`
	Tokens       []Token           `json:"tokens"`
	Cookies      map[string]string `json:"-"` // cleartext cookie values
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity time.Time         `json:"lastActivity"`
	Active       bool              `json:"active"`
}

// UnexpiredTokens returns the tokens still valid at the given time, in the
// order they were extracted.
func (s Session) UnexpiredTokens(now time.Time) []Token {
	var valid []Token
	for _, t := range s.Tokens {
		if !t.Expired(now) {
			valid = append(valid, t)
		}
	}
	return valid
}

// SessionSummary is the diagnostics view of a session that is safe to persist
// and log: identity and counts only, no credential material.
type SessionSummary struct {
	ID         string    `json:"sessionId"`
	UserEmail  string    `json:"userEmail"`
	CellID     string    `json:"cellId"`
	CreatedAt  time.Time `json:"createdAt"`
	TokenCount int       `json:"tokenCount"`
}

// Summary returns the persistable diagnostics view of the session.
func (s Session) Summary() SessionSummary {
	return SessionSummary{
		ID:         s.ID,
		UserEmail:  s.UserEmail,
		CellID:     s.CellID,
		CreatedAt:  s.CreatedAt,
		TokenCount: len(s.Tokens),
	}
}
