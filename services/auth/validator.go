package auth

import (
	"fmt"
	"strings"
	"time"

	"gongbridge/models"
)

// State is the lifecycle position of a session as judged at a point in time.
// It is computed lazily from a snapshot, never stored.
type State string

const (
	StateActive   State = "active"
	StateExpiring State = "expiring"
	StateExpired  State = "expired"
)

// DefaultExpiringFraction is the share of a token's lifetime that must remain
// before the session is reported as expiring. Policy knob, not a hard rule.
const DefaultExpiringFraction = 0.20

// Validate checks the structural invariants of a session snapshot. It returns
// ErrAuthentication for identity/shape problems and ErrSessionExpired when the
// shape is fine but no token is still valid.
func Validate(s models.Session, now time.Time) error {
	if len(s.Tokens) == 0 {
		return fmt.Errorf("%w: session has no tokens", ErrAuthentication)
	}
	if !validEmail(s.UserEmail) {
		return fmt.Errorf("%w: invalid user email %q", ErrAuthentication, s.UserEmail)
	}
	if s.CellID != "" && len(s.CellID) < 3 {
		return fmt.Errorf("%w: invalid cell id %q", ErrAuthentication, s.CellID)
	}
	if len(s.UnexpiredTokens(now)) == 0 {
		return fmt.Errorf("%w: all %d tokens expired", ErrSessionExpired, len(s.Tokens))
	}
	return nil
}

// Expired reports whether the session should be treated as unusable: it is
// inactive, has no tokens, or more than half of its tokens have expired.
// Exactly half expired is still usable.
func Expired(s models.Session, now time.Time) bool {
	if !s.Active || len(s.Tokens) == 0 {
		return true
	}
	expired := 0
	for _, t := range s.Tokens {
		if t.Expired(now) {
			expired++
		}
	}
	return expired*2 > len(s.Tokens)
}

// Expiring reports whether the best token on the session has less than frac of
// its lifetime remaining, so callers can refresh before requests start failing.
func Expiring(s models.Session, now time.Time, frac float64) bool {
	best := time.Duration(-1)
	var bestLifetime time.Duration
	for _, t := range s.Tokens {
		if remaining := t.ExpiresAt.Sub(now); remaining > best {
			best = remaining
			bestLifetime = t.Lifetime()
		}
	}
	if best < 0 || bestLifetime <= 0 {
		return true
	}
	return float64(best) < frac*float64(bestLifetime)
}

// SessionState classifies a snapshot into the coarse lifecycle states used for
// status reporting.
func SessionState(s models.Session, now time.Time) State {
	switch {
	case Expired(s, now):
		return StateExpired
	case Expiring(s, now, DefaultExpiringFraction):
		return StateExpiring
	default:
		return StateActive
	}
}

// validEmail requires an '@' with a non-empty local part and a domain segment
// containing a dot. Not RFC parsing, just enough to reject junk identities.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".")
}
