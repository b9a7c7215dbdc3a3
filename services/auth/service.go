// Package auth builds validated Gong sessions out of captured artifacts and
// owns the store that holds the current one.
package auth

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"gongbridge/models"
	"gongbridge/services/extractor"
)

// Service turns raw capture artifacts into validated sessions.
type Service struct {
	extractor *extractor.Extractor
	store     *Store
}

// NewService creates an authenticator that installs sessions into store.
func NewService(store *Store) *Service {
	return &Service{
		extractor: extractor.New(),
		store:     store,
	}
}

// Store returns the session store this authenticator installs into.
func (s *Service) Store() *Store {
	return s.store
}

// BuildSession converts an artifact stream into a validated session, installs
// it as current and returns it.
//
// It fails with ErrAuthentication when no tokens were extractable or no token
// carries an identity, and with ErrSessionExpired when every extracted token
// is already expired.
func (s *Service) BuildSession(artifacts []models.Artifact) (models.Session, error) {
	now := time.Now().UTC()

	toks, cookies := s.extractor.Extract(artifacts)
	if len(toks) == 0 {
		return models.Session{}, fmt.Errorf("%w: no tokens found in artifacts", ErrAuthentication)
	}

	email, cell, ok := deriveIdentity(toks)
	if !ok {
		return models.Session{}, fmt.Errorf("%w: no token carries a user identity", ErrAuthentication)
	}

	sess := models.Session{
		ID:           uuid.NewString(),
		UserEmail:    email,
		CellID:       cell,
		Tokens:       toks,
		Cookies:      cookies,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}

	if err := Validate(sess, now); err != nil {
		return models.Session{}, err
	}

	s.store.Replace(sess)
	log.Printf("session %s built for %s (cell=%s, tokens=%d, cookies=%d)",
		sess.ID, sess.UserEmail, sess.CellID, len(sess.Tokens), len(sess.Cookies))

	return sess, nil
}

// BuildSessionFromHAR extracts artifacts from a HAR capture on disk and builds
// a session from them.
func (s *Service) BuildSessionFromHAR(fs afero.Fs, path string) (models.Session, error) {
	artifacts, err := s.extractor.FromHAR(fs, path)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return s.BuildSession(artifacts)
}

// deriveIdentity scans tokens in extraction order and takes the identity from
// the first one carrying both a user email and a cell id. Company and
// workspace ids have no claim source and stay unset unless supplied
// out-of-band.
func deriveIdentity(toks []models.Token) (email, cell string, ok bool) {
	for _, t := range toks {
		if t.UserEmail != "" && t.CellID != "" {
			return t.UserEmail, t.CellID, true
		}
	}
	return "", "", false
}
