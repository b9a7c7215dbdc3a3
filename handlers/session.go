package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/afero"

	"gongbridge/api"
	"gongbridge/models"
	"gongbridge/services/agent"
	"gongbridge/services/auth"
)

// SessionHandler manages the bridge's Gong session: diagnostics, artifact
// ingestion, and teardown. Raw token and cookie values never leave this
// handler; responses carry summaries only.
type SessionHandler struct {
	agent *agent.Agent
	auth  *auth.Service
	fs    afero.Fs
}

func NewSessionHandler(agent *agent.Agent, authSvc *auth.Service, fs afero.Fs) *SessionHandler {
	return &SessionHandler{agent: agent, auth: authSvc, fs: fs}
}

type sessionResponse struct {
	Session agent.SessionInfo       `json:"session"`
	History []models.SessionSummary `json:"history,omitempty"`
}

// GetSession returns the current session summary plus historical summaries.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, sessionResponse{
		Session: h.agent.Session(),
		History: h.auth.Store().History(),
	})
}

type createSessionRequest struct {
	// Artifacts is a capture's cookie stream, posted directly.
	Artifacts []models.Artifact `json:"artifacts"`
	// HARPath points at a capture file on the bridge host instead.
	HARPath string `json:"harPath"`
}

// CreateSession builds and installs a session from posted artifacts or a HAR
// capture on disk. Exactly one input must be supplied.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if (len(req.Artifacts) == 0) == (req.HARPath == "") {
		api.WriteError(w, http.StatusBadRequest, "provide either artifacts or harPath")
		return
	}

	var (
		sess models.Session
		err  error
	)
	if req.HARPath != "" {
		sess, err = h.agent.SetSessionFromHAR(h.fs, req.HARPath)
	} else {
		sess, err = h.agent.SetSession(req.Artifacts)
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrAuthentication) || errors.Is(err, auth.ErrSessionExpired) {
			status = http.StatusUnauthorized
		}
		api.WriteError(w, status, err.Error())
		return
	}

	api.WriteJSON(w, http.StatusCreated, sess.Summary())
}

// DeleteSession deactivates the current session.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.auth.Store().Deactivate()
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
