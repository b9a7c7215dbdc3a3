package handlers

import (
	"net/http"

	"gongbridge/api"
	"gongbridge/services/agent"
)

// StatusHandler reports bridge and agent health.
type StatusHandler struct {
	agent *agent.Agent
}

func NewStatusHandler(agent *agent.Agent) *StatusHandler {
	return &StatusHandler{agent: agent}
}

// GetStatus returns agent state, session summary, extraction stats and the
// upstream rate-limit snapshot.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.agent.Status())
}

// TestConnection probes the Gong API with the current session.
func (h *StatusHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	status := h.agent.TestConnection(r.Context())
	code := http.StatusOK
	if !status.Connected {
		code = http.StatusBadGateway
	}
	api.WriteJSON(w, code, status)
}
