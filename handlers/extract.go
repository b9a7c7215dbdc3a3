package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/spf13/afero"

	"gongbridge/api"
	"gongbridge/services/agent"
)

// ExtractHandler runs extractions and persists their results.
type ExtractHandler struct {
	agent      *agent.Agent
	fs         afero.Fs
	resultsDir string
}

func NewExtractHandler(agent *agent.Agent, fs afero.Fs, resultsDir string) *ExtractHandler {
	return &ExtractHandler{agent: agent, fs: fs, resultsDir: resultsDir}
}

type extractRequest struct {
	// Objects selects which object types to extract; empty means all.
	Objects []string `json:"objects"`

	CallsLimit         int `json:"callsLimit"`
	DealsLimit         int `json:"dealsLimit"`
	ConversationsLimit int `json:"conversationsLimit"`

	// Save persists the result to the bridge's results directory.
	Save bool `json:"save"`
}

// Extract runs an extraction and returns the aggregate result. Object types
// fail independently, so a 200 can still carry per-object errors.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := agent.DefaultExtractOptions()
	if len(req.Objects) > 0 {
		opts.Calls, opts.Users, opts.Deals = false, false, false
		opts.Conversations, opts.Library, opts.TeamStats = false, false, false
		for _, obj := range req.Objects {
			switch obj {
			case "calls":
				opts.Calls = true
			case "users":
				opts.Users = true
			case "deals":
				opts.Deals = true
			case "conversations":
				opts.Conversations = true
			case "library":
				opts.Library = true
			case "team_stats":
				opts.TeamStats = true
			default:
				api.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown object type %q", obj))
				return
			}
		}
	}
	if req.CallsLimit > 0 {
		opts.CallsLimit = req.CallsLimit
	}
	if req.DealsLimit > 0 {
		opts.DealsLimit = req.DealsLimit
	}
	if req.ConversationsLimit > 0 {
		opts.ConversationsLimit = req.ConversationsLimit
	}

	result := h.agent.ExtractAll(r.Context(), opts)

	if req.Save {
		name := fmt.Sprintf("%s_%s.json", result.ID, time.Now().UTC().Format("20060102_150405"))
		target := path.Join(h.resultsDir, name)
		if err := h.agent.SaveResults(h.fs, target, result); err != nil {
			log.Printf("failed to save extraction results: %v", err)
		} else {
			log.Printf("extraction results saved to %s", target)
		}
	}

	api.WriteJSON(w, http.StatusOK, result)
}
