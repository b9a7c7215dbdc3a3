// Package agent is the high-level interface for Gong data extraction. It
// wires authentication, refresh and the API client together and exposes one
// extraction method per Gong object type, each resilient to session expiry.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"gongbridge/models"
	"gongbridge/services/auth"
	"gongbridge/services/gong"
)

// DefaultTarget is the app name handed to the capture provider.
const DefaultTarget = "Gong"

// teamMetrics are the aggregated team activity metrics collected by
// ExtractTeamStats.
var teamMetrics = []string{"avgCallDuration", "totalCalls", "avgWeeklyCalls", "totalDuration"}

// Agent orchestrates extraction against the current session.
type Agent struct {
	auth   *auth.Service
	client *gong.Client
	exec   *Executor

	mu    sync.Mutex
	stats models.ExtractionStats
}

// New creates an agent. The executor's store must be the one authSvc installs
// into; the agent does not check this.
func New(authSvc *auth.Service, client *gong.Client, exec *Executor) *Agent {
	return &Agent{auth: authSvc, client: client, exec: exec}
}

// SetSessionFromHAR bootstraps the agent's session from a HAR capture on
// disk, for the out-of-band flow where a capture already happened.
func (a *Agent) SetSessionFromHAR(fs afero.Fs, path string) (models.Session, error) {
	return a.auth.BuildSessionFromHAR(fs, path)
}

// SetSession bootstraps the agent's session from a raw artifact stream.
func (a *Agent) SetSession(artifacts []models.Artifact) (models.Session, error) {
	return a.auth.BuildSession(artifacts)
}

// SessionInfo is the diagnostic view of the agent's current session.
type SessionInfo struct {
	Status       string    `json:"status"`
	UserEmail    string    `json:"userEmail,omitempty"`
	CellID       string    `json:"cellId,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	LastActivity time.Time `json:"lastActivity,omitzero"`
	TokenCount   int       `json:"tokenCount"`
	CookieCount  int       `json:"cookieCount"`
}

// Session reports the state of the current session without touching it.
func (a *Agent) Session() SessionInfo {
	sess, ok := a.auth.Store().Current()
	if !ok {
		return SessionInfo{Status: "no_session"}
	}
	return SessionInfo{
		Status:       string(auth.SessionState(sess, time.Now())),
		UserEmail:    sess.UserEmail,
		CellID:       sess.CellID,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
		TokenCount:   len(sess.Tokens),
		CookieCount:  len(sess.Cookies),
	}
}

// Status aggregates everything the bridge reports about the agent.
type Status struct {
	State     string                 `json:"agentStatus"`
	Session   SessionInfo            `json:"session"`
	Stats     models.ExtractionStats `json:"extractionStats"`
	RateLimit gong.RateLimitStatus   `json:"rateLimit"`
}

// Status returns the agent's aggregate status.
func (a *Agent) Status() Status {
	info := a.Session()
	state := "ready"
	if info.Status == "no_session" {
		state = "no_session"
	}
	a.mu.Lock()
	stats := a.stats
	a.mu.Unlock()
	return Status{State: state, Session: info, Stats: stats, RateLimit: a.client.RateLimit()}
}

// TestConnection probes the API with the current session.
func (a *Agent) TestConnection(ctx context.Context) gong.ConnectionStatus {
	return a.client.TestConnection(ctx)
}

// ExtractCalls extracts the user's calls, refreshing the session once on an
// auth failure.
func (a *Agent) ExtractCalls(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	var calls []map[string]interface{}
	err := a.exec.Run(ctx, "extract_calls", func(ctx context.Context) error {
		var err error
		calls, err = a.client.GetMyCalls(ctx, limit, 0)
		return err
	})
	return calls, err
}

// ExtractUsers extracts the company's users.
func (a *Agent) ExtractUsers(ctx context.Context) ([]map[string]interface{}, error) {
	var users []map[string]interface{}
	err := a.exec.Run(ctx, "extract_users", func(ctx context.Context) error {
		var err error
		users, err = a.client.GetUsers(ctx)
		return err
	})
	return users, err
}

// ExtractDeals extracts board deals.
func (a *Agent) ExtractDeals(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	var deals []map[string]interface{}
	err := a.exec.Run(ctx, "extract_deals", func(ctx context.Context) error {
		var err error
		deals, err = a.client.GetDeals(ctx, limit, 0)
		return err
	})
	return deals, err
}

// ExtractConversations extracts conversations.
func (a *Agent) ExtractConversations(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	var conversations []map[string]interface{}
	err := a.exec.Run(ctx, "extract_conversations", func(ctx context.Context) error {
		var err error
		conversations, err = a.client.GetConversations(ctx, nil, limit)
		return err
	})
	return conversations, err
}

// ExtractLibrary extracts the call library.
func (a *Agent) ExtractLibrary(ctx context.Context) (map[string]interface{}, error) {
	var library map[string]interface{}
	err := a.exec.Run(ctx, "extract_library", func(ctx context.Context) error {
		var err error
		library, err = a.client.GetLibraryData(ctx, "")
		return err
	})
	return library, err
}

// ExtractTeamStats collects the aggregated team metrics. Individual metrics
// that fail are skipped with a log line; only a failure of every metric (or
// an exhausted auth retry) fails the operation.
func (a *Agent) ExtractTeamStats(ctx context.Context) ([]map[string]interface{}, error) {
	var stats []map[string]interface{}
	err := a.exec.Run(ctx, "extract_team_stats", func(ctx context.Context) error {
		stats = stats[:0]
		var lastErr error
		for _, metric := range teamMetrics {
			value, err := a.client.GetTeamStats(ctx, metric, "week")
			if err != nil {
				if AuthClass(err) {
					return err
				}
				log.Printf("team stats: skipping metric %s: %v", metric, err)
				lastErr = err
				continue
			}
			unit := "count"
			if strings.Contains(metric, "Duration") {
				unit = "seconds"
			}
			stats = append(stats, map[string]interface{}{
				"metric": metric,
				"value":  value,
				"unit":   unit,
				"period": "week",
			})
		}
		if len(stats) == 0 && lastErr != nil {
			return fmt.Errorf("all team metrics failed: %w", lastErr)
		}
		return nil
	})
	return stats, err
}

// SaveResults writes an extraction result to disk as indented JSON.
func (a *Agent) SaveResults(fs afero.Fs, path string, result models.ExtractionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode extraction results: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write extraction results: %w", err)
	}
	return nil
}

// ExtractOptions selects which object types ExtractAll collects.
type ExtractOptions struct {
	Calls         bool
	Users         bool
	Deals         bool
	Conversations bool
	Library       bool
	TeamStats     bool

	CallsLimit         int
	DealsLimit         int
	ConversationsLimit int

	// Workers caps concurrent object-type extractions. The rate limiter
	// still paces individual requests.
	Workers int
}

// DefaultExtractOptions extracts every object type with the stock limits.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Calls: true, Users: true, Deals: true,
		Conversations: true, Library: true, TeamStats: true,
		CallsLimit: 100, DealsLimit: 100, ConversationsLimit: 50,
		Workers: 2,
	}
}

// ExtractAll extracts the selected object types. Each type succeeds or fails
// independently; one type's auth failure never masks another's data. The
// aggregate result records per-type outcomes and updates the agent's stats.
func (a *Agent) ExtractAll(ctx context.Context, opts ExtractOptions) models.ExtractionResult {
	start := time.Now()
	result := models.ExtractionResult{
		ID:        "gong_extraction_" + uuid.NewString(),
		StartedAt: start.UTC(),
		Data:      make(map[string][]interface{}),
	}
	if sess, ok := a.auth.Store().Current(); ok {
		result.UserEmail = sess.UserEmail
		result.CellID = sess.CellID
	}

	type job struct {
		object string
		run    func(ctx context.Context) (int, []interface{}, error)
	}
	var jobs []job
	if opts.Calls {
		jobs = append(jobs, job{"calls", func(ctx context.Context) (int, []interface{}, error) {
			calls, err := a.ExtractCalls(ctx, opts.CallsLimit)
			return len(calls), generic(calls), err
		}})
	}
	if opts.Users {
		jobs = append(jobs, job{"users", func(ctx context.Context) (int, []interface{}, error) {
			users, err := a.ExtractUsers(ctx)
			return len(users), generic(users), err
		}})
	}
	if opts.Deals {
		jobs = append(jobs, job{"deals", func(ctx context.Context) (int, []interface{}, error) {
			deals, err := a.ExtractDeals(ctx, opts.DealsLimit)
			return len(deals), generic(deals), err
		}})
	}
	if opts.Conversations {
		jobs = append(jobs, job{"conversations", func(ctx context.Context) (int, []interface{}, error) {
			conversations, err := a.ExtractConversations(ctx, opts.ConversationsLimit)
			return len(conversations), generic(conversations), err
		}})
	}
	if opts.Library {
		jobs = append(jobs, job{"library", func(ctx context.Context) (int, []interface{}, error) {
			library, err := a.ExtractLibrary(ctx)
			if err != nil || library == nil {
				return 0, nil, err
			}
			return 1, []interface{}{library}, nil
		}})
	}
	if opts.TeamStats {
		jobs = append(jobs, job{"team_stats", func(ctx context.Context) (int, []interface{}, error) {
			stats, err := a.ExtractTeamStats(ctx)
			return len(stats), generic(stats), err
		}})
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	p := pool.New().WithMaxGoroutines(workers)

	var mu sync.Mutex
	for _, j := range jobs {
		j := j // per-iteration copy: required under the go 1.21 language version
		p.Go(func() {
			jobStart := time.Now()
			count, data, err := j.run(ctx)
			outcome := models.ObjectOutcome{
				Object:   j.object,
				Count:    count,
				Duration: time.Since(jobStart),
			}
			if err != nil {
				outcome.Error = err.Error()
				log.Printf("extraction of %s failed: %v", j.object, err)
			}

			mu.Lock()
			defer mu.Unlock()
			result.Outcomes = append(result.Outcomes, outcome)
			if err == nil {
				result.Successful++
				if data != nil {
					result.Data[j.object] = data
				}
			} else {
				result.Failed++
			}
		})
	}
	p.Wait()

	result.Duration = time.Since(start)
	a.updateStats(result)
	log.Printf("extraction %s complete: %d/%d object types in %s",
		result.ID, result.Successful, len(jobs), result.Duration.Round(time.Millisecond))

	return result
}

// updateStats folds one extraction run into the lifetime stats.
func (a *Agent) updateStats(result models.ExtractionResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalRuns++
	if result.Failed == 0 {
		a.stats.SuccessfulRuns++
	} else {
		a.stats.FailedRuns++
		for _, o := range result.Outcomes {
			if o.Error != "" {
				a.stats.LastError = o.Error
			}
		}
	}
	n := time.Duration(a.stats.TotalRuns)
	a.stats.AverageDuration = (a.stats.AverageDuration*(n-1) + result.Duration) / n
	a.stats.LastRun = time.Now().UTC()
}

// Stats returns a copy of the lifetime extraction statistics.
func (a *Agent) Stats() models.ExtractionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func generic(items []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
