package gong

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gongbridge/services/auth"
)

// The endpoint wrappers below are thin shims over do(); Gong's internal ajax
// endpoints return loosely-shaped JSON, so results stay as generic maps and
// the caller picks out what it needs.

// GetMyCalls fetches the user's calls.
func (c *Client) GetMyCalls(ctx context.Context, limit, offset int) ([]map[string]interface{}, error) {
	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var resp struct {
		Calls []map[string]interface{} `json:"calls"`
	}
	if err := c.do(ctx, http.MethodGet, "/ajax/home/calls/my-calls", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get my calls: %w", err)
	}
	return resp.Calls, nil
}

// GetCallDetails fetches detailed information about one call.
func (c *Client) GetCallDetails(ctx context.Context, callID string) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/call/"+callID, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get call details: %w", err)
	}
	return resp, nil
}

// GetCallTranscript fetches the transcript of one call.
func (c *Client) GetCallTranscript(ctx context.Context, callID string) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/call/"+callID+"/detailed-transcript", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get call transcript: %w", err)
	}
	return resp, nil
}

// SearchCalls searches calls by free-text query.
func (c *Client) SearchCalls(ctx context.Context, query string, limit int) ([]map[string]interface{}, error) {
	body := map[string]interface{}{"query": query, "limit": limit}

	var resp struct {
		Results []map[string]interface{} `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/json/call/search", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("search calls: %w", err)
	}
	return resp.Results, nil
}

// GetUsers fetches the company's Gong users.
func (c *Client) GetUsers(ctx context.Context) ([]map[string]interface{}, error) {
	var resp struct {
		Users []map[string]interface{} `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/ajax/stats/get-users", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return resp.Users, nil
}

// GetDeals fetches board deals.
func (c *Client) GetDeals(ctx context.Context, limit, offset int) ([]map[string]interface{}, error) {
	body := map[string]interface{}{"limit": limit, "offset": offset}

	var resp struct {
		Deals []map[string]interface{} `json:"deals"`
	}
	if err := c.do(ctx, http.MethodPost, "/dealswebapi/ajax/deals/get-board-deals", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("get deals: %w", err)
	}
	return resp.Deals, nil
}

// GetConversations fetches conversations matching the optional filters.
func (c *Client) GetConversations(ctx context.Context, filters map[string]interface{}, limit int) ([]map[string]interface{}, error) {
	if filters == nil {
		filters = map[string]interface{}{}
	}
	body := map[string]interface{}{"filters": filters, "limit": limit}

	var resp struct {
		Conversations []map[string]interface{} `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodPost, "/conversations/ajax/results", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	return resp.Conversations, nil
}

// GetLibraryData fetches the call library, optionally scoped to a folder.
func (c *Client) GetLibraryData(ctx context.Context, folderID string) (map[string]interface{}, error) {
	var query url.Values
	if folderID != "" {
		query = url.Values{"folder_id": {folderID}}
	}

	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/library/get-library-data", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get library data: %w", err)
	}
	return resp, nil
}

// GetTeamStats fetches an aggregated team activity metric for the period.
func (c *Client) GetTeamStats(ctx context.Context, metric, period string) (map[string]interface{}, error) {
	if period == "" {
		period = "week"
	}
	body := map[string]interface{}{"period": period}

	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/stats/ajax/v2/team/activity/aggregated/"+metric, nil, body, &resp); err != nil {
		return nil, fmt.Errorf("get team stats %s: %w", metric, err)
	}
	return resp, nil
}

// GetDayActivities fetches an account's activities for one day.
func (c *Client) GetDayActivities(ctx context.Context, accountID, date string) ([]map[string]interface{}, error) {
	query := url.Values{"account_id": {accountID}}
	if date != "" {
		query.Set("date", date)
	}

	var resp struct {
		Activities []map[string]interface{} `json:"activities"`
	}
	if err := c.do(ctx, http.MethodGet, "/ajax/account/day-activities", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get day activities: %w", err)
	}
	return resp.Activities, nil
}

// ConnectionStatus describes the result of a connectivity probe.
type ConnectionStatus struct {
	Connected    bool      `json:"connected"`
	BaseURL      string    `json:"baseUrl,omitempty"`
	UserEmail    string    `json:"userEmail,omitempty"`
	CellID       string    `json:"cellId,omitempty"`
	ResponseTime float64   `json:"responseTimeMs"`
	Error        string    `json:"errorMessage,omitempty"`
	LastTested   time.Time `json:"lastTested"`
}

// TestConnection probes a lightweight endpoint to verify the session works.
func (c *Client) TestConnection(ctx context.Context) ConnectionStatus {
	start := time.Now()
	status := ConnectionStatus{LastTested: start}

	if sess, ok := c.store.Current(); ok {
		status.BaseURL = auth.BaseURL(sess)
		if c.baseURL != "" {
			status.BaseURL = c.baseURL
		}
		status.UserEmail = sess.UserEmail
		status.CellID = sess.CellID
	}

	err := c.do(ctx, http.MethodGet, "/ajax/common/rtkn", nil, nil, nil)
	status.ResponseTime = float64(time.Since(start).Milliseconds())
	if err != nil {
		status.Error = err.Error()
		log.Printf("gong connection test failed: %v", err)
		return status
	}

	status.Connected = true
	return status
}
