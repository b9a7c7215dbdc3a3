package models

import "time"

// ObjectOutcome records the result of extracting one Gong object type. Each
// object type succeeds or fails on its own; one failure never masks the rest.
type ObjectOutcome struct {
	Object   string        `json:"object"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Succeeded reports whether the extraction of this object type completed.
func (o ObjectOutcome) Succeeded() bool {
	return o.Error == ""
}

// ExtractionResult aggregates one full extraction run across object types.
type ExtractionResult struct {
	ID         string                   `json:"extractionId"`
	UserEmail  string                   `json:"userEmail"`
	CellID     string                   `json:"cellId"`
	StartedAt  time.Time                `json:"startedAt"`
	Duration   time.Duration            `json:"duration"`
	Outcomes   []ObjectOutcome          `json:"outcomes"`
	Data       map[string][]interface{} `json:"data,omitempty"`
	Successful int                      `json:"successfulObjects"`
	Failed     int                      `json:"failedObjects"`
}

// ExtractionStats tracks extraction performance across the life of an agent.
type ExtractionStats struct {
	TotalRuns       int           `json:"totalRuns"`
	SuccessfulRuns  int           `json:"successfulRuns"`
	FailedRuns      int           `json:"failedRuns"`
	AverageDuration time.Duration `json:"averageDuration"`
	LastError       string        `json:"lastError,omitempty"`
	LastRun         time.Time     `json:"lastRun,omitzero"`
}
