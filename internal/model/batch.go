package model

import "time"

// BatchResult aggregates one dispatch run. Outcomes keep input order.
type BatchResult struct {
	ID          string            `json:"batch_id"`
	Total       int               `json:"total"`
	SentCount   int               `json:"sent"`
	FailedCount int               `json:"failed"`
	Outcomes    []DispatchOutcome `json:"outcomes"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}

// Failures returns the failed outcomes in input order.
func (b BatchResult) Failures() []DispatchOutcome {
	out := make([]DispatchOutcome, 0, b.FailedCount)
	for _, o := range b.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}
