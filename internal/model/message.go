package model

import "time"

type OutcomeStatus string

const (
	StatusSent   OutcomeStatus = "sent"
	StatusFailed OutcomeStatus = "failed"
)

func (s OutcomeStatus) String() string {
	return string(s)
}

func (s OutcomeStatus) Valid() bool {
	return s == StatusSent || s == StatusFailed
}

// DispatchOutcome is the result of one send attempt. FailureReason is set iff Status is failed.
type DispatchOutcome struct {
	Recipient     string        `json:"recipient"`
	Address       string        `json:"address,omitempty"`
	Status        OutcomeStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

// OutcomeRow is the audited form of an outcome, as stored by the outcomes repository.
type OutcomeRow struct {
	BatchID       string        `db:"batch_id" json:"batch_id"`
	Seq           int           `db:"seq" json:"seq"`
	Recipient     string        `db:"recipient" json:"recipient"`
	Address       string        `db:"address" json:"address"`
	Status        OutcomeStatus `db:"status" json:"status"`
	FailureReason string        `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}
