package model

import "time"

// OutcomeEvent is the payload published to Kafka for every dispatched recipient.
type OutcomeEvent struct {
	BatchID       string        `json:"batch_id"`
	Seq           int           `json:"seq"`
	Recipient     string        `json:"recipient"`
	Address       string        `json:"address"`
	Status        OutcomeStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	At            time.Time     `json:"at"`
}
