package model

type SessionEventType string

const (
	SessionEventQR    SessionEventType = "qr"
	SessionEventReady SessionEventType = "ready"
)

func (t SessionEventType) Valid() bool {
	return t == SessionEventQR || t == SessionEventReady
}

// SessionEvent is a transport lifecycle notification. Code is only set for qr events.
type SessionEvent struct {
	Type SessionEventType `json:"type"`
	Code string           `json:"code,omitempty"`
}
