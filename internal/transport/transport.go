// Package transport delivers rendered messages to chat contacts through the
// WhatsApp bridge that owns the paired session.
package transport

import (
	"context"
	"errors"
)

var (
	ErrUnavailable = errors.New("transport unavailable")
	ErrRejected    = errors.New("transport rejected message")
)

// Sender is the send capability the dispatcher consumes. address is the bare
// country-prefixed number; implementations add their own routing suffix.
type Sender interface {
	Send(ctx context.Context, address, message string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, address, message string) error

func (f SenderFunc) Send(ctx context.Context, address, message string) error {
	return f(ctx, address, message)
}
