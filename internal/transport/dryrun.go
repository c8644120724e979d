package transport

import (
	"context"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"go.uber.org/zap"
)

// DryRun logs messages instead of sending them.
type DryRun struct {
	Suffix string
}

func (d DryRun) Send(ctx context.Context, address, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Log.Info("dry-run send",
		zap.String("chat_id", address+d.Suffix),
		zap.String("message", message))
	return nil
}
