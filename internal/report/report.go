// Package report aggregates dispatch outcomes and forwards finished batches to sinks.
package report

import (
	"context"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"go.uber.org/zap"
)

// Summarize counts outcomes by status. The returned result shares order with outcomes.
func Summarize(outcomes []model.DispatchOutcome) model.BatchResult {
	res := model.BatchResult{
		Total:    len(outcomes),
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		switch o.Status {
		case model.StatusSent:
			res.SentCount++
		case model.StatusFailed:
			res.FailedCount++
		}
	}
	return res
}

// Sink receives every finished batch.
type Sink interface {
	Record(ctx context.Context, res model.BatchResult) error
}

// Fanout forwards a batch to each sink. A failing sink is logged and skipped.
type Fanout []Sink

func (f Fanout) Record(ctx context.Context, res model.BatchResult) error {
	for _, s := range f {
		if err := s.Record(ctx, res); err != nil {
			logger.Log.Warn("report sink failed",
				zap.String("batch_id", res.ID),
				zap.String("sink", sinkName(s)),
				zap.Error(err))
		}
	}
	return nil
}

type named interface{ Name() string }

func sinkName(s Sink) string {
	if n, ok := s.(named); ok {
		return n.Name()
	}
	return "unnamed"
}
