package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/wa-notifier/internal/dispatcher"
	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/metrics"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/recipient"
	"github.com/jmehdipour/wa-notifier/internal/report"
	"github.com/jmehdipour/wa-notifier/internal/sheet"
	"github.com/jmehdipour/wa-notifier/internal/util"
	"go.uber.org/zap"
)

const sinkTimeout = 10 * time.Second

var (
	// ErrRejected wraps sheet.ErrEmptyInput and sheet.ErrMalformedInput; no send was attempted.
	ErrRejected = errors.New("upload rejected")
	// ErrAborted is returned together with the result when the abort policy stopped a batch.
	ErrAborted = errors.New("batch aborted after a failed send")
	// ErrCancelled is returned together with the result when ctx ended before every
	// recipient was reached.
	ErrCancelled = errors.New("batch cancelled before completion")
)

// Service turns one uploaded sheet into a dispatched, reported batch.
type Service struct {
	normalizer *recipient.Normalizer
	dispatch   *dispatcher.Dispatcher
	sink       report.Sink

	extract func(path string) ([]sheet.Row, error)
}

// New constructs the broadcast service. sink may be nil.
func New(n *recipient.Normalizer, d *dispatcher.Dispatcher, sink report.Sink) *Service {
	return &Service{normalizer: n, dispatch: d, sink: sink, extract: sheet.Extract}
}

// Process extracts, validates, dispatches and reports the sheet at path. It does not
// remove the file; the caller owns it.
func (s *Service) Process(ctx context.Context, path string) (model.BatchResult, error) {
	batchID := util.New()
	log := logger.Log.With(zap.String("batch_id", batchID))

	rows, err := s.extract(path)
	if err != nil {
		if errors.Is(err, sheet.ErrEmptyInput) || errors.Is(err, sheet.ErrMalformedInput) {
			metrics.BatchesTotal.WithLabelValues("rejected").Inc()
			log.Info("upload rejected", zap.Error(err))
			return model.BatchResult{}, fmt.Errorf("%w: %w", ErrRejected, err)
		}
		metrics.BatchesTotal.WithLabelValues("error").Inc()
		return model.BatchResult{}, fmt.Errorf("extract rows: %w", err)
	}

	items := s.validate(sheet.Records(rows))

	log.Info("dispatching batch",
		zap.Int("recipients", len(items)),
		zap.Duration("delay", s.dispatch.Delay()),
		zap.String("policy", string(s.dispatch.Policy())))

	started := time.Now()
	res, aborted := s.dispatch.Dispatch(ctx, items)
	res.ID = batchID
	res.StartedAt = started
	res.FinishedAt = time.Now()

	log.Info("batch finished",
		zap.Int("total", res.Total),
		zap.Int("sent", res.SentCount),
		zap.Int("failed", res.FailedCount),
		zap.Bool("aborted", aborted),
		zap.Duration("took", res.FinishedAt.Sub(started)))

	if s.sink != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := s.sink.Record(sctx, res); err != nil {
			log.Warn("report sink failed", zap.Error(err))
		}
		cancel()
	}

	if cancelled(res) {
		metrics.BatchesTotal.WithLabelValues("cancelled").Inc()
		return res, ErrCancelled
	}
	if aborted {
		metrics.BatchesTotal.WithLabelValues("error").Inc()
		return res, ErrAborted
	}
	metrics.BatchesTotal.WithLabelValues("reported").Inc()
	return res, nil
}

func (s *Service) validate(records []model.RecipientRecord) []dispatcher.Item {
	items := make([]dispatcher.Item, 0, len(records))
	for i, rec := range records {
		r, err := s.normalizer.Normalize(rec)
		if err != nil {
			name := strings.TrimSpace(rec.Name)
			if name == "" {
				name = fmt.Sprintf("record %d", i+1)
			}
			items = append(items, dispatcher.Item{Name: name, Invalid: err})
			continue
		}
		items = append(items, dispatcher.Items(r)...)
	}
	return items
}

func cancelled(res model.BatchResult) bool {
	for _, o := range res.Outcomes {
		if o.FailureReason == dispatcher.ReasonCancelled {
			return true
		}
	}
	return false
}
