package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/metrics"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/report"
	"github.com/jmehdipour/wa-notifier/internal/transport"
	"go.uber.org/zap"
)

type FailurePolicy string

const (
	// PolicyIsolate records a failed send and moves on to the next recipient.
	PolicyIsolate FailurePolicy = "isolate"
	// PolicyAbort stops sending after the first failed send.
	PolicyAbort FailurePolicy = "abort"
)

// ParseFailurePolicy normalizes input; empty => isolate.
func ParseFailurePolicy(s string) (FailurePolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyIsolate):
		return PolicyIsolate, true
	case string(PolicyAbort):
		return PolicyAbort, true
	default:
		return PolicyIsolate, false
	}
}

const (
	ReasonAborted   = "skipped: batch aborted after earlier failure"
	ReasonCancelled = "skipped: dispatch cancelled"
)

// Item is one entry of a batch. Invalid is set when the record failed validation;
// such items are recorded as failed without a send.
type Item struct {
	Name      string
	Recipient model.Recipient
	Invalid   error
}

// Items wraps already-valid recipients.
func Items(recipients ...model.Recipient) []Item {
	out := make([]Item, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, Item{Name: r.DisplayName, Recipient: r})
	}
	return out
}

// Dispatcher sends one message per item, strictly in order, pausing Delay between sends.
type Dispatcher struct {
	sender transport.Sender
	delay  time.Duration
	policy FailurePolicy

	// wait blocks for d or until ctx ends.
	wait func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(sender transport.Sender, delay time.Duration, policy FailurePolicy) *Dispatcher {
	if delay < 0 {
		delay = 0
	}

	if policy != PolicyAbort {
		policy = PolicyIsolate
	}

	return &Dispatcher{sender: sender, delay: delay, policy: policy, wait: sleepCtx}
}

func (d *Dispatcher) Delay() time.Duration  { return d.delay }
func (d *Dispatcher) Policy() FailurePolicy { return d.policy }

// Dispatch runs the batch. It never returns early: every item gets an outcome, in
// input order. Aborted returns true when PolicyAbort stopped the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item) (res model.BatchResult, aborted bool) {
	outcomes := make([]model.DispatchOutcome, 0, len(items))
	skipReason := ""
	sentBefore := false

	for _, it := range items {
		if skipReason != "" {
			outcomes = append(outcomes, failed(it, skipReason, "skipped"))
			continue
		}

		if it.Invalid != nil {
			outcomes = append(outcomes, failed(it, it.Invalid.Error(), "invalid"))
			continue
		}

		if sentBefore && d.delay > 0 {
			if err := d.wait(ctx, d.delay); err != nil {
				skipReason = ReasonCancelled
				outcomes = append(outcomes, failed(it, skipReason, "skipped"))
				continue
			}
		}
		if ctx.Err() != nil {
			skipReason = ReasonCancelled
			outcomes = append(outcomes, failed(it, skipReason, "skipped"))
			continue
		}

		sentBefore = true
		out, err := d.sendOne(ctx, it)
		outcomes = append(outcomes, out)

		if err != nil && d.policy == PolicyAbort {
			skipReason = ReasonAborted
			aborted = true
		}
	}

	return report.Summarize(outcomes), aborted
}

func (d *Dispatcher) sendOne(ctx context.Context, it Item) (model.DispatchOutcome, error) {
	start := time.Now()
	err := d.sender.Send(ctx, it.Recipient.Address, it.Recipient.Message)
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Log.Warn("send failed",
			zap.String("recipient", it.Recipient.DisplayName),
			zap.String("address", it.Recipient.Address),
			zap.Error(err))
		return failed(it, err.Error(), "transport"), err
	}

	metrics.MessagesTotal.WithLabelValues(model.StatusSent.String(), "ok").Inc()
	logger.Log.Info("message sent",
		zap.String("recipient", it.Recipient.DisplayName),
		zap.String("address", it.Recipient.Address))

	return model.DispatchOutcome{
		Recipient: it.Recipient.DisplayName,
		Address:   it.Recipient.Address,
		Status:    model.StatusSent,
	}, nil
}

func failed(it Item, reason, kind string) model.DispatchOutcome {
	metrics.MessagesTotal.WithLabelValues(model.StatusFailed.String(), kind).Inc()

	name := it.Recipient.DisplayName
	if name == "" {
		name = it.Name
	}
	return model.DispatchOutcome{
		Recipient:     name,
		Address:       it.Recipient.Address,
		Status:        model.StatusFailed,
		FailureReason: reason,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
