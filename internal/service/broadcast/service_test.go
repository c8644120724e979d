package broadcast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/wa-notifier/internal/dispatcher"
	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/recipient"
	"github.com/jmehdipour/wa-notifier/internal/sheet"
	"github.com/jmehdipour/wa-notifier/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sentMsg struct{ address, message string }

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMsg
	fail map[string]error
}

func (f *fakeSender) Send(ctx context.Context, address, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{address, message})
	return f.fail[address]
}

type captureSink struct {
	got []model.BatchResult
}

func (c *captureSink) Record(ctx context.Context, res model.BatchResult) error {
	c.got = append(c.got, res)
	return nil
}

func csvFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newService(s transport.Sender, policy dispatcher.FailurePolicy, sink *captureSink) *Service {
	d := dispatcher.NewDispatcher(s, time.Millisecond, policy)
	n := recipient.New("92", recipient.DefaultTemplate, false)
	if sink == nil {
		return New(n, d, nil)
	}
	return New(n, d, sink)
}

func TestProcess_SingleRecipient(t *testing.T) {
	fs := &fakeSender{}
	sink := &captureSink{}
	svc := newService(fs, dispatcher.PolicyIsolate, sink)

	res, err := svc.Process(context.Background(), csvFile(t, "Name,WhatsAppNumber\nAli,3001234567\n"))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.SentCount)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, []sentMsg{{"923001234567", "Hello Ali, congratulations! Your registration is confirmed."}}, fs.sent)
	require.Len(t, sink.got, 1)
	assert.Equal(t, res.ID, sink.got[0].ID)
}

func TestProcess_PartialFailureIsReported(t *testing.T) {
	fs := &fakeSender{fail: map[string]error{"923001111111": errors.New("unreachable")}}
	svc := newService(fs, dispatcher.PolicyIsolate, nil)

	res, err := svc.Process(context.Background(), csvFile(t, "Name,WhatsAppNumber\nA,923001111111\nB,3002222222\n"))

	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, "B", res.Outcomes[1].Recipient)
	assert.Equal(t, model.StatusSent, res.Outcomes[1].Status)
}

func TestProcess_InvalidRowsFailWithoutSend(t *testing.T) {
	fs := &fakeSender{}
	svc := newService(fs, dispatcher.PolicyIsolate, nil)

	res, err := svc.Process(context.Background(), csvFile(t, "Name,WhatsAppNumber\nAli,\n,3001234567\nBo,3002222222\n"))

	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.FailedCount)
	assert.Len(t, fs.sent, 1)
	assert.Equal(t, "Ali", res.Outcomes[0].Recipient)
	assert.Equal(t, "record 2", res.Outcomes[1].Recipient)
	assert.Contains(t, res.Outcomes[1].FailureReason, "Name")
}

func TestProcess_EmptyInputRejectedWithoutSends(t *testing.T) {
	fs := &fakeSender{}
	sink := &captureSink{}
	svc := newService(fs, dispatcher.PolicyIsolate, sink)

	_, err := svc.Process(context.Background(), csvFile(t, "Name,WhatsAppNumber\n"))

	assert.True(t, errors.Is(err, ErrRejected))
	assert.True(t, errors.Is(err, sheet.ErrEmptyInput))
	assert.Empty(t, fs.sent)
	assert.Empty(t, sink.got)
}

func TestProcess_MalformedRejected(t *testing.T) {
	svc := newService(&fakeSender{}, dispatcher.PolicyIsolate, nil)

	_, err := svc.Process(context.Background(), csvFile(t, "Phone\n300\n"))

	assert.True(t, errors.Is(err, ErrRejected))
	assert.True(t, errors.Is(err, sheet.ErrMalformedInput))
}

func TestProcess_MissingFileIsUnexpected(t *testing.T) {
	svc := newService(&fakeSender{}, dispatcher.PolicyIsolate, nil)

	_, err := svc.Process(context.Background(), filepath.Join(t.TempDir(), "gone.xlsx"))

	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
}

func TestProcess_AbortPolicy(t *testing.T) {
	fs := &fakeSender{fail: map[string]error{"92111": errors.New("session not ready")}}
	sink := &captureSink{}
	svc := newService(fs, dispatcher.PolicyAbort, sink)

	res, err := svc.Process(context.Background(), csvFile(t, "Name,WhatsAppNumber\nA,111\nB,222\n"))

	assert.True(t, errors.Is(err, ErrAborted))
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.FailedCount)
	assert.Len(t, fs.sent, 1)
	require.Len(t, sink.got, 1, "aborted batches are still reported")
}

func TestProcess_CancelledBatchIsNotSuccess(t *testing.T) {
	fs := &fakeSender{}
	sink := &captureSink{}
	svc := newService(fs, dispatcher.PolicyIsolate, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Process(ctx, csvFile(t, "Name,WhatsAppNumber\nA,111\nB,222\n"))

	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.FailedCount)
	assert.Equal(t, dispatcher.ReasonCancelled, res.Outcomes[1].FailureReason)
	assert.Empty(t, fs.sent)
	require.Len(t, sink.got, 1, "cancelled batches are still reported")
}

type failingSink struct{}

func (failingSink) Record(ctx context.Context, res model.BatchResult) error {
	return errors.New("audit store down")
}

func TestProcess_SinkErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	defer func() { logger.Log = prev }()

	d := dispatcher.NewDispatcher(&fakeSender{}, time.Millisecond, dispatcher.PolicyIsolate)
	n := recipient.New("92", recipient.DefaultTemplate, false)
	svc := New(n, d, failingSink{})

	res, err := svc.Process(context.Background(), csvFile(t, "Name,WhatsAppNumber\nAli,3001234567\n"))

	require.NoError(t, err, "sink failures never fail the batch")
	assert.Equal(t, 1, res.SentCount)
	entries := logs.FilterMessage("report sink failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, res.ID, entries[0].ContextMap()["batch_id"])
}
