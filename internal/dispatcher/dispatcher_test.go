package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *recordingSender) Send(ctx context.Context, address, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, address)
	return s.fail[address]
}

func recipients(addrs ...string) []model.Recipient {
	out := make([]model.Recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, model.Recipient{DisplayName: "n" + a, Address: a, Message: "hi " + a})
	}
	return out
}

func newTestDispatcher(s transport.Sender, delay time.Duration, p FailurePolicy) (*Dispatcher, *[]time.Duration) {
	d := NewDispatcher(s, delay, p)
	waits := &[]time.Duration{}
	d.wait = func(ctx context.Context, dur time.Duration) error {
		*waits = append(*waits, dur)
		return ctx.Err()
	}
	return d, waits
}

func TestParseFailurePolicy(t *testing.T) {
	p, ok := ParseFailurePolicy("")
	assert.True(t, ok)
	assert.Equal(t, PolicyIsolate, p)

	p, ok = ParseFailurePolicy(" ABORT ")
	assert.True(t, ok)
	assert.Equal(t, PolicyAbort, p)

	_, ok = ParseFailurePolicy("retry")
	assert.False(t, ok)
}

func TestDispatch_SingleSuccess(t *testing.T) {
	s := &recordingSender{}
	d, waits := newTestDispatcher(s, 2*time.Second, PolicyIsolate)

	res, aborted := d.Dispatch(context.Background(), Items(model.Recipient{
		DisplayName: "Ali",
		Address:     "923001234567",
		Message:     "Hello Ali, congratulations! Your registration is confirmed.",
	}))

	assert.False(t, aborted)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, 0, res.FailedCount)
	assert.Equal(t, []string{"923001234567"}, s.calls)
	assert.Empty(t, *waits, "no trailing delay")
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	s := &recordingSender{fail: map[string]error{"923001111111": errors.New("not on whatsapp")}}
	d, _ := newTestDispatcher(s, time.Second, PolicyIsolate)

	res, aborted := d.Dispatch(context.Background(), Items(recipients("923001111111", "923002222222")...))

	assert.False(t, aborted)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, []string{"923001111111", "923002222222"}, s.calls)

	assert.Equal(t, model.StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, "not on whatsapp", res.Outcomes[0].FailureReason)
	assert.Equal(t, model.StatusSent, res.Outcomes[1].Status)
	assert.Empty(t, res.Outcomes[1].FailureReason)
}

func TestDispatch_PreservesOrderAndCounts(t *testing.T) {
	addrs := []string{"1", "2", "3", "4", "5", "6"}
	s := &recordingSender{fail: map[string]error{"2": errors.New("x"), "5": errors.New("y")}}
	d, waits := newTestDispatcher(s, time.Second, PolicyIsolate)

	res, _ := d.Dispatch(context.Background(), Items(recipients(addrs...)...))

	require.Len(t, res.Outcomes, len(addrs))
	for i, a := range addrs {
		assert.Equal(t, a, res.Outcomes[i].Address)
	}
	assert.Equal(t, res.Total, res.SentCount+res.FailedCount)
	assert.Equal(t, addrs, s.calls)
	assert.Len(t, *waits, len(addrs)-1)
}

func TestDispatch_InvalidItemsAreNotSent(t *testing.T) {
	s := &recordingSender{}
	d, waits := newTestDispatcher(s, time.Second, PolicyIsolate)

	items := Items(recipients("1")...)
	items = append(items, Item{Name: "row 3", Invalid: errors.New("invalid WhatsAppNumber: missing")})
	items = append(items, Items(recipients("2")...)...)

	res, _ := d.Dispatch(context.Background(), items)

	assert.Equal(t, []string{"1", "2"}, s.calls)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.FailedCount)
	assert.Equal(t, "row 3", res.Outcomes[1].Recipient)
	assert.Equal(t, "invalid WhatsAppNumber: missing", res.Outcomes[1].FailureReason)
	assert.Len(t, *waits, 1, "delay only between actual sends")
}

func TestDispatch_AbortPolicy(t *testing.T) {
	s := &recordingSender{fail: map[string]error{"2": errors.New("session not ready")}}
	d, _ := newTestDispatcher(s, time.Second, PolicyAbort)

	res, aborted := d.Dispatch(context.Background(), Items(recipients("1", "2", "3", "4")...))

	assert.True(t, aborted)
	assert.Equal(t, []string{"1", "2"}, s.calls)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, 3, res.FailedCount)
	assert.Equal(t, ReasonAborted, res.Outcomes[2].FailureReason)
	assert.Equal(t, ReasonAborted, res.Outcomes[3].FailureReason)
}

func TestDispatch_CancelledDuringDelay(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, time.Hour, PolicyIsolate)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, aborted := d.Dispatch(ctx, Items(recipients("1", "2", "3")...))

	assert.False(t, aborted)
	assert.Equal(t, []string{"1"}, s.calls)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, ReasonCancelled, res.Outcomes[1].FailureReason)
	assert.Equal(t, ReasonCancelled, res.Outcomes[2].FailureReason)
}

func TestDispatch_PacesSendsInWallClock(t *testing.T) {
	const delay = 100 * time.Millisecond
	s := &recordingSender{}
	d := NewDispatcher(s, delay, PolicyIsolate)

	start := time.Now()
	res, _ := d.Dispatch(context.Background(), Items(recipients("1", "2", "3")...))
	elapsed := time.Since(start)

	assert.Equal(t, 3, res.SentCount)
	assert.GreaterOrEqual(t, elapsed, 2*delay)
	assert.Less(t, elapsed, 2*delay+time.Second)
}

func TestDispatch_NeverConcurrent(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	sender := transport.SenderFunc(func(ctx context.Context, address, message string) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	d := NewDispatcher(sender, time.Millisecond, PolicyIsolate)

	d.Dispatch(context.Background(), Items(recipients("1", "2", "3", "4")...))

	assert.Equal(t, 1, maxInFlight)
}
