// Package session tracks the transport's pairing lifecycle: the latest pairing code
// and whether the session reported ready.
package session

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 256

type Tracker struct {
	mu      sync.RWMutex
	png     []byte
	dataURL string
	ready   bool

	subMu  sync.Mutex
	subs   map[int]chan model.SessionEvent
	nextID int

	console io.Writer // nil disables terminal QR output
}

// NewTracker builds an empty tracker. When console is non-nil every new pairing code
// is also drawn there as a terminal QR block.
func NewTracker(console io.Writer) *Tracker {
	return &Tracker{subs: make(map[int]chan model.SessionEvent), console: console}
}

// Handle applies one lifecycle event and notifies subscribers.
func (t *Tracker) Handle(ev model.SessionEvent) error {
	switch ev.Type {
	case model.SessionEventQR:
		if ev.Code == "" {
			return fmt.Errorf("qr event without code")
		}
		png, err := qrcode.Encode(ev.Code, qrcode.Medium, qrSize)
		if err != nil {
			return fmt.Errorf("encode qr: %w", err)
		}

		t.mu.Lock()
		t.png = png
		t.dataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		t.ready = false
		t.mu.Unlock()

		logger.Log.Info("pairing code received")
		t.printConsole(ev.Code)

	case model.SessionEventReady:
		t.mu.Lock()
		t.ready = true
		t.mu.Unlock()

		logger.Log.Info("chat session is ready")

	default:
		return fmt.Errorf("unknown session event %q", ev.Type)
	}

	t.publish(ev)
	return nil
}

// QRCode returns the latest pairing code as a PNG data URL.
func (t *Tracker) QRCode() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dataURL, t.dataURL != ""
}

// QRPNG returns the latest pairing code as raw PNG bytes.
func (t *Tracker) QRPNG() ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.png, len(t.png) > 0
}

func (t *Tracker) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Subscribe returns a channel of future events and a cancel func that closes it.
// Slow subscribers miss events rather than blocking Handle.
func (t *Tracker) Subscribe(buffer int) (<-chan model.SessionEvent, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan model.SessionEvent, buffer)

	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) publish(ev model.SessionEvent) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (t *Tracker) printConsole(code string) {
	if t.console == nil {
		return
	}
	q, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		logger.Log.Warn("render console qr", zap.Error(err))
		return
	}
	_, _ = io.WriteString(t.console, q.ToSmallString(false))
}
