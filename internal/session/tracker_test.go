package session

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_EmptyByDefault(t *testing.T) {
	tr := NewTracker(nil)

	_, ok := tr.QRCode()
	assert.False(t, ok)
	_, ok = tr.QRPNG()
	assert.False(t, ok)
	assert.False(t, tr.Ready())
}

func TestTracker_QRThenReady(t *testing.T) {
	tr := NewTracker(nil)

	require.NoError(t, tr.Handle(model.SessionEvent{Type: model.SessionEventQR, Code: "2@abc,def,ghi"}))

	url, ok := tr.QRCode()
	require.True(t, ok)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	png, _ := tr.QRPNG()
	assert.Equal(t, png, raw)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.False(t, tr.Ready())

	require.NoError(t, tr.Handle(model.SessionEvent{Type: model.SessionEventReady}))
	assert.True(t, tr.Ready())
	_, ok = tr.QRCode()
	assert.True(t, ok, "latest code is kept after ready")
}

func TestTracker_RejectsBadEvents(t *testing.T) {
	tr := NewTracker(nil)
	assert.Error(t, tr.Handle(model.SessionEvent{Type: model.SessionEventQR}))
	assert.Error(t, tr.Handle(model.SessionEvent{Type: "disconnected"}))
}

func TestTracker_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(&buf)

	require.NoError(t, tr.Handle(model.SessionEvent{Type: model.SessionEventQR, Code: "pair-me"}))
	assert.NotEmpty(t, buf.String())
}

func TestTracker_Subscribe(t *testing.T) {
	tr := NewTracker(nil)
	ch, cancel := tr.Subscribe(4)

	require.NoError(t, tr.Handle(model.SessionEvent{Type: model.SessionEventQR, Code: "x"}))
	require.NoError(t, tr.Handle(model.SessionEvent{Type: model.SessionEventReady}))

	assert.Equal(t, model.SessionEventQR, (<-ch).Type)
	assert.Equal(t, model.SessionEventReady, (<-ch).Type)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	assert.NoError(t, tr.Handle(model.SessionEvent{Type: model.SessionEventReady}))
}
