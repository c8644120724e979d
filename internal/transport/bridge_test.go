package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBridge_Send(t *testing.T) {
	var got sendPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewHTTPBridge(srv.URL+"/", "/api/send", "@c.us", "secret", time.Second, 3, time.Minute)
	err := b.Send(context.Background(), "923001234567", "Hello Ali")

	require.NoError(t, err)
	assert.Equal(t, "923001234567@c.us", got.ChatID)
	assert.Equal(t, "Hello Ali", got.Text)
	assert.Equal(t, "Bearer secret", auth)
}

func TestHTTPBridge_RejectedDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "number not on whatsapp", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	b := NewHTTPBridge(srv.URL, "", "@c.us", "", time.Second, 1, time.Minute)
	for i := 0; i < 3; i++ {
		err := b.Send(context.Background(), "92000", "hi")
		assert.True(t, errors.Is(err, ErrRejected))
		assert.Contains(t, err.Error(), "number not on whatsapp")
	}
	assert.Equal(t, "closed", b.BreakerState())
}

func TestHTTPBridge_ServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewHTTPBridge(srv.URL, "/send", "@c.us", "", time.Second, 2, time.Minute)
	for i := 0; i < 2; i++ {
		assert.True(t, errors.Is(b.Send(context.Background(), "92", "x"), ErrUnavailable))
	}

	err := b.Send(context.Background(), "92", "x")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "breaker open")
	assert.Equal(t, int32(2), calls.Load(), "open breaker short-circuits")
}

func TestDryRun_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, DryRun{Suffix: "@c.us"}.Send(ctx, "92", "hi"))
	cancel()
	assert.Error(t, DryRun{}.Send(ctx, "92", "hi"))
}
