package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type sendPayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// HTTPBridge posts messages to a WhatsApp bridge's REST send endpoint.
type HTTPBridge struct {
	baseURL  string
	sendPath string
	suffix   string
	token    string
	client   *http.Client
	br       *MicroBreaker
}

func NewHTTPBridge(
	baseURL, sendPath, suffix, token string,
	timeout time.Duration, failThreshold int, openFor time.Duration,
) *HTTPBridge {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if sendPath == "" {
		sendPath = "/send"
	}

	return &HTTPBridge{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sendPath: sendPath,
		suffix:   suffix,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		br:       NewMicroBreaker(failThreshold, openFor),
	}
}

// ChatID is the routable identifier for an individual contact.
func (p *HTTPBridge) ChatID(address string) string { return address + p.suffix }

func (p *HTTPBridge) BreakerState() string { return p.br.State() }

// Send delivers one message. Bridge-side failures (network, 5xx) count against the
// breaker; a 4xx is specific to the recipient and does not.
func (p *HTTPBridge) Send(ctx context.Context, address, message string) error {
	if ok, until := p.br.Allow(); !ok {
		return fmt.Errorf("%w: breaker open until %s", ErrUnavailable, until.Format(time.RFC3339))
	}

	status, body, err := p.post(ctx, sendPayload{ChatID: p.ChatID(address), Text: message})
	switch {
	case err != nil:
		p.br.OnFailure()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case status/100 == 2:
		p.br.OnSuccess()
		return nil
	case status/100 == 4:
		p.br.OnSuccess()
		return fmt.Errorf("%w: status=%d body=%s", ErrRejected, status, body)
	default:
		p.br.OnFailure()
		return fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, status, body)
	}
}

func (p *HTTPBridge) post(ctx context.Context, payload sendPayload) (int, string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.sendPath, bytes.NewReader(b))
	if err != nil {
		return 0, "", err
	}

	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return 0, "", err
	}

	defer res.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))

	return res.StatusCode, strings.TrimSpace(string(snippet)), nil
}
