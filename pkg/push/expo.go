// Package push is a small client for the Expo push notification service.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-faster/errors"
)

// DefaultURL is the Expo push send endpoint.
const DefaultURL = "https://exp.host/--/api/v2/push/send"

// MaxBatchSize is the most messages/recipients Expo accepts per request.
const MaxBatchSize = 100

// Ticket statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var tokenPattern = regexp.MustCompile(`^Expo(nent)?PushToken\[[^\[\]]+\]$`)

// IsValidToken reports whether token looks like an Expo push token.
func IsValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// Message is one push request. With several recipients Expo returns one
// ticket per recipient, in order.
type Message struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

// Ticket is Expo's per-recipient answer.
type Ticket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type sendResponse struct {
	Data   []Ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Config holds client settings.
type Config struct {
	URL         string
	AccessToken string
	Timeout     time.Duration
}

// Client sends push messages.
type Client struct {
	client      *http.Client
	url         string
	accessToken string
}

// NewClient creates a new Client.
func NewClient(cfg Config) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:      &http.Client{Timeout: timeout},
		url:         url,
		accessToken: cfg.AccessToken,
	}
}

// Send posts messages in a single request and returns the tickets.
func (c *Client) Send(ctx context.Context, messages []Message) ([]Ticket, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, errors.Wrap(err, "marshal push messages")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send push request")
	}
	defer resp.Body.Close()

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "decode push response (status %d)", resp.StatusCode)
	}

	switch {
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("push service returned %d: %s", resp.StatusCode, firstError(out))
	case len(out.Errors) > 0:
		return nil, errors.Errorf("push service rejected request: %s", firstError(out))
	}
	return out.Data, nil
}

func firstError(r sendResponse) string {
	if len(r.Errors) == 0 {
		return "no error details"
	}
	return fmt.Sprintf("%s: %s", r.Errors[0].Code, r.Errors[0].Message)
}
