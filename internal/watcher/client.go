// Package watcher polls the orders API and reports orders it has not seen.
package watcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"

	"storefront/internal/models"
	"storefront/pkg/challenge"
)

// Client reads orders through the challenge-protected orders endpoint.
type Client struct {
	client   *http.Client
	endpoint string
	secret   string
}

// NewClient creates a Client for endpoint, e.g. http://host/api/orders.
func NewClient(endpoint, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		secret:   secret,
	}
}

// FetchOrders returns orders created after since, newest first. A zero since
// returns every order.
func (c *Client) FetchOrders(ctx context.Context, since time.Time) ([]models.Order, error) {
	var issued struct {
		Challenge string `json:"challenge"`
	}
	if err := c.get(ctx, nil, &issued); err != nil {
		return nil, errors.Wrap(err, "request challenge")
	}
	if issued.Challenge == "" {
		return nil, errors.New("server returned an empty challenge")
	}

	q := url.Values{}
	q.Set("challenge", issued.Challenge)
	q.Set("response", challenge.Response(issued.Challenge, c.secret))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
	}

	var orders []models.Order
	if err := c.get(ctx, q, &orders); err != nil {
		return nil, errors.Wrap(err, "fetch orders")
	}
	return orders, nil
}

func (c *Client) get(ctx context.Context, query url.Values, out any) error {
	target := c.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusUnauthorized:
		return errors.Wrap(models.ErrUnauthorized, "orders API rejected the challenge response")
	default:
		return errors.Errorf("orders API returned %d", resp.StatusCode)
	}
}
