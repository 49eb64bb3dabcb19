// Package push delivers seat notifications through an HTTP push gateway.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/seatwatch/pkg/config"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

// Message is the gateway request body.
type Message struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type response struct {
	Data ticket `json:"data"`
}

// Client posts one message per device token.
type Client struct {
	http     *resty.Client
	endpoint string
	timeout  time.Duration
}

// NewClient builds a push client from cfg.
func NewClient(cfg config.PushConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	http := resty.New().
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.AccessToken != "" {
		http.SetAuthToken(cfg.AccessToken)
	}
	return &Client{http: http, endpoint: cfg.Endpoint, timeout: cfg.Timeout}
}

// Deliver sends one notification. A transport failure, a non-2xx reply or an
// error ticket all count as a failed delivery.
func (c *Client) Deliver(ctx context.Context, token, title, body string) error {
	if c.endpoint == "" {
		return appErrors.WrapAs(appErrors.ErrDelivery, fmt.Errorf("push endpoint not configured"), "")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out response
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(Message{To: token, Title: title, Body: body, Sound: "default"}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrDelivery, err, "")
	}
	if !res.IsSuccess() {
		return appErrors.WrapAs(appErrors.ErrDelivery, fmt.Errorf("gateway status %d", res.StatusCode()), "")
	}
	if out.Data.Status == "error" {
		return appErrors.WrapAs(appErrors.ErrDelivery, fmt.Errorf("gateway rejected token: %s", out.Data.Message), "")
	}
	return nil
}
