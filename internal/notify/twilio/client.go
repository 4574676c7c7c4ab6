// Package twilio is the SMS provider backing the notification dispatcher.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/airsentry/airsentry/internal/notify"
)

const defaultBaseURL = "https://api.twilio.com"

// Config carries the Twilio credentials and sender number. Any empty field
// leaves the client unconfigured; sends then fail fast with
// notify.ErrNotConfigured so the dispatcher can fall through.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts messages to the Twilio REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client. Each attempt is bounded by the configured timeout;
// retry policy belongs to the caller.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) Name() string { return "twilio" }

// Configured reports whether credentials and a sender number are present.
func (c *Client) Configured() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != "" && c.cfg.From != ""
}

// Send delivers one SMS. The configuration check runs before any I/O.
func (c *Client) Send(ctx context.Context, recipient, body string) (string, error) {
	if !c.Configured() {
		return "", notify.ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", c.cfg.From)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: send: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("twilio: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(payload, &created); err != nil || created.SID == "" {
		return "accepted", nil
	}
	return "sid=" + created.SID, nil
}
