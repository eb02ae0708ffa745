// Package greader applies labels through the Google Reader compatible API.
package greader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"freshrss_filter/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when edit-tag answers with a failure status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("greader edit-tag: status %d", e.Code)
}

// Client adds labels to items.
type Client struct {
	client    HTTPClient
	endpoint  string
	username  string
	password  string
	userAgent string
}

// New creates a Client. A nil client uses an http.Client with a 30s timeout.
func New(client HTTPClient, baseURL, username, password, userAgent string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		client:    client,
		endpoint:  strings.TrimRight(baseURL, "/") + "/api/greader.php/reader/api/0/edit-tag",
		username:  username,
		password:  password,
		userAgent: userAgent,
	}
}

// AddLabel tags an item with user/-/label/<label>.
func (c *Client) AddLabel(ctx context.Context, id model.ItemID, label string) error {
	form := url.Values{
		"i": {string(id)},
		"a": {"user/-/label/" + label},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.username, c.password)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("greader edit-tag: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
