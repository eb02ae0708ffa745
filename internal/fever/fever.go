// Package fever talks to the Fever-compatible API exposed by FreshRSS.
package fever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"freshrss_filter/internal/model"
)

// ChunkSize is the maximum number of ids requested per items call.
const ChunkSize = 50

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the API answers with a failure status.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fever %s: status %d", e.Op, e.Code)
}

// Client calls the Fever API with a fixed API key.
type Client struct {
	client    HTTPClient
	endpoint  string
	apiKey    string
	userAgent string
}

// New creates a Client. A nil client uses an http.Client with a 30s timeout.
func New(client HTTPClient, baseURL, apiKey, userAgent string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		client:    client,
		endpoint:  strings.TrimRight(baseURL, "/") + "/api/fever.php",
		apiKey:    apiKey,
		userAgent: userAgent,
	}
}

// UnreadItemIDs returns the ids of all unread items.
func (c *Client) UnreadItemIDs(ctx context.Context) ([]model.ItemID, error) {
	var resp struct {
		UnreadItemIDs string `json:"unread_item_ids"`
	}
	if err := c.call(ctx, "unread_item_ids", "unread_item_ids", &resp); err != nil {
		return nil, err
	}

	var ids []model.ItemID
	for _, s := range strings.Split(resp.UnreadItemIDs, ",") {
		s = strings.TrimSpace(s)
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			continue
		}
		ids = append(ids, model.ItemID(s))
	}
	return ids, nil
}

// Items fetches the bodies of the given items in a single request.
func (c *Client) Items(ctx context.Context, ids []model.ItemID) ([]model.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = string(id)
	}

	var resp struct {
		Items []feverItem `json:"items"`
	}
	if err := c.call(ctx, "items", "items&with_ids="+strings.Join(strs, ","), &resp); err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(resp.Items))
	for _, fi := range resp.Items {
		items = append(items, fi.toModel())
	}
	return items, nil
}

// FetchUnread returns every unread item, requesting bodies in chunks of
// ChunkSize ids. Any failure aborts the whole fetch.
func (c *Client) FetchUnread(ctx context.Context) ([]model.Item, error) {
	ids, err := c.UnreadItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unread ids: %w", err)
	}

	var items []model.Item
	for start := 0; start < len(ids); start += ChunkSize {
		end := min(start+ChunkSize, len(ids))
		got, err := c.Items(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("fetch items: %w", err)
		}
		items = append(items, got...)
	}
	return items, nil
}

// MarkRead marks a single item as read.
func (c *Client) MarkRead(ctx context.Context, id model.ItemID) error {
	return c.call(ctx, "mark_read", "mark=item&as=read&id="+url.QueryEscape(string(id)), nil)
}

// SoftDelete hides an item. Fever has no delete call, so this marks it read.
func (c *Client) SoftDelete(ctx context.Context, id model.ItemID) error {
	return c.MarkRead(ctx, id)
}

func (c *Client) call(ctx context.Context, op, extras string, out any) error {
	form := url.Values{"api_key": {c.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?api&"+extras, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fever %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var auth struct {
		Auth *flexInt `json:"auth"`
	}
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	if auth.Auth != nil && *auth.Auth == 0 {
		return &StatusError{Op: op, Code: http.StatusUnauthorized}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

type feverItem struct {
	ID            flexInt  `json:"id"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	HTML          string   `json:"html"`
	Content       string   `json:"content"`
	URL           string   `json:"url"`
	CreatedOnTime *flexInt `json:"created_on_time"`
}

func (fi feverItem) toModel() model.Item {
	item := model.Item{
		ID:      model.ItemID(strconv.FormatInt(int64(fi.ID), 10)),
		Title:   fi.Title,
		Author:  fi.Author,
		Content: fi.Content,
		HTML:    fi.HTML,
		URL:     fi.URL,
	}
	if fi.CreatedOnTime != nil && *fi.CreatedOnTime > 0 {
		t := time.Unix(int64(*fi.CreatedOnTime), 0).UTC()
		item.CreatedAt = &t
	}
	return item
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", data, err)
	}
	*f = flexInt(v)
	return nil
}
