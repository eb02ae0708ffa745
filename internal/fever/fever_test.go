package fever

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"freshrss_filter/internal/model"
)

type recordedCall struct {
	Query  string
	APIKey string
}

type fakeFever struct {
	mu       sync.Mutex
	calls    []recordedCall
	unread   string
	status   int
	noAuth   bool
	itemBody func(ids string) string
}

func (f *fakeFever) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Query: r.URL.RawQuery, APIKey: r.PostForm.Get("api_key")})
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	if f.noAuth {
		fmt.Fprint(w, `{"api_version":3,"auth":0}`)
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("unread_item_ids"):
		fmt.Fprintf(w, `{"api_version":3,"auth":1,"unread_item_ids":%q}`, f.unread)
	case q.Has("items"):
		fmt.Fprint(w, f.itemBody(q.Get("with_ids")))
	case q.Get("mark") == "item":
		fmt.Fprint(w, `{"api_version":3,"auth":1}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeFever) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Query
	}
	return out
}

func itemsFor(ids string) string {
	var parts []string
	for _, id := range strings.Split(ids, ",") {
		parts = append(parts, fmt.Sprintf(`{"id":%q,"title":"item %s","created_on_time":1700000000}`, id, id))
	}
	return `{"api_version":3,"auth":1,"items":[` + strings.Join(parts, ",") + `]}`
}

func newTestClient(t *testing.T, f *fakeFever) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(srv.Client(), srv.URL+"/", "secret", "test-agent")
}

func TestUnreadItemIDs(t *testing.T) {
	tests := []struct {
		name   string
		unread string
		want   []model.ItemID
	}{
		{name: "empty", unread: "", want: nil},
		{name: "several", unread: "1,2,3", want: []model.ItemID{"1", "2", "3"}},
		{name: "junk skipped", unread: " 4 , x,,5", want: []model.ItemID{"4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFever{unread: tt.unread}
			c := newTestClient(t, f)

			got, err := c.UnreadItemIDs(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("UnreadItemIDs() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff("secret", f.calls[0].APIKey); diff != "" {
				t.Errorf("api key mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchUnreadChunks(t *testing.T) {
	var ids []string
	for i := 1; i <= 120; i++ {
		ids = append(ids, fmt.Sprint(i))
	}
	f := &fakeFever{unread: strings.Join(ids, ","), itemBody: itemsFor}
	c := newTestClient(t, f)

	items, err := c.FetchUnread(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(120, len(items)); diff != "" {
		t.Errorf("item count mismatch (-want +got):\n%s", diff)
	}

	var itemCalls int
	for _, q := range f.queries() {
		if strings.Contains(q, "items&with_ids=") {
			itemCalls++
			n := len(strings.Split(q[strings.Index(q, "with_ids=")+len("with_ids="):], ","))
			if n > ChunkSize {
				t.Errorf("chunk of %d ids exceeds %d", n, ChunkSize)
			}
		}
	}
	if diff := cmp.Diff(3, itemCalls); diff != "" {
		t.Errorf("items call count mismatch (-want +got):\n%s", diff)
	}

	first := items[0]
	if diff := cmp.Diff(model.ItemID("1"), first.ID); diff != "" {
		t.Errorf("id mismatch (-want +got):\n%s", diff)
	}
	if first.CreatedAt == nil || first.CreatedAt.Unix() != 1700000000 {
		t.Errorf("unexpected created at %v", first.CreatedAt)
	}
}

func TestItemsNumericIDs(t *testing.T) {
	f := &fakeFever{itemBody: func(string) string {
		return `{"auth":1,"items":[{"id":42,"title":"T","author":"A","html":"<p>x</p>","content":"c","url":"https://e.com/42"}]}`
	}}
	c := newTestClient(t, f)

	got, err := c.Items(context.Background(), []model.ItemID{"42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.Item{{ID: "42", Title: "T", Author: "A", HTML: "<p>x</p>", Content: "c", URL: "https://e.com/42"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Items() mismatch (-want +got):\n%s", diff)
	}
}

func TestItemsEmptyMakesNoRequest(t *testing.T) {
	f := &fakeFever{}
	c := newTestClient(t, f)

	got, err := c.Items(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || len(f.queries()) != 0 {
		t.Errorf("expected no items and no calls, got %d items, %d calls", len(got), len(f.queries()))
	}
}

func TestMarkReadAndSoftDelete(t *testing.T) {
	f := &fakeFever{}
	c := newTestClient(t, f)
	ctx := context.Background()

	if err := c.MarkRead(ctx, "7"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := c.SoftDelete(ctx, "8"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	want := []string{"api&mark=item&as=read&id=7", "api&mark=item&as=read&id=8"}
	if diff := cmp.Diff(want, f.queries()); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeFever
		wantCode int
	}{
		{name: "server error", fake: &fakeFever{status: http.StatusInternalServerError}, wantCode: 500},
		{name: "auth rejected", fake: &fakeFever{noAuth: true}, wantCode: 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.fake)
			_, err := c.FetchUnread(context.Background())
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if diff := cmp.Diff(tt.wantCode, se.Code); diff != "" {
				t.Errorf("status code mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
