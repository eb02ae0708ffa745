package greader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type editTagRequest struct {
	Path     string
	User     string
	Password string
	Item     string
	Tag      string
}

func TestAddLabel(t *testing.T) {
	var got editTagRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		user, pass, _ := r.BasicAuth()
		got = editTagRequest{
			Path:     r.URL.Path,
			User:     user,
			Password: pass,
			Item:     r.PostForm.Get("i"),
			Tag:      r.PostForm.Get("a"),
		}
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "alice", "pw", "test-agent")
	if err := c.AddLabel(context.Background(), "99", "Ads"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := editTagRequest{
		Path:     "/api/greader.php/reader/api/0/edit-tag",
		User:     "alice",
		Password: "pw",
		Item:     "99",
		Tag:      "user/-/label/Ads",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestAddLabelStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "alice", "bad", "")
	err := c.AddLabel(context.Background(), "1", "Ads")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if diff := cmp.Diff(http.StatusUnauthorized, se.Code); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}
