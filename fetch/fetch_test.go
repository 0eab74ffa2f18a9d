package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := NewClient(0, 5*time.Second)
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Errorf("body: got %q", body)
	}
	if !strings.Contains(gotUA, "HouseMarketAnalyser") {
		t.Errorf("User-Agent: got %q, want the crawler identity", gotUA)
	}
}

func TestClientFetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(0, 5*time.Second)
	_, err := c.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error type: got %T, want *Error", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode: got %d, want 404", fe.StatusCode)
	}
}

func TestClientPolitenessDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	delay := 80 * time.Millisecond
	c := NewClient(delay, 5*time.Second)

	start := time.Now()
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("two fetches took %v, want at least %v between request starts", elapsed, delay)
	}
}

func TestClientFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(0, 5*time.Second)
	_, err := c.Fetch(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
