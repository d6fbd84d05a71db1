package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/config"
)

var pollTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// newHTTPSource starts a test server running h and returns a source polling it.
func newHTTPSource(t *testing.T, h http.HandlerFunc) *httpSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := BuildHTTPClient(config.AuthConfig{}, config.TLSConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return &httpSource{
		src:    config.Source{ID: "collector", Endpoint: srv.URL + "/events", Channel: "System"},
		client: client,
		now:    func() time.Time { return pollTime },
	}
}

func TestHTTPSource_NDJSON(t *testing.T) {
	s := newHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(replayLines)) //nolint:errcheck
	})
	b := collect(t, s)
	if len(b.Records) != 2 || b.Skipped != 1 {
		t.Errorf("records = %d, skipped = %d; want 2, 1", len(b.Records), b.Skipped)
	}
	if b.Records[0].Event == nil {
		t.Error("NDJSON records should arrive structured")
	}
}

func TestHTTPSource_ZstdXML(t *testing.T) {
	s := newHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "zstd" {
			t.Errorf("Accept-Encoding = %q, want zstd", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Content-Encoding", "zstd")
		w.Write(zstdBytes(t, "<Events>"+sampleEvent+"</Events>")) //nolint:errcheck
	})
	b := collect(t, s)
	if len(b.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(b.Records))
	}
	if r := b.Records[0]; r.Raw != sampleEvent || r.Channel != "System" {
		t.Errorf("record = %+v", r)
	}
}

func TestHTTPSource_SinceAdvancesAfterSuccess(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	s := newHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Query().Get("since"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/xml")
	})

	collect(t, s)
	collect(t, s)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "" || seen[1] != "2026-01-01T12:00:00Z" {
		t.Errorf("since params = %q", seen)
	}
}

func TestHTTPSource_Non200(t *testing.T) {
	s := newHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	if _, err := s.Collect(context.Background()); err == nil {
		t.Fatal("expected error for 503")
	}
	if !s.since.IsZero() {
		t.Error("since advanced after a failed poll")
	}
}

func TestHTTPSource_ConnectFailure(t *testing.T) {
	client, _ := BuildHTTPClient(config.AuthConfig{}, config.TLSConfig{})
	s := &httpSource{src: config.Source{ID: "x", Endpoint: "http://127.0.0.1:1/events"}, client: client}
	if _, err := s.Collect(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}
