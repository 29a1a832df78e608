package tervezo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestSSECursorResume verifies the reconnect URL carries ?after=<cursor>
// once an event with an id has been delivered.
func TestSSECursorResume(t *testing.T) {
	var gotURLs []string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotURLs = append(gotURLs, r.URL.String())
		n := len(gotURLs)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		if n == 1 {
			fmt.Fprintf(w, "id: evt-1\ndata: {\"messages\":[{\"id\":\"evt-1\",\"type\":\"assistant\",\"text\":\"hi\"}]}\n\n")
		}
		if flusher != nil {
			flusher.Flush()
		}
	}))
	defer srv.Close()

	s := NewStream(srv.URL, "", "impl-1", "")
	go s.Run()
	defer s.Stop()

	waitFor(t, func() bool { return s.Cursor() == "evt-1" })
	<-s.Events // drain the delivered message

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotURLs) >= 2 && strings.Contains(gotURLs[1], "after=evt-1")
	})
}

// TestSSEHealthyResetsBackoff verifies a connection alive for >=10s resets
// the reconnect delay to the base rather than continuing to double.
func TestSSEHealthyResetsBackoff(t *testing.T) {
	// Directly exercise resetIfHealthy, the reset step Run applies after
	// each connection: a lived duration >= healthyConnLife must reset delay
	// to base regardless of how large it had grown, while a short-lived
	// connection keeps the grown delay.
	grown := reconnectMaxDelay

	if reset := resetIfHealthy(grown, healthyConnLife); reset != reconnectBaseDelay {
		t.Errorf("expected backoff reset to base after a >=10s connection, got %v", reset)
	}

	shortLived := healthyConnLife - time.Second
	if keepGrowing := resetIfHealthy(grown, shortLived); keepGrowing != grown {
		t.Errorf("a short-lived connection must not reset backoff, got %v", keepGrowing)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
