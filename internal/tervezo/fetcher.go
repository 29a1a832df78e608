package tervezo

import (
	"sync"
	"sync/atomic"
	"time"
)

const stopPollChunk = 100 * time.Millisecond

// ListFetcher is the background worker described in C6: it loops issuing
// GET /implementations, publishes a snapshot on success, and keeps the
// previous snapshot plus a recorded error on failure. The UI thread
// drains the dirty bit once per tick.
type ListFetcher struct {
	client *Client

	mu       sync.Mutex
	snapshot []Implementation
	lastErr  error
	dirty    atomic.Bool

	stop atomic.Bool
}

// NewListFetcher creates a fetcher against client. Start must be called to
// begin the background loop.
func NewListFetcher(client *Client) *ListFetcher {
	return &ListFetcher{client: client}
}

// Start runs the poll loop until Stop is called. It sleeps for interval
// between polls, broken into 100ms chunks so Stop is observed promptly.
func (f *ListFetcher) Start(interval time.Duration) {
	for !f.stop.Load() {
		f.pollOnce()
		f.sleepChunked(interval)
	}
}

func (f *ListFetcher) pollOnce() {
	resp, err := f.client.List("")
	f.mu.Lock()
	if err != nil {
		f.lastErr = err
	} else {
		f.snapshot = resp.Items
		f.lastErr = nil
	}
	f.mu.Unlock()
	f.dirty.Store(true)
}

func (f *ListFetcher) sleepChunked(total time.Duration) {
	elapsed := time.Duration(0)
	for elapsed < total {
		if f.stop.Load() {
			return
		}
		chunk := stopPollChunk
		if total-elapsed < chunk {
			chunk = total - elapsed
		}
		time.Sleep(chunk)
		elapsed += chunk
	}
}

// Stop signals the loop to exit on its next poll of the flag (within one
// sleep chunk).
func (f *ListFetcher) Stop() { f.stop.Store(true) }

// TakeDirty is a swap-false returning whether a new snapshot or error
// arrived since the last call.
func (f *ListFetcher) TakeDirty() bool { return f.dirty.Swap(false) }

// Snapshot returns the most recently completed list and any error from
// the last poll, read under the fetcher's mutex so replacement is atomic.
func (f *ListFetcher) Snapshot() ([]Implementation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Implementation, len(f.snapshot))
	copy(out, f.snapshot)
	return out, f.lastErr
}
