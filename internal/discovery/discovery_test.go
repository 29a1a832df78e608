package discovery

import (
	"os"
	"testing"
	"time"
)

func TestIsChurningFirstSampleEstablishesBaseline(t *testing.T) {
	d := New(t.TempDir())
	pid := os.Getpid()

	if d.isChurning(pid) {
		t.Error("first sample must never report churning (no delta yet)")
	}
	if _, ok := d.cpuTrackers[pid]; !ok {
		t.Error("expected a tracker to be registered for pid after first sample")
	}
}

func TestPruneCPUTrackersDropsDeadPIDs(t *testing.T) {
	d := New(t.TempDir())
	pid := os.Getpid()
	d.isChurning(pid)

	d.pruneCPUTrackers(map[int]bool{})
	if _, ok := d.cpuTrackers[pid]; ok {
		t.Error("expected tracker for pid not marked live to be pruned")
	}
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestClassifyDeadWhenNoLivePID(t *testing.T) {
	got := classify(false, time.Now(), "assistant", "end_turn", time.Now())
	if got != StatusDead {
		t.Errorf("classify(no pid) = %v, want Dead", got)
	}
}

func TestClassifyIdleWhenStale(t *testing.T) {
	now := time.Now()
	got := classify(true, now.Add(-10*time.Minute), "assistant", "other", now)
	if got != StatusIdle {
		t.Errorf("classify(stale) = %v, want Idle", got)
	}
}

func TestClassifyThinkingOnUserMessage(t *testing.T) {
	now := time.Now()
	got := classify(true, now, "user", "", now)
	if got != StatusThinking {
		t.Errorf("classify(user) = %v, want Thinking", got)
	}
}

func TestClassifyIdleOnEndTurn(t *testing.T) {
	now := time.Now()
	got := classify(true, now, "assistant", "end_turn", now)
	if got != StatusIdle {
		t.Errorf("classify(end_turn) = %v, want Idle", got)
	}
}

func TestClassifyActiveOnOtherStopReason(t *testing.T) {
	now := time.Now()
	got := classify(true, now, "assistant", "tool_use", now)
	if got != StatusActive {
		t.Errorf("classify(tool_use) = %v, want Active", got)
	}
}

func TestClassifyActiveOnMissingMessageType(t *testing.T) {
	now := time.Now()
	got := classify(true, now, "", "", now)
	if got != StatusActive {
		t.Errorf("classify(missing) = %v, want Active", got)
	}
}

func TestStatusOrderingForSort(t *testing.T) {
	order := []Status{StatusThinking, StatusActive, StatusIdle, StatusDead}
	for i := 0; i < len(order)-1; i++ {
		if order[i].rank() >= order[i+1].rank() {
			t.Errorf("rank(%v)=%d should be < rank(%v)=%d", order[i], order[i].rank(), order[i+1], order[i+1].rank())
		}
	}
}

func TestDedupeAndSortKeepsLatestPerCWD(t *testing.T) {
	now := time.Now()
	sessions := []LocalSession{
		{ID: "a1", CWD: "/a/alpha", LastActivity: now.Add(-time.Minute)},
		{ID: "a2", CWD: "/a/alpha", LastActivity: now},
		{ID: "b1", CWD: "/a/beta", LastActivity: now.Add(-2 * time.Minute)},
	}

	got := dedupeAndSort(sessions)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "a2" {
		t.Errorf("winner for /a/alpha = %s, want a2 (latest last-activity)", got[0].ID)
	}
	if !got[0].LastActivity.After(got[1].LastActivity) {
		t.Errorf("result not sorted descending by last-activity")
	}
}

func TestParseWithCacheReusesUnchangedEntry(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/s.jsonl"
	writeLines(t, path, []string{`{"type":"user","timestamp":"2024-01-01T00:00:00Z"}`})

	d := New(dir)
	first, ok := d.parseWithCache(path)
	if !ok {
		t.Fatal("expected cache hit to parse")
	}

	// Touching nothing: repeated parse must return the identical cached totals.
	second, ok := d.parseWithCache(path)
	if !ok || second.MessageCount != first.MessageCount {
		t.Errorf("cache should return identical output without reparse")
	}

	// Touch the file: mtime bump forces a reparse with new content.
	time.Sleep(10 * time.Millisecond)
	writeLines(t, path, []string{
		`{"type":"user","timestamp":"2024-01-01T00:00:00Z"}`,
		`{"type":"user","timestamp":"2024-01-01T00:00:01Z"}`,
	})
	third, ok := d.parseWithCache(path)
	if !ok {
		t.Fatal("expected cache hit to parse")
	}
	if third.MessageCount == first.MessageCount {
		t.Errorf("expected reparse after mtime change to reflect new content")
	}
}
