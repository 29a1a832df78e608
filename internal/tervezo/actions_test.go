package tervezo

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequiresConfirmMatchesDestructiveActions(t *testing.T) {
	destructive := map[ActionKind]bool{
		ActionCreatePR:   false,
		ActionMergePR:    true,
		ActionClosePR:    true,
		ActionReopenPR:   false,
		ActionRestart:    true,
		ActionSendPrompt: false,
	}
	for kind, want := range destructive {
		if got := kind.RequiresConfirm(); got != want {
			t.Errorf("RequiresConfirm(%v) = %v, want %v", kind, got, want)
		}
	}
}

func TestDispatchRestartNavigatesOnNewImplementation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"is_new_implementation": true, "implementation_id": "impl-2"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	d := NewDispatcher(client, "impl-1")

	d.Dispatch(ActionRestart, "")
	result := waitResult(t, d)

	if result.Navigate != "impl-2" {
		t.Errorf("Navigate = %q, want impl-2", result.Navigate)
	}
}

func TestDispatchRejectsConcurrentAction(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "done"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	d := NewDispatcher(client, "impl-1")

	d.Dispatch(ActionCreatePR, "")
	if !d.Busy() {
		t.Fatal("expected dispatcher to be busy immediately after dispatch")
	}
	d.Dispatch(ActionCreatePR, "") // should be dropped, not queued

	close(release)
	<-d.Results

	select {
	case <-d.Results:
		t.Error("second concurrent dispatch should have been dropped")
	case <-time.After(50 * time.Millisecond):
	}
}

func waitResult(t *testing.T, d *Dispatcher) ActionResult {
	t.Helper()
	select {
	case r := <-d.Results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for action result")
		return ActionResult{}
	}
}
