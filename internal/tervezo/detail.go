package tervezo

import (
	"sync"
)

const timelineCap = 1000

// Tab identifies one of the detail view's lazily-loaded panes.
type Tab int

const (
	TabTimeline Tab = iota
	TabPlan
	TabChanges
	TabTestOutput
	TabAnalysis
	TabStatus
)

// detailEvent is the open union drained by Detail.Drain; exactly one
// field is meaningful per event, mirroring the worker goroutines that
// populate a RemoteDetailState.
type detailEvent struct {
	timelineReplace []TimelineMessage
	timelineAppend  *TimelineMessage
	plan            *string
	analysis        *string
	changes         []ChangedFile
	testOutput      []TestReport
	steps           []Step
	pr              *PRDetails
	ssh             *SSHCreds
	tabErr          *tabError
	streamErr       *string
}

type tabError struct {
	tab Tab
	err error
}

// Detail holds the state for one open implementation's detail view (C7):
// a capped timeline, per-tab lazily-fetched content, and a live SSE
// stream while the implementation is Running.
type Detail struct {
	client *Client
	impl   Implementation

	events chan detailEvent
	stream *Stream

	mu         sync.Mutex
	Timeline   []TimelineMessage
	Plan       string
	Analysis   string
	Changes    []ChangedFile
	TestOutput []TestReport
	Steps      []Step
	PR         PRDetails
	SSH        SSHCreds

	loading map[Tab]bool
	loaded  map[Tab]bool
	errs    map[Tab]error

	lastStreamErr string
}

// OpenDetail constructs a Detail for impl, eagerly fetching the
// timeline, plan, and steps (and SSH creds if running), and opening an
// SSE stream if the implementation is live. Changes/TestOutput/Analysis
// are fetched lazily on first tab activation.
func OpenDetail(client *Client, impl Implementation) *Detail {
	d := &Detail{
		client:  client,
		impl:    impl,
		events:  make(chan detailEvent, 256),
		loading: map[Tab]bool{},
		loaded:  map[Tab]bool{},
		errs:    map[Tab]error{},
	}

	go d.fetchTimeline()
	go d.fetchPlan()
	go d.fetchStatus()
	if impl.Status == StatusRunning {
		go d.fetchSSH()
		d.stream = NewStream(client.baseURL, client.apiKey, impl.ID, "")
		go d.pumpStream()
		go d.stream.Run()
	}

	return d
}

// ActivateTab triggers the lazy fetch for Changes/TestOutput/Analysis on
// first visit; repeated activation while loading or after success is a
// no-op.
func (d *Detail) ActivateTab(tab Tab) {
	d.mu.Lock()
	if d.loading[tab] || d.loaded[tab] {
		d.mu.Unlock()
		return
	}
	d.loading[tab] = true
	d.mu.Unlock()

	switch tab {
	case TabChanges:
		go d.fetchChanges()
	case TabTestOutput:
		go d.fetchTestOutput()
	case TabAnalysis:
		go d.fetchAnalysis()
	}
}

// Drain applies every event currently queued (non-blocking) and reports
// whether anything changed.
func (d *Detail) Drain() bool {
	changed := false
	for {
		select {
		case ev := <-d.events:
			d.apply(ev)
			changed = true
		default:
			return changed
		}
	}
}

func (d *Detail) apply(ev detailEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case ev.timelineReplace != nil:
		d.Timeline = capTimeline(ev.timelineReplace)
	case ev.timelineAppend != nil:
		d.Timeline = capTimeline(append(d.Timeline, *ev.timelineAppend))
	case ev.plan != nil:
		d.Plan = *ev.plan
		d.loaded[TabPlan] = true
		d.loading[TabPlan] = false
	case ev.analysis != nil:
		d.Analysis = *ev.analysis
		d.loaded[TabAnalysis] = true
		d.loading[TabAnalysis] = false
	case ev.changes != nil:
		d.Changes = ev.changes
		d.loaded[TabChanges] = true
		d.loading[TabChanges] = false
	case ev.testOutput != nil:
		d.TestOutput = ev.testOutput
		d.loaded[TabTestOutput] = true
		d.loading[TabTestOutput] = false
	case ev.steps != nil:
		d.Steps = ev.steps
		d.loaded[TabStatus] = true
		d.loading[TabStatus] = false
	case ev.pr != nil:
		d.PR = *ev.pr
	case ev.ssh != nil:
		d.SSH = *ev.ssh
	case ev.tabErr != nil:
		d.errs[ev.tabErr.tab] = ev.tabErr.err
		d.loading[ev.tabErr.tab] = false
	case ev.streamErr != nil:
		d.lastStreamErr = *ev.streamErr
	}
}

// TakeStreamErr returns and clears the most recent SSE disconnect
// message, if any, so the app can flash it once.
func (d *Detail) TakeStreamErr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.lastStreamErr
	d.lastStreamErr = ""
	return err
}

// capTimeline keeps only the most recent timelineCap entries, preserving
// order.
func capTimeline(msgs []TimelineMessage) []TimelineMessage {
	if len(msgs) <= timelineCap {
		return msgs
	}
	return append([]TimelineMessage(nil), msgs[len(msgs)-timelineCap:]...)
}

// Err returns the last fetch error recorded for tab, if any.
func (d *Detail) Err(tab Tab) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errs[tab]
}

// Loading reports whether tab's lazy fetch is in flight.
func (d *Detail) Loading(tab Tab) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading[tab]
}

// Close stops the SSE stream, if any.
func (d *Detail) Close() {
	if d.stream != nil {
		d.stream.Stop()
	}
}

func (d *Detail) fetchTimeline() {
	msgs, err := d.client.Timeline(d.impl.ID, "")
	if err != nil {
		d.events <- detailEvent{tabErr: &tabError{TabTimeline, err}}
		return
	}
	d.events <- detailEvent{timelineReplace: msgs}
}

func (d *Detail) fetchPlan() {
	plan, err := d.client.Plan(d.impl.ID)
	if err != nil {
		d.events <- detailEvent{tabErr: &tabError{TabPlan, err}}
		return
	}
	d.events <- detailEvent{plan: &plan}
}

func (d *Detail) fetchAnalysis() {
	analysis, err := d.client.Analysis(d.impl.ID)
	if err != nil {
		d.events <- detailEvent{tabErr: &tabError{TabAnalysis, err}}
		return
	}
	d.events <- detailEvent{analysis: &analysis}
}

func (d *Detail) fetchChanges() {
	files, err := d.client.Changes(d.impl.ID)
	if err != nil {
		d.events <- detailEvent{tabErr: &tabError{TabChanges, err}}
		return
	}
	d.events <- detailEvent{changes: files}
}

func (d *Detail) fetchTestOutput() {
	reports, err := d.client.TestOutput(d.impl.ID)
	if err != nil {
		d.events <- detailEvent{tabErr: &tabError{TabTestOutput, err}}
		return
	}
	d.events <- detailEvent{testOutput: reports}
}

func (d *Detail) fetchStatus() {
	steps, err := d.client.Steps(d.impl.ID)
	if err != nil {
		d.events <- detailEvent{tabErr: &tabError{TabStatus, err}}
		return
	}
	d.events <- detailEvent{steps: steps}

	if d.impl.PRNumber != 0 || d.impl.PRUrl != "" {
		if pr, err := d.client.PR(d.impl.ID); err == nil {
			d.events <- detailEvent{pr: &pr}
		}
	}
}

func (d *Detail) fetchSSH() {
	creds, err := d.client.SSHCreds(d.impl.ID)
	if err != nil {
		return
	}
	d.events <- detailEvent{ssh: &creds}
}

func (d *Detail) pumpStream() {
	for ev := range d.stream.Events {
		if ev.Err != nil {
			msg := "stream disconnected: " + ev.Err.Error()
			d.events <- detailEvent{streamErr: &msg}
			continue
		}
		msg := ev.Message
		d.events <- detailEvent{timelineAppend: &msg}
	}
}
