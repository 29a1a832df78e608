// Package discovery walks the transcript directory tree, classifies each
// session as live or dead by correlating its working directory with live
// process cwds, and derives the metrics the dashboard renders.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"github.com/waxb/c9s/internal/transcript"
)

// churnThreshold is the CPU-percent reading at or above which a live
// session is flagged as churning. Only CPU usage is sampled; transcript
// progress is not consulted.
const churnThreshold = 50.0

// agentProcessNames are the process-name lookups run via pgrep -x.
var agentProcessNames = []string{"claude", "claude-code"}

// Status is a LocalSession's lifecycle classification.
type Status int

const (
	StatusDead Status = iota
	StatusIdle
	StatusActive
	StatusThinking
)

// rank gives the sort ordering Thinking < Active < Idle < Dead.
func (s Status) rank() int {
	switch s {
	case StatusThinking:
		return 0
	case StatusActive:
		return 1
	case StatusIdle:
		return 2
	default:
		return 3
	}
}

func (s Status) String() string {
	switch s {
	case StatusThinking:
		return "Thinking"
	case StatusActive:
		return "Active"
	case StatusIdle:
		return "Idle"
	default:
		return "Dead"
	}
}

// LocalSession is one distinct transcript, projected with the fields the
// dashboard needs. Totals are monotonically non-decreasing across
// snapshots for the same id; PID is set only when a live process whose
// cwd equals CWD was found this refresh.
type LocalSession struct {
	ID               string
	CWD              string
	DisplayName      string
	GitBranch        string
	Model            string
	Status           Status
	FirstSeen        time.Time
	LastActivity     time.Time
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	MessageCount     int
	ToolCallCount    int
	PID              int
	PermissionMode   string
	PlanTags         []string
	Compactions      int
	HookRuns         int
	HookErrors       int
	IsChurning       bool
}

// Cost derives USD cost from this session's running totals.
func (s LocalSession) Cost() float64 {
	return transcript.Cost(s.Model, s.InputTokens, s.OutputTokens, s.CacheReadTokens, s.CacheWriteTokens)
}

const idleAfter = 5 * time.Minute

// cacheEntry is one mtime-keyed parse cache slot.
type cacheEntry struct {
	mtime  time.Time
	totals transcript.Totals
}

// Discovery owns the transcript root and the mtime-keyed parse cache
// described in the discovery algorithm: reparsing happens only for files
// whose mtime has changed since the last refresh.
type Discovery struct {
	root  string
	cache map[string]cacheEntry

	// cpuTrackers holds one gopsutil process handle per live pid so
	// successive Percent(0) calls compute a delta against the previous
	// refresh rather than an instantaneous (and meaningless) snapshot.
	cpuTrackers map[int]*gopsprocess.Process
}

// New creates a Discovery rooted at the given transcript directory (the
// per-user directory whose immediate children are encoded-cwd project
// folders).
func New(root string) *Discovery {
	return &Discovery{
		root:        root,
		cache:       map[string]cacheEntry{},
		cpuTrackers: map[int]*gopsprocess.Process{},
	}
}

// Refresh re-walks the transcript tree and live process set, returning the
// deduplicated, sorted session list. Unreadable files, non-decodable
// lines, and an absent process tool all degrade silently.
func (d *Discovery) Refresh() []LocalSession {
	liveByCWD := discoverLiveProcesses(agentProcessNames)

	projects, err := os.ReadDir(d.root)
	if err != nil {
		return nil
	}

	var sessions []LocalSession
	now := time.Now()
	liveCWDsThisRefresh := map[int]bool{}

	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		projectDir := filepath.Join(d.root, proj.Name())
		files, err := transcript.ListSessionFiles(projectDir)
		if err != nil {
			continue
		}
		decodedCWD := transcript.DecodeProjectPath(proj.Name())

		for _, path := range files {
			totals, ok := d.parseWithCache(path)
			if !ok {
				continue
			}

			cwd := totals.CWD
			if cwd == "" {
				cwd = decodedCWD
			}

			id := totals.SessionID
			if id == "" {
				id = transcript.SessionIDFromPath(path)
			}

			pid, live := liveByCWD[cwd]
			status := classify(live, totals.LastActivity, totals.LastMessageType, totals.LastStopReason, now)

			var churning bool
			if live {
				churning = d.isChurning(pid)
				liveCWDsThisRefresh[pid] = true
			}

			sessions = append(sessions, LocalSession{
				ID:               id,
				CWD:              cwd,
				DisplayName:      displayName(cwd),
				GitBranch:        totals.GitBranch,
				Model:            totals.Model,
				Status:           status,
				FirstSeen:        totals.FirstSeen,
				LastActivity:     totals.LastActivity,
				InputTokens:      totals.InputTokens,
				OutputTokens:     totals.OutputTokens,
				CacheReadTokens:  totals.CacheReadTokens,
				CacheWriteTokens: totals.CacheWriteTokens,
				MessageCount:     totals.MessageCount,
				ToolCallCount:    totals.ToolCallCount,
				PID:              pidIfLive(live, pid),
				PermissionMode:   totals.PermissionMode,
				PlanTags:         totals.PlanTags,
				Compactions:      totals.Compactions,
				HookRuns:         totals.HookRuns,
				HookErrors:       totals.HookErrors,
				IsChurning:       churning,
			})
		}
	}

	d.pruneCPUTrackers(liveCWDsThisRefresh)
	return dedupeAndSort(sessions)
}

// isChurning reports whether pid's CPU usage since the previous refresh
// exceeds churnThreshold, reusing a per-pid gopsutil handle so the
// comparison is a delta rather than a meaningless instantaneous read.
func (d *Discovery) isChurning(pid int) bool {
	tracker, ok := d.cpuTrackers[pid]
	if !ok {
		proc, err := gopsprocess.NewProcess(int32(pid))
		if err != nil {
			return false
		}
		d.cpuTrackers[pid] = proc
		tracker = proc
		// First sample establishes a baseline; gopsutil returns 0 until a
		// second call has something to diff against.
		tracker.Percent(0)
		return false
	}
	pct, err := tracker.Percent(0)
	if err != nil {
		return false
	}
	return pct >= churnThreshold
}

func (d *Discovery) pruneCPUTrackers(stillLive map[int]bool) {
	for pid := range d.cpuTrackers {
		if !stillLive[pid] {
			delete(d.cpuTrackers, pid)
		}
	}
}

func pidIfLive(live bool, pid int) int {
	if live {
		return pid
	}
	return 0
}

// parseWithCache parses path, reusing the cached Totals when the file's
// mtime has not changed since the last refresh.
func (d *Discovery) parseWithCache(path string) (transcript.Totals, bool) {
	info, err := os.Stat(path)
	if err != nil {
		delete(d.cache, path)
		return transcript.Totals{}, false
	}

	if entry, ok := d.cache[path]; ok && entry.mtime.Equal(info.ModTime()) {
		return entry.totals, true
	}

	totals, err := transcript.Parse(path)
	if err != nil {
		return transcript.Totals{}, false
	}
	d.cache[path] = cacheEntry{mtime: info.ModTime(), totals: totals}
	return totals, true
}

// classify implements the decision table in the discovery algorithm.
func classify(live bool, lastActivity time.Time, lastMessageType, lastStopReason string, now time.Time) Status {
	if !live {
		return StatusDead
	}
	if !lastActivity.IsZero() && now.Sub(lastActivity) > idleAfter {
		return StatusIdle
	}
	switch lastMessageType {
	case "user":
		return StatusThinking
	case "assistant":
		if lastStopReason == "end_turn" {
			return StatusIdle
		}
		return StatusActive
	default:
		return StatusActive
	}
}

func displayName(cwd string) string {
	if cwd == "" {
		return ""
	}
	return filepath.Base(strings.TrimRight(cwd, "/"))
}

// dedupeAndSort keeps, per distinct cwd, the session with the latest
// last-activity, then sorts the winners descending by last-activity.
func dedupeAndSort(sessions []LocalSession) []LocalSession {
	bestByCWD := map[string]LocalSession{}
	for _, s := range sessions {
		if existing, ok := bestByCWD[s.CWD]; !ok || s.LastActivity.After(existing.LastActivity) {
			bestByCWD[s.CWD] = s
		}
	}

	result := make([]LocalSession, 0, len(bestByCWD))
	for _, s := range bestByCWD {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity.After(result[j].LastActivity)
	})
	return result
}
