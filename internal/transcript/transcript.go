// Package transcript parses the append-only JSON-lines files coding agents
// write under their per-project directories, and derives the running totals
// discovery needs from them.
package transcript

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Usage mirrors the optional usage object on an assistant message.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

type record struct {
	Type             string          `json:"type"`
	SessionID        string          `json:"sessionId"`
	CWD              string          `json:"cwd"`
	GitBranch        string          `json:"gitBranch"`
	Version          string          `json:"version"`
	PermissionMode   string          `json:"permissionMode"`
	Slug             string          `json:"slug"`
	IsCompactSummary bool            `json:"isCompactSummary"`
	HookCount        int             `json:"hookCount"`
	HookErrors       []string        `json:"hookErrors"`
	Timestamp        string          `json:"timestamp"`
	Data             json.RawMessage `json:"data"`
	Message          *messageBody    `json:"message"`
}

type messageBody struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      *Usage `json:"usage"`
}

// Totals accumulates the running sums discovery needs from a transcript.
type Totals struct {
	SessionID        string
	CWD              string
	GitBranch        string
	Model            string
	PermissionMode   string
	PlanTags         []string
	FirstSeen        time.Time
	LastActivity     time.Time
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	MessageCount     int
	ToolCallCount    int
	Compactions      int
	HookRuns         int
	HookErrors       int
	LastMessageType  string // "user" | "assistant" | "" (other/missing)
	LastStopReason   string
}

// Parse reads every complete line of path from the beginning and returns the
// accumulated Totals. Malformed lines are skipped; unreadable files return
// an error so the mtime cache can decide not to store a result.
func Parse(path string) (Totals, error) {
	f, err := os.Open(path)
	if err != nil {
		return Totals{}, err
	}
	defer f.Close()

	var t Totals
	seenTags := map[string]bool{}
	reader := bufio.NewReaderSize(f, 64*1024)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			trimmed := strings.TrimRight(string(line), "\n")
			if trimmed != "" {
				applyLine(&t, []byte(trimmed), seenTags)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return t, err
		}
	}
	return t, nil
}

func applyLine(t *Totals, line []byte, seenTags map[string]bool) {
	var r record
	if err := json.Unmarshal(line, &r); err != nil {
		return // schema drift: per-record skip
	}

	if r.SessionID != "" {
		t.SessionID = r.SessionID
	}
	if r.CWD != "" {
		t.CWD = r.CWD
	}
	if r.GitBranch != "" {
		t.GitBranch = r.GitBranch
	}
	if r.PermissionMode != "" && t.PermissionMode == "" {
		t.PermissionMode = r.PermissionMode
	}
	if r.Slug != "" && !seenTags[r.Slug] {
		seenTags[r.Slug] = true
		t.PlanTags = append(t.PlanTags, r.Slug)
	}
	if r.IsCompactSummary {
		t.Compactions++
	}
	t.HookRuns += r.HookCount
	t.HookErrors += len(r.HookErrors)

	var ts time.Time
	if r.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
			ts = parsed
			if t.FirstSeen.IsZero() {
				t.FirstSeen = ts
			}
			if ts.After(t.LastActivity) {
				t.LastActivity = ts
			}
		}
	}

	switch r.Type {
	case "user":
		t.MessageCount++
		t.LastMessageType = "user"
		t.LastStopReason = ""
	case "assistant":
		t.MessageCount++
		t.LastMessageType = "assistant"
		if r.Message != nil {
			if r.Message.Model != "" {
				t.Model = r.Message.Model
			}
			t.LastStopReason = r.Message.StopReason
			if r.Message.Usage != nil {
				u := r.Message.Usage
				t.InputTokens += u.InputTokens
				t.OutputTokens += u.OutputTokens
				t.CacheReadTokens += u.CacheReadInputTokens
				t.CacheWriteTokens += u.CacheCreationInputTokens
			}
		}
	case "progress":
		if r.Data != nil {
			t.ToolCallCount++
		}
		t.LastMessageType = ""
	default:
		t.LastMessageType = ""
	}
}

// EncodeProjectPath replaces path separators with "-", the same encoding
// used when the agent names a session's project directory.
func EncodeProjectPath(path string) string {
	clean := filepath.Clean(path)
	return strings.ReplaceAll(clean, "/", "-")
}

// DecodeProjectPath reverses EncodeProjectPath. The encoding is ambiguous
// for directories that themselves contain hyphens, so the path is resolved
// one segment at a time against the filesystem, preferring the longest
// hyphen-joined run that exists; if no full path resolves, the best-effort
// literal decode (all dashes as slashes) is returned.
func DecodeProjectPath(encoded string) string {
	if !strings.HasPrefix(encoded, "-") {
		return encoded
	}

	literal := strings.ReplaceAll(encoded, "-", "/")
	if _, err := os.Stat(literal); err == nil {
		return literal
	}

	parts := strings.Split(encoded[1:], "-")
	resolved := ""
	for i := 0; i < len(parts); {
		j := len(parts)
		for ; j > i; j-- {
			candidate := resolved + "/" + strings.Join(parts[i:j], "-")
			if _, err := os.Stat(candidate); err == nil {
				resolved = candidate
				break
			}
		}
		if j == i {
			return literal
		}
		i = j
	}
	return resolved
}

// ListSessionFiles returns every *.jsonl path under a project directory.
func ListSessionFiles(projectDir string) ([]string, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			paths = append(paths, filepath.Join(projectDir, e.Name()))
		}
	}
	return paths, nil
}

// NewestSessionFile returns the most recently modified *.jsonl file in
// projectDir, or "" if none exist. Used by the activity notifier's lazy
// newest-file discovery.
func NewestSessionFile(projectDir string) string {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return ""
	}
	var best string
	var bestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(bestTime) {
			bestTime = info.ModTime()
			best = filepath.Join(projectDir, e.Name())
		}
	}
	return best
}

// SessionIDFromPath returns the session-id stem of a transcript path.
func SessionIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}

// modelPrice is a (input, output) USD-per-million-token price pair.
type modelPrice struct {
	in, out float64
}

var modelPrices = map[string]modelPrice{
	"opus":   {15, 75},
	"haiku":  {0.80, 4},
	"default": {3, 15},
}

// Cost derives USD cost from running token totals. Cache-read tokens price
// at 10% of the input rate, cache-write tokens at 25%, matching the
// documented per-model pricing table.
func Cost(model string, inputTokens, outputTokens, cacheReadTokens, cacheWriteTokens int) float64 {
	price := priceFor(model)
	total := float64(inputTokens)*price.in + float64(outputTokens)*price.out +
		float64(cacheReadTokens)*price.in*0.1 + float64(cacheWriteTokens)*price.in*0.25
	return total / 1e6
}

func priceFor(model string) modelPrice {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "opus"):
		return modelPrices["opus"]
	case strings.Contains(lower, "haiku"):
		return modelPrices["haiku"]
	default:
		return modelPrices["default"]
	}
}
