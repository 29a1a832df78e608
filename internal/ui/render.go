package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hinshun/vt10x"
	"github.com/waxb/c9s/internal/discovery"
	"github.com/waxb/c9s/internal/inputx"
	"github.com/waxb/c9s/internal/termio"
	"github.com/waxb/c9s/internal/tervezo"
)

var (
	styleHeader    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	styleSelected  = lipgloss.NewStyle().Reverse(true)
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	styleFlashOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Bold(true)
	styleFlashErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true)
	styleStatusOK  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	styleStatusBad = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	styleBox       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Render produces the full frame for the current mode. The caller is
// responsible for writing it to the terminal and positioning the cursor.
func Render(s *State) string {
	var body string
	switch s.Mode {
	case inputx.ModeList, inputx.ModeFilter:
		body = renderList(s)
	case inputx.ModeDetail:
		body = renderDetail(s)
	case inputx.ModeHelp:
		body = renderHelp(s)
	case inputx.ModeQSwitcher, inputx.ModeTerminalQSwitcher:
		body = renderQSwitcher(s)
	case inputx.ModeRemoteList:
		body = renderRemoteList(s)
	case inputx.ModeTerminal:
		body = renderTerminal(s)
	case inputx.ModeCommand:
		body = renderList(s)
	case inputx.ModeConfirmQuit:
		body = renderConfirmQuit(s)
	case inputx.ModeTervezoDetail:
		body = renderTervezoDetail(s)
	case inputx.ModeTervezoActionMenu:
		body = renderTervezoDetail(s) + "\n" + renderActionMenu()
	case inputx.ModeTervezoConfirm:
		body = renderTervezoDetail(s) + "\n" + renderConfirm(s)
	case inputx.ModeTervezoPromptInput:
		body = renderTervezoDetail(s) + "\n" + renderPrompt(s)
	case inputx.ModeLog:
		body = renderLog(s)
	default:
		body = renderList(s)
	}

	return body + "\n" + renderStatusLine(s)
}

func renderList(s *State) string {
	var b strings.Builder
	sessions := s.FilteredLocal()
	fmt.Fprintf(&b, "%s [%d/%d]\n", styleHeader.Render("c9s — local sessions"), len(sessions), len(s.LocalSessions))
	if s.Mode == inputx.ModeFilter {
		b.WriteString(fmt.Sprintf("filter: %s\n", s.Filter))
	}

	if len(sessions) == 0 {
		b.WriteString(styleDim.Render("  no local sessions found"))
		return b.String()
	}

	for i, sess := range sessions {
		line := renderSessionRow(sess)
		if i == s.SelectedLocal {
			line = styleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// renderRemoteList renders the remote implementation list (C6), the
// sibling pane to renderList reached via Tab.
func renderRemoteList(s *State) string {
	var b strings.Builder
	items := s.FilteredRemote()
	fmt.Fprintf(&b, "%s [%d/%d]\n", styleHeader.Render("c9s — remote implementations"), len(items), len(s.RemoteItems))
	if len(items) == 0 {
		b.WriteString(styleDim.Render("  no remote implementations found"))
		return b.String()
	}

	for i, item := range items {
		line := renderRemoteRow(item)
		if i == s.SelectedRemote {
			line = styleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderRemoteRow(item tervezo.Implementation) string {
	title := item.Title
	if title == "" {
		title = item.ID
	}
	return fmt.Sprintf("%-8s %-24s %-16s $%.2f  %s", item.Status, title, item.Branch, item.Cost, item.PRStatus)
}

func renderSessionRow(sess discovery.LocalSession) string {
	status := statusGlyph(sess.Status)
	name := sess.DisplayName
	if name == "" {
		name = sess.CWD
	}
	churn := " "
	if sess.IsChurning {
		churn = styleStatusBad.Render("!")
	}
	return fmt.Sprintf("%s%s %-24s %-16s $%.2f  %s", status, churn, name, sess.GitBranch, sess.Cost(), sess.Model)
}

func statusGlyph(st discovery.Status) string {
	switch st {
	case discovery.StatusThinking:
		return styleStatusOK.Render("●")
	case discovery.StatusActive:
		return styleStatusOK.Render("◐")
	case discovery.StatusIdle:
		return styleDim.Render("○")
	default:
		return styleStatusBad.Render("✕")
	}
}

func renderDetail(s *State) string {
	sess, ok := s.CurrentLocalSession()
	if !ok {
		return styleDim.Render("no session selected")
	}
	return fmt.Sprintf(
		"%s\ncwd: %s\nbranch: %s\nmodel: %s\ncost: $%.2f\nmessages: %d  tool calls: %d\ncompactions: %d  hook runs: %d  hook errors: %d",
		styleHeader.Render(sess.DisplayName),
		sess.CWD, sess.GitBranch, sess.Model, sess.Cost(),
		sess.MessageCount, sess.ToolCallCount,
		sess.Compactions, sess.HookRuns, sess.HookErrors,
	)
}

func renderHelp(s *State) string {
	b := inputx.DefaultBindings()
	lines := []string{
		styleHeader.Render("keys"),
		fmt.Sprintf("%s  %s", b.Up.Help().Key, b.Up.Help().Desc),
		fmt.Sprintf("%s  %s", b.Down.Help().Key, b.Down.Help().Desc),
		fmt.Sprintf("%s  %s", b.Enter.Help().Key, b.Enter.Help().Desc),
		fmt.Sprintf("%s  %s", b.Detach.Help().Key, b.Detach.Help().Desc),
		fmt.Sprintf("%s  %s", b.NextTab.Help().Key, b.NextTab.Help().Desc),
		fmt.Sprintf("%s  %s", b.PrevTab.Help().Key, b.PrevTab.Help().Desc),
		fmt.Sprintf("%s  %s", b.Quit.Help().Key, b.Quit.Help().Desc),
	}
	return styleBox.Render(strings.Join(lines, "\n"))
}

func renderQSwitcher(s *State) string {
	var b strings.Builder
	b.WriteString(styleHeader.Render("switch to"))
	b.WriteString("\n")
	keys := []string{}
	if s.Mux != nil {
		keys = s.Mux.Keys()
	}
	for i, key := range keys {
		line := key
		if i == s.QSwitcherIndex {
			line = styleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return styleBox.Render(b.String())
}

func renderTerminal(s *State) string {
	if s.Mux == nil {
		return styleDim.Render("no active terminal")
	}
	term := s.Mux.Active()
	if term == nil {
		return styleDim.Render("no active terminal")
	}
	return renderTerminalScreen(term)
}

func renderTerminalScreen(term *termio.Terminal) string {
	var out string
	term.WithScreen(func(vt vt10x.Terminal) {
		cols, rows := vt.Size()
		var b strings.Builder
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				ch, _, _ := vt.Cell(x, y)
				if ch == 0 {
					ch = ' '
				}
				b.WriteRune(ch)
			}
			if y != rows-1 {
				b.WriteByte('\n')
			}
		}
		out = b.String()
	})
	return out
}

func renderConfirmQuit(s *State) string {
	return styleBox.Render("quit c9s? (y/n)")
}

func renderConfirm(s *State) string {
	return styleBox.Render(fmt.Sprintf("confirm action %v? (y/n)", s.PendingAction))
}

func renderPrompt(s *State) string {
	return styleBox.Render("prompt: " + s.PromptInput + "█")
}

func renderActionMenu() string {
	lines := []string{
		styleHeader.Render("actions"),
		"c  create PR",
		"m  merge PR  (confirm)",
		"x  close PR  (confirm)",
		"o  reopen PR",
		"r  restart   (confirm)",
		"esc  cancel",
	}
	return styleBox.Render(strings.Join(lines, "\n"))
}

func renderTervezoDetail(s *State) string {
	if s.Detail == nil {
		return styleDim.Render("no implementation open")
	}
	tabs := []string{"timeline", "plan", "changes", "tests", "analysis", "status"}
	var tabLine strings.Builder
	for i, name := range tabs {
		if tervezo.Tab(i) == s.DetailTab {
			tabLine.WriteString(styleSelected.Render(" " + name + " "))
		} else {
			tabLine.WriteString(" " + name + " ")
		}
	}

	var body string
	switch s.DetailTab {
	case tervezo.TabPlan:
		body = s.Detail.Plan
	case tervezo.TabChanges:
		body = renderChanges(s.Detail.Changes)
	case tervezo.TabTestOutput:
		body = renderTestOutput(s.Detail.TestOutput)
	case tervezo.TabAnalysis:
		body = s.Detail.Analysis
	case tervezo.TabStatus:
		body = renderSteps(s.Detail.Steps)
	default:
		body = renderTimeline(s.Detail.Timeline)
	}

	return tabLine.String() + "\n\n" + body
}

func renderTimeline(msgs []tervezo.TimelineMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Type {
		case "tool_use":
			fmt.Fprintf(&b, "  tool  %s\n", m.Tool)
		case "error":
			fmt.Fprintf(&b, "  %s\n", styleFlashErr.Render("error: "+m.Error))
		default:
			if m.Text != "" {
				fmt.Fprintf(&b, "  %s\n", m.Text)
			}
		}
	}
	return b.String()
}

func renderChanges(files []tervezo.ChangedFile) string {
	var b strings.Builder
	for _, f := range files {
		marker := " "
		if f.IsNew {
			marker = "+"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, f.Path)
	}
	return b.String()
}

func renderTestOutput(reports []tervezo.TestReport) string {
	var b strings.Builder
	for _, r := range reports {
		status := "PASS"
		if r.Skipped {
			status = "SKIP"
		} else if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s\n", status, r.Name)
	}
	return b.String()
}

func renderSteps(steps []tervezo.Step) string {
	var b strings.Builder
	for _, st := range steps {
		fmt.Fprintf(&b, "%-24s %s\n", st.Name, st.Status)
	}
	return b.String()
}

func renderLog(s *State) string {
	return strings.Join(s.LogLines, "\n")
}

func renderStatusLine(s *State) string {
	if s.Flash != nil {
		if s.Flash.IsError {
			return styleFlashErr.Render(s.Flash.Text)
		}
		return styleFlashOK.Render(s.Flash.Text)
	}
	return styleDim.Render("c9s  [?] help  [q] quit")
}
