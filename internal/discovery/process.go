package discovery

import (
	"bufio"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// liveProcess is one running agent process as resolved by pgrep + cwd lookup.
type liveProcess struct {
	PID int
	CWD string
}

// discoverLiveProcesses runs `pgrep -x <name>` for each known agent process
// name and resolves each pid's cwd via the platform-appropriate interface:
// lsof on macOS, /proc/<pid>/cwd on Linux. Failures (missing pgrep/lsof,
// permission errors) degrade silently to an empty result — discovery never
// fails the overall refresh on a missing process tool.
func discoverLiveProcesses(names []string) map[string]int {
	byCWD := map[string]int{}
	pids := pgrepAll(names)
	if len(pids) == 0 {
		return byCWD
	}

	var cwds map[int]string
	if runtime.GOOS == "darwin" {
		cwds = lsofCWDs(pids)
	} else {
		cwds = procCWDs(pids)
	}

	for _, pid := range pids {
		if cwd, ok := cwds[pid]; ok && cwd != "" {
			byCWD[cwd] = pid
		}
	}
	return byCWD
}

func pgrepAll(names []string) []int {
	seen := map[int]bool{}
	var pids []int
	for _, name := range names {
		out, err := exec.Command("pgrep", "-x", name).Output()
		if err != nil {
			continue
		}
		for _, line := range strings.Fields(string(out)) {
			pid := atoiOrZero(line)
			if pid != 0 && !seen[pid] {
				seen[pid] = true
				pids = append(pids, pid)
			}
		}
	}
	return pids
}

// lsofCWDs resolves cwd for each pid via `lsof -p <pids> -a -d cwd -Fn`,
// whose output pairs a "p<pid>" record with the following "n<path>" record.
func lsofCWDs(pids []int) map[int]string {
	if len(pids) == 0 {
		return nil
	}
	var sb strings.Builder
	for i, p := range pids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(itoa(p))
	}

	out, err := exec.Command("lsof", "-p", sb.String(), "-a", "-d", "cwd", "-Fn").Output()
	if err != nil {
		return nil
	}

	result := map[int]string{}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	var curPID int
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case 'p':
			curPID = atoiOrZero(line[1:])
		case 'n':
			if curPID != 0 {
				result[curPID] = line[1:]
			}
		}
	}
	return result
}

// procCWDs resolves cwd for each pid via readlink /proc/<pid>/cwd.
func procCWDs(pids []int) map[int]string {
	result := map[int]string{}
	for _, pid := range pids {
		cwd, err := os.Readlink("/proc/" + itoa(pid) + "/cwd")
		if err == nil {
			result[pid] = cwd
		}
	}
	return result
}

func atoiOrZero(s string) int {
	s = strings.TrimSpace(s)
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
