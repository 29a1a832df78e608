// Command c9s is a terminal dashboard for local Claude Code sessions and
// remote tervezo implementations.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/waxb/c9s/internal/applog"
	"github.com/waxb/c9s/internal/config"
	"github.com/waxb/c9s/internal/discovery"
	"github.com/waxb/c9s/internal/mux"
	"github.com/waxb/c9s/internal/tervezo"
	"github.com/waxb/c9s/internal/ui"
)

// version is set by the release build; left as "dev" for source builds.
var version = "dev"

// agentBinary is the process name c9s requires to be on PATH; its
// absence at startup is a fatal, documented exit condition.
const agentBinary = "claude"

func main() {
	root := &cobra.Command{
		Use:           "c9s",
		Short:         "terminal dashboard for local and remote Claude Code sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the c9s version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "c9s: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal")
	}
	if _, err := exec.LookPath(agentBinary); err != nil {
		return fmt.Errorf("%s not found on PATH", agentBinary)
	}

	cfgPath := config.DefaultConfigPath()
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logPath := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logger, err := applog.New(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logger.Close()
	logger.Printf("c9s %s starting", version)

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	projectsRoot := filepath.Join(home, ".claude", "projects")

	disc := discovery.New(projectsRoot)

	client := tervezo.NewClient(cfg.Tervezo.BaseURL, cfg.Tervezo.APIKey)
	listFetcher := tervezo.NewListFetcher(client)
	go listFetcher.Start(cfg.Tervezo.PollInterval)
	defer listFetcher.Stop()

	m := mux.New(func(key string) (int, bool) {
		for _, sess := range disc.Refresh() {
			if sess.ID == key && sess.PID != 0 {
				return sess.PID, true
			}
		}
		return 0, false
	})

	state := ui.NewState(m, client)
	state.ReplaceLocalSessions(disc.Refresh())

	loop := ui.NewLoop(state, disc, listFetcher, client, logger, agentBinary)
	return loop.Run()
}
