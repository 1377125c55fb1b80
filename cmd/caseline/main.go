// cmd/caseline/main.go
//
// This is the entry point for the caseline console.
// When you run `caseline` from a workspace directory, this is what executes.
//
// Flow:
// 1. Resolve the workspace and initialize the .caseline folder
// 2. Load workspace config (file, then environment overrides, then flags)
// 3. Launch the TUI scoped to one case

package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mhollis/caseline/internal/config"
	"github.com/mhollis/caseline/internal/tui"
)

func main() {
	caseFlag := flag.String("case", "", "case id to open (falls back to the workspace default)")
	backendFlag := flag.String("backend", "", "backend base URL (overrides workspace config)")
	flag.Parse()

	// The current working directory is the workspace we operate in.
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitCaselineDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .caseline directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.New(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading workspace config: %v\n", err)
		os.Exit(1)
	}
	if *backendFlag != "" {
		cfg.Workspace.Backend.URL = *backendFlag
	}

	caseID := *caseFlag
	if caseID == "" {
		caseID = cfg.DefaultCase()
	}
	if caseID == "" {
		fmt.Fprintln(os.Stderr, "No case selected. Pass -case <id> or set a workspace default.")
		os.Exit(1)
	}
	// Remember the choice so the next session opens the same case.
	if err := cfg.SetDefaultCase(caseID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not persist default case: %v\n", err)
	}

	app, err := tui.NewApp(cfg, caseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building console: %v\n", err)
		os.Exit(1)
	}

	// tea.NewProgram creates a new bubbletea application; Run blocks until
	// the user quits.
	p := tea.NewProgram(
		app,
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
