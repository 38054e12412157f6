package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/depdeck/depdeck/internal/history"
	"github.com/depdeck/depdeck/pkg/checkcache"
	"github.com/depdeck/depdeck/pkg/config"
	"github.com/depdeck/depdeck/pkg/discover"
	"github.com/depdeck/depdeck/pkg/registry"
	"github.com/depdeck/depdeck/pkg/ui"
	"github.com/depdeck/depdeck/pkg/updates"
	"github.com/depdeck/depdeck/pkg/version"
)

func main() {
	rootFlag := flag.String("root", "", "Workspace root to scan for go.mod projects (overrides config)")
	depthFlag := flag.Int("depth", 0, "Maximum scan depth (overrides config)")
	setupFlag := flag.Bool("setup", false, "Run the interactive setup form")
	historyFlag := flag.Bool("history", false, "Print recent command runs and exit")
	versionFlag := flag.Bool("version", false, "Show version")
	helpFlag := flag.Bool("help", false, "Show help")
	debugLog := flag.String("debug-log", "", "Write debug logs to file")
	flag.Parse()

	if *helpFlag {
		fmt.Println("Usage: depdeck [options]")
		fmt.Println("\nA terminal dashboard for the Go module projects under a workspace root.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("depdeck %s\n", version.Version)
		os.Exit(0)
	}

	if *historyFlag {
		if err := printHistory(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading run history: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *debugLog != "" {
		f, err := os.OpenFile(*debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not open debug log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(os.Stderr)
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *setupFlag {
		settings, err = runSetup(settings)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			os.Exit(1)
		}
		if err := config.Save(settings); err != nil {
			fmt.Fprintf(os.Stderr, "Could not save config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration saved to", config.Path())
	}

	if *rootFlag != "" {
		settings.ScanRoot = *rootFlag
	}
	if *depthFlag > 0 {
		settings.MaxDepth = *depthFlag
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "depdeck requires an interactive terminal")
		os.Exit(1)
	}

	projects, err := discover.Scan(settings.ScanRoot, settings.MaxDepth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", settings.ScanRoot, err)
		os.Exit(1)
	}
	if len(projects) == 0 {
		fmt.Fprintf(os.Stderr, "No go.mod projects found under %s\n", settings.ScanRoot)
		os.Exit(1)
	}

	cache := checkcache.NewStore(checkcache.DefaultDir())
	checker := updates.NewChecker(registry.NewProxyClient(), cache)

	// Run history is an optional nicety; the dashboard works without it.
	hist, err := history.Open(history.DefaultPath())
	if err != nil {
		log.Printf("history: %v", err)
		hist = nil
	}
	if hist != nil {
		if n, err := hist.Prune(time.Now().AddDate(0, -3, 0)); err != nil {
			log.Printf("history: pruning old runs: %v", err)
		} else if n > 0 {
			log.Printf("history: pruned %d old runs", n)
		}
	}

	m := ui.New(projects, settings, checker, cache, hist)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printHistory lists the most recent command runs, newest first.
func printHistory(w io.Writer) error {
	hist, err := history.Open(history.DefaultPath())
	if err != nil {
		return err
	}
	defer hist.Close()

	runs, err := hist.Recent(20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return nil
	}
	for _, r := range runs {
		outcome := "ok"
		if r.ExitCode != 0 {
			outcome = fmt.Sprintf("exit %d", r.ExitCode)
		}
		fmt.Fprintf(w, "%s  %-30s %-24s %s\n",
			r.FinishedAt.Format("2006-01-02 15:04"), r.Project, r.Command, outcome)
	}
	return nil
}

// runSetup collects the basic settings with an interactive form.
func runSetup(s config.Settings) (config.Settings, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return s, fmt.Errorf("setup requires an interactive terminal")
	}

	ttl := strconv.Itoa(s.CacheTTLMinutes)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Workspace root").
				Description("Directory scanned for go.mod projects").
				Value(&s.ScanRoot),
			huh.NewConfirm().
				Title("Background update checks").
				Description("Check projects for newer dependency versions in the background").
				Value(&s.BackgroundUpdates),
			huh.NewInput().
				Title("Cache TTL (minutes)").
				Description("How long a check result stays fresh").
				Value(&ttl).
				Validate(func(v string) error {
					_, err := config.ValidateTTL(v)
					return err
				}),
		),
	)
	if err := form.Run(); err != nil {
		return s, err
	}

	n, err := config.ValidateTTL(ttl)
	if err != nil {
		return s, err
	}
	s.CacheTTLMinutes = n
	return s, nil
}
