package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/tabspeicher/internal/applog"
	"github.com/lotas/tabspeicher/internal/capture"
	"github.com/lotas/tabspeicher/internal/config"
	"github.com/lotas/tabspeicher/internal/enrich"
	"github.com/lotas/tabspeicher/internal/exchange"
	"github.com/lotas/tabspeicher/internal/firefox"
	"github.com/lotas/tabspeicher/internal/notify"
	"github.com/lotas/tabspeicher/internal/server"
	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/tui"
	"github.com/lotas/tabspeicher/internal/types"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "capture":
			runCapture(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "new":
			runNew(os.Args[2:])
			return
		case "enrich":
			runEnrich(os.Args[2:])
			return
		case "profiles":
			runProfiles()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
		if unknownCommand(os.Args[1]) {
			fmt.Fprintf(os.Stderr, "Unknown command %q. Run 'tabspeicher help' for usage.\n", os.Args[1])
			os.Exit(1)
		}
	}

	fs := flag.NewFlagSet("tabspeicher", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Config file path")
	port := fs.Int("port", 0, "WebSocket port for extension surfaces (overrides config)")
	fs.Parse(os.Args[1:])

	app := setup(*configPath, *port)
	defer app.close()

	// The TUI is one surface; the extension connects over WebSocket
	// while it runs.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := app.server.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			applog.Error("server.exit", err)
		}
	}()

	model := tui.NewModel(app.store, app.hub, app.exch)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// unknownCommand reports whether the first argument names a subcommand
// that does not exist. Flags fall through to the default TUI flagset.
func unknownCommand(arg string) bool {
	if strings.HasPrefix(arg, "-") {
		return false
	}
	switch arg {
	case "serve", "capture", "export", "import", "new", "enrich", "profiles", "help":
		return false
	}
	return true
}

// app bundles the daemon's wired-up services.
type app struct {
	cfg     config.Config
	store   *storage.RecordStore
	hub     *notify.Hub
	capture *capture.Service
	exch    *exchange.Exchanger
	server  *server.Server
	cleanup func()
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

func setup(configPath string, portOverride int) *app {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}

	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	store := storage.NewRecordStore(db)
	if err := store.EnsureViewMode(context.Background(), types.ParseViewMode(cfg.ViewMode)); err != nil {
		applog.Error("config.viewmode", err)
	}

	hub := notify.NewHub()
	capSvc := capture.New(store, capture.NewIDSource())
	exch := exchange.New(store, cfg.ExportDir)
	srv := server.New(cfg.Port, server.Deps{
		Store:    store,
		Capture:  capSvc,
		Exchange: exch,
		Hub:      hub,
	})

	return &app{
		cfg:     cfg,
		store:   store,
		hub:     hub,
		capture: capSvc,
		exch:    exch,
		server:  srv,
		cleanup: func() {
			store.Close()
			db.Close()
			applog.Close()
		},
	}
}

func printHelp() {
	fmt.Print(`tabspeicher — local store for saved browser tabs

Usage:
  tabspeicher                         Start the TUI (extension surfaces can connect)
    --config <file>    Config file (default: ~/.config/tabspeicher/config.yaml)
    --port <n>         WebSocket port (default: 19192)

  tabspeicher serve                   Run the daemon headless
    --config <file>, --port <n>

  tabspeicher capture                 Save all tabs from a Firefox session store
    --profile <name>   Firefox profile name (default: the default profile)
    --config <file>

  tabspeicher export                  Write saved tabs to a timestamped JSON file
    --config <file>

  tabspeicher import <file>           Replace saved tabs with the file's contents
    --config <file>

  tabspeicher new                     Start over with an empty storage file
    --config <file>

  tabspeicher enrich                  Fetch real titles for untitled records
    --config <file>

  tabspeicher profiles                List Firefox profiles with a session store

Environment:
  TABSPEICHER_PORT, TABSPEICHER_DB, TABSPEICHER_EXPORT_DIR,
  TABSPEICHER_VIEW_MODE, TABSPEICHER_LOG_DIR override the config file.
`)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Config file path")
	port := fs.Int("port", 0, "WebSocket port (overrides config)")
	fs.Parse(args)

	app := setup(*configPath, *port)
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Listening on 127.0.0.1:%d\n", app.cfg.Port)
	if err := app.server.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCapture(args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Config file path")
	profileName := fs.String("profile", "", "Firefox profile name")
	fs.Parse(args)

	profile, err := resolveProfile(*profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tabs, err := firefox.ReadSessionTabs(profile.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading session: %v\n", err)
		os.Exit(1)
	}

	app := setup(*configPath, 0)
	defer app.close()

	count, err := app.capture.All(context.Background(), tabs, false, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Saved %d tabs from profile %s\n", count, profile.Name)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Config file path")
	fs.Parse(args)

	app := setup(*configPath, 0)
	defer app.close()

	path, err := app.exch.Export(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Config file path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tabspeicher import <file>")
		os.Exit(1)
	}
	file := fs.Arg(0)
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := setup(*configPath, 0)
	defer app.close()

	count, err := app.exch.ImportReplace(context.Background(), data, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d tabs from %s\n", count, file)
}

func runNew(args []string) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Config file path")
	fs.Parse(args)

	app := setup(*configPath, 0)
	defer app.close()

	path, err := app.exch.CreateBlank(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s and cleared saved tabs\n", path)
}

func runEnrich(args []string) {
	fs := flag.NewFlagSet("enrich", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Config file path")
	fs.Parse(args)

	app := setup(*configPath, 0)
	defer app.close()

	updated, err := enrich.New(app.store).Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Titled %d tabs\n", updated)
}

func runProfiles() {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering Firefox profiles: %v\n", err)
		os.Exit(1)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles with a session store found.")
		os.Exit(1)
	}
	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

func resolveProfile(name string) (firefox.Profile, error) {
	if name == "" {
		return firefox.DefaultProfile()
	}
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		return firefox.Profile{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return firefox.Profile{}, fmt.Errorf("profile %q not found", name)
}
