// Package cmd implements the CLI command structure for roadmapper.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/nibzard/roadmapper/internal/appdir"
	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/coordinator"
	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/kvstore"
	"github.com/nibzard/roadmapper/internal/logging"
	"github.com/nibzard/roadmapper/internal/prompt"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/storage"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the roadmapper CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("roadmapper", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		printUsage(fs, errOut)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, out)
		return nil
	}
	if *showVersion {
		return versionCommand(out)
	}

	subcommand := "list"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	var handler func(ctx context.Context, a *app, args []string) error
	switch subcommand {
	case "list", "ls":
		handler = listCommand
	case "create":
		handler = createCommand
	case "rename":
		handler = renameCommand
	case "delete":
		handler = deleteCommand
	case "scale":
		handler = scaleCommand
	case "show":
		handler = showCommand
	case "stats":
		handler = statsCommand
	case "add":
		handler = addCommand
	case "done":
		handler = doneCommand
	case "notes":
		handler = notesCommand
	case "rm":
		handler = rmCommand
	case "import":
		handler = importCommand
	case "export":
		handler = exportCommand
	case "focus":
		handler = focusCommand
	case "sessions":
		handler = sessionsCommand
	case "storage":
		handler = storageCommand
	case "settings":
		handler = settingsCommand
	case "dir":
		handler = dirCommand
	case "tui":
		handler = tuiCommand
	case "doctor":
		handler = doctorCommand
	case "version":
		return versionCommand(out)
	case "help":
		printUsage(fs, out)
		return nil
	default:
		fmt.Fprintf(errOut, "Unknown command: %s\n", subcommand)
		printUsage(fs, errOut)
		return fmt.Errorf("unknown command: %s", subcommand)
	}

	a, err := newApp(cfg, in, out, errOut)
	if err != nil {
		return err
	}
	defer a.close()

	err = handler(ctx, a, remainingArgs)
	if hint := storage.Hint(err); hint != "" {
		fmt.Fprintf(errOut, "Hint: %s\n", hint)
	}
	return err
}

// app bundles what the subcommands share: the loaded configuration, the
// local database, the prompter and the storage coordinator.
type app struct {
	cfg      *config.Config
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	logger   *log.Logger
	kv       *kvstore.Store
	prompter *prompt.Prompter
	coord    *coordinator.Coordinator
	now      func() time.Time
}

func newApp(cfg *config.Config, in io.Reader, out, errOut io.Writer) (*app, error) {
	logger := logging.FromConfig(errOut, cfg.LogLevel, cfg.LogFormat, cfg.LogTimestamps, cfg.LogCaller)

	kv, err := kvstore.Open(appdir.DatabasePath(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("opening local storage: %w", err)
	}

	a := &app{
		cfg:      cfg,
		in:       in,
		out:      out,
		errOut:   errOut,
		logger:   logger,
		kv:       kv,
		prompter: prompt.New(in, errOut, cfg.AssumeYes),
		now:      time.Now,
	}

	coord, err := coordinator.New(coordinator.Options{
		Settings: cfg.Settings(),
		Local:    storage.NewLocalStore(kv),
		OpenDirectory: func(path string) (fsaccess.Handle, error) {
			return a.openDirectory(path)
		},
		SaveSettings: func(s config.Settings) error {
			return config.SaveSettings(cfg.SettingsFile, s)
		},
		Logger: logger,
	})
	if err != nil {
		kv.Close()
		return nil, err
	}
	a.coord = coord
	return a, nil
}

func (a *app) close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("closing local storage", "err", err)
	}
}

func (a *app) openDirectory(path string) (fsaccess.Handle, error) {
	h, err := fsaccess.Open(path, a.kv, a.prompter)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// load reads the document from the active backend.
func (a *app) load(ctx context.Context) (*roadmap.Document, error) {
	if err := a.coord.Load(ctx); err != nil {
		return nil, err
	}
	return a.coord.Document(), nil
}

// saveAttempts bounds the in-process save retries after a failed save.
const saveAttempts = 3

// mutate loads the document and applies fn through the coordinator. When
// the save fails the change only lives in this process, so the user is
// offered to retry before it is lost.
func (a *app) mutate(ctx context.Context, fn func(*roadmap.Document) error) error {
	if err := a.coord.Load(ctx); err != nil {
		return err
	}
	err := a.coord.Mutate(ctx, fn)
	if !errors.Is(err, storage.ErrWriteFailure) {
		return err
	}
	return a.retrySave(ctx, err)
}

func (a *app) retrySave(ctx context.Context, err error) error {
	for range saveAttempts {
		fmt.Fprintf(a.errOut, "Could not save: %v\n", err)
		again, perr := a.prompter.Confirm(ctx, "Fix the problem, then try saving again?")
		if perr != nil || !again {
			return err
		}
		if err = a.coord.Retry(ctx); err == nil {
			fmt.Fprintln(a.errOut, "Saved.")
			return nil
		}
		a.logger.Debug("save retry failed", "err", err)
	}
	return err
}

func (a *app) today() string {
	return roadmap.FormatDate(a.now())
}

// outputFormat reads the --json and --yaml flags.
type outputFormat struct {
	json bool
	yaml bool
}

func (o *outputFormat) register(fs *flag.FlagSet) {
	fs.BoolVar(&o.json, "json", false, "Print JSON")
	fs.BoolVar(&o.yaml, "yaml", false, "Print YAML")
}

func (o outputFormat) structured() bool {
	return o.json || o.yaml
}

func (o outputFormat) encode(w io.Writer, v any) error {
	if o.yaml {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// parseArgs parses a subcommand flag set and checks the positional count.
// Flags may appear before, between or after positional arguments; "--"
// ends flag parsing.
func parseArgs(fs *flag.FlagSet, args []string, minArgs, maxArgs int, usage string) ([]string, error) {
	var rest []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		remaining := fs.Args()
		if len(remaining) == 0 {
			break
		}
		if len(args) > 0 && len(remaining) < len(args) && args[len(args)-len(remaining)-1] == "--" {
			rest = append(rest, remaining...)
			break
		}
		rest = append(rest, remaining[0])
		args = remaining[1:]
	}
	if len(rest) < minArgs {
		return nil, fmt.Errorf("usage: %s %s", fs.Name(), usage)
	}
	if maxArgs >= 0 && len(rest) > maxArgs {
		return nil, fmt.Errorf("unexpected arguments: %v", rest[maxArgs:])
	}
	return rest, nil
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("roadmapper "+name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// versionCommand prints version information.
func versionCommand(w io.Writer) error {
	fmt.Fprintf(w, "roadmapper version %s\n", Version)
	return nil
}

// cancelled reports whether err means the user backed out of a prompt.
func cancelled(err error) bool {
	return errors.Is(err, fsaccess.ErrPromptCancelled) || errors.Is(err, context.Canceled)
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Roadmapper - Plan dated tasks on daily, weekly and monthly roadmaps")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  roadmapper [options] [command] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Roadmaps:")
	fmt.Fprintln(w, "  list                          List roadmaps with progress (default command)")
	fmt.Fprintln(w, "  create <name>                 Create a roadmap")
	fmt.Fprintln(w, "  rename <roadmap> <name>       Rename a roadmap")
	fmt.Fprintln(w, "  delete <roadmap>              Delete a roadmap and its tasks")
	fmt.Fprintln(w, "  scale <roadmap> <scale>       Set the time scale (daily, weekly, monthly)")
	fmt.Fprintln(w, "  show <roadmap>                Show tasks grouped by the roadmap's time scale")
	fmt.Fprintln(w, "  stats [roadmap]               Show completion statistics")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tasks:")
	fmt.Fprintln(w, "  add <roadmap> <name>          Add a task")
	fmt.Fprintln(w, "  done <roadmap> <task>         Toggle a task's completion")
	fmt.Fprintln(w, "  notes <roadmap> <task> [text] Show or set a task's notes")
	fmt.Fprintln(w, "  rm <roadmap> <task>           Delete a task")
	fmt.Fprintln(w, "  import <roadmap> <file>       Import tasks from CSV or JSON")
	fmt.Fprintln(w, "  export <roadmap>              Export a roadmap as JSON or YAML")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Focus sessions:")
	fmt.Fprintln(w, "  focus [<roadmap> <task>]      Show or select the focus task")
	fmt.Fprintln(w, "  sessions [log]                List or record focus sessions")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Storage and settings:")
	fmt.Fprintln(w, "  storage [local|directory <path>]  Show or change where data is kept")
	fmt.Fprintln(w, "  settings [pomodoro]           Show or change settings")
	fmt.Fprintln(w, "  dir [list|grant|revoke]       Manage directory access grants")
	fmt.Fprintln(w, "  doctor                        Check configuration, storage and data")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  tui [roadmap]                 Launch terminal UI")
	fmt.Fprintln(w, "  version                       Show version information")
	fmt.Fprintln(w, "  help                          Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Roadmaps and tasks are referred to by id or by name.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// joinArgs joins free-text positional arguments.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
