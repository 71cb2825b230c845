package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nibzard/roadmapper/internal/appdir"
	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/storage"
	"github.com/nibzard/roadmapper/internal/ui"
)

// tuiCommand launches the TUI.
func tuiCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "tui")
	rest, err := parseArgs(fs, args, 0, 1, "[roadmap]")
	if err != nil {
		return err
	}
	if err := a.coord.Load(ctx); err != nil {
		return err
	}

	var opts []ui.TUIOption
	if len(rest) == 1 {
		if _, err := a.coord.Document().ResolveRoadmap(rest[0]); err != nil {
			return err
		}
		opts = append(opts, ui.WithRoadmap(rest[0]))
	}
	err = ui.RunTUI(ctx, a.coord, opts...)
	if errors.Is(err, ui.ErrNoTTY) {
		return fmt.Errorf("%w; use 'roadmapper show <roadmap>' instead", err)
	}
	return err
}

// doctorCommand checks the configuration, the storage location and the
// stored document.
func doctorCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "doctor")
	retry := fs.Bool("retry", false, "Retry loading and saving the document")
	verbose := fs.Bool("v", false, "Verbose output")
	schemaPath := fs.String("schema", "", "Validate against this JSON Schema file instead of the bundled one")
	if _, err := parseArgs(fs, args, 0, 0, "[--retry] [-v]"); err != nil {
		return err
	}

	w := a.out
	fmt.Fprintln(w, "Roadmapper Doctor")
	fmt.Fprintln(w, "=================")
	fmt.Fprintln(w)

	allOK := true

	// Check data directory
	fmt.Fprintf(w, "Data directory: %s\n", a.cfg.DataDir)
	if info, err := os.Stat(a.cfg.DataDir); err != nil {
		fmt.Fprintf(w, "  ❌ Error: %v\n", err)
		allOK = false
	} else if !info.IsDir() {
		fmt.Fprintln(w, "  ❌ Error: path is not a directory")
		allOK = false
	} else {
		fmt.Fprintln(w, "  ✅ OK")
	}
	fmt.Fprintln(w)

	// Check config and settings
	fmt.Fprintln(w, "Config:")
	if a.cfg.ConfigFile != "" {
		fmt.Fprintf(w, "  ✅ Config file: %s\n", a.cfg.ConfigFile)
	} else {
		fmt.Fprintln(w, "  ✅ Config file: none (defaults)")
	}
	if _, err := os.Stat(a.cfg.SettingsFile); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(w, "  ⚠️  Settings file: %s not found (written on the first settings change)\n", a.cfg.SettingsFile)
		} else {
			fmt.Fprintf(w, "  ❌ Settings file: %v\n", err)
			allOK = false
		}
	} else if _, err := config.LoadSettings(a.cfg.SettingsFile); err != nil {
		fmt.Fprintf(w, "  ❌ Settings file: %v\n", err)
		allOK = false
	} else {
		fmt.Fprintf(w, "  ✅ Settings file: %s\n", a.cfg.SettingsFile)
	}
	settings := a.coord.Settings()
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(w, "  ❌ Settings: %v\n", err)
		allOK = false
	} else {
		fmt.Fprintf(w, "  ✅ Focus sessions: %d min work, %d min break\n",
			settings.Pomodoro.WorkMinutes, settings.Pomodoro.BreakMinutes)
	}
	fmt.Fprintln(w)

	// Check storage
	fmt.Fprintf(w, "Storage: %s\n", settings.Storage.Describe())
	if settings.Storage.Location == config.LocationDirectory {
		fmt.Fprintf(w, "  File: %s\n", appdir.DataPath(settings.Storage.Directory))
	}
	loadErr := a.coord.Load(ctx)
	if *retry {
		loadErr = a.coord.Retry(ctx)
		if loadErr == nil {
			// A no-op mutation rewrites the document, proving it can be saved.
			if err := a.coord.Mutate(ctx, func(*roadmap.Document) error { return nil }); err != nil {
				fmt.Fprintf(w, "  ❌ Save: %v\n", err)
				printHint(w, err)
				allOK = false
			} else {
				fmt.Fprintln(w, "  ✅ Saved")
			}
		}
	}
	st := a.coord.Status()
	if loadErr != nil {
		fmt.Fprintf(w, "  ❌ Load: %v\n", loadErr)
		printHint(w, loadErr)
		allOK = false
	} else {
		fmt.Fprintf(w, "  ✅ Loaded %d task(s) from %s (%s)\n", st.Tasks, st.Backend, st.Shape)
	}
	fmt.Fprintln(w)

	// Validate the stored document; a document that failed to decode is
	// still worth pointing at.
	if loadErr == nil || errors.Is(loadErr, storage.ErrParse) {
		fmt.Fprintln(w, "Document:")
		raw, err := a.readActive(ctx, settings.Storage)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fmt.Fprintln(w, "  ⚠️  Nothing stored yet")
		case err != nil:
			fmt.Fprintf(w, "  ❌ Read: %v\n", err)
			allOK = false
		default:
			result := roadmap.ValidateRaw(raw, roadmap.ValidationOptions{SchemaPath: *schemaPath})
			for _, warning := range result.Warnings {
				fmt.Fprintf(w, "  ⚠️  %s\n", warning)
			}
			if result.Valid {
				fmt.Fprintln(w, "  ✅ Valid")
			} else {
				fmt.Fprintln(w, "  ❌ Validation failed:")
				for _, e := range result.Errors {
					fmt.Fprintf(w, "     - %v\n", e)
				}
				allOK = false
			}
		}
		if *verbose && loadErr == nil {
			doc := a.coord.Document()
			fmt.Fprintf(w, "  Roadmaps: %d\n", len(doc.Roadmaps))
			for _, r := range doc.Roadmaps {
				fmt.Fprintf(w, "    - %s (%s, %d tasks)\n", r.Name, r.TimeScale, len(r.Tasks))
			}
			fmt.Fprintf(w, "  Sessions: %d\n", len(doc.PomodoroSessions))
		}
		fmt.Fprintln(w)
	}

	// Check directory grants
	grants, err := a.kv.ListGrants(ctx)
	fmt.Fprintln(w, "Directory access:")
	if err != nil {
		fmt.Fprintf(w, "  ❌ Error: %v\n", err)
		allOK = false
	} else {
		fmt.Fprintf(w, "  ✅ %d grant(s) recorded\n", len(grants))
		if *verbose {
			for _, g := range grants {
				fmt.Fprintf(w, "    - %s %s\n", g.Mode, g.Path)
			}
		}
	}
	fmt.Fprintln(w)

	// Overall status
	if allOK {
		fmt.Fprintln(w, "✅ All checks passed!")
		return nil
	}
	fmt.Fprintln(w, "⚠️  Some checks failed. Roadmapper may not function correctly.")
	return fmt.Errorf("doctor checks failed")
}

// readActive returns the raw stored document of the given location.
func (a *app) readActive(ctx context.Context, s config.StorageConfig) ([]byte, error) {
	var b storage.Backend = storage.NewLocalStore(a.kv)
	if s.Location == config.LocationDirectory {
		h, err := a.openDirectory(s.Directory)
		if err != nil {
			return nil, err
		}
		b = storage.NewDirectoryStore(h, a.logger)
	}
	return b.Load(ctx)
}

func printHint(w io.Writer, err error) {
	if hint := storage.Hint(err); hint != "" {
		fmt.Fprintf(w, "     Hint: %s\n", hint)
	}
}
