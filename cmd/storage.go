package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/nibzard/roadmapper/internal/appdir"
	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/coordinator"
	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/storage"
)

// storageCommand shows the active storage location, or switches it with
// "storage local" or "storage directory <path>".
func storageCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "storage")
	move := fs.Bool("move", false, "Move the current data to the new location without asking")
	skip := fs.Bool("skip", false, "Start from the new location's data without asking")
	rest, err := parseArgs(fs, args, 0, 2, "[--move|--skip] [local | directory <path>]")
	if err != nil {
		return err
	}
	if *move && *skip {
		return errors.New("--move and --skip cannot be combined")
	}

	if len(rest) == 0 {
		return printStorage(ctx, a)
	}

	loc, err := config.ParseLocation(rest[0])
	if err != nil {
		return err
	}
	target := config.StorageConfig{Location: loc}
	var handle fsaccess.Handle
	if loc == config.LocationDirectory {
		if len(rest) < 2 {
			return fmt.Errorf("usage: %s directory <path>", fs.Name())
		}
		picker := fsaccess.PathPicker{Path: rest[1], Grants: a.kv, Prompter: a.prompter}
		if handle, err = picker.PickDirectory(ctx); err != nil {
			if errors.Is(err, fsaccess.ErrStaleHandle) {
				return fmt.Errorf("%w: %s is not an existing directory", storage.ErrNoDirectory, rest[1])
			}
			return err
		}
		target.Directory = handle.Path()
	} else if len(rest) > 1 {
		return fmt.Errorf("unexpected arguments: %v", rest[1:])
	}

	// Load first so a Move carries the current data, even if reading it
	// fails: the switch then reports why.
	if err := a.coord.Load(ctx); err != nil {
		a.logger.Warn("current storage could not be read", "err", err)
	}
	plan := a.coord.PlanSwitch(target)
	if !plan.Needed {
		fmt.Fprintf(a.out, "Already using %s.\n", target.Describe())
		return nil
	}

	var choice coordinator.Choice
	switch {
	case *move:
		choice = coordinator.ChoiceMove
	case *skip:
		choice = coordinator.ChoiceSkip
	default:
		choice, err = askChoice(ctx, a, plan)
		if err != nil {
			if cancelled(err) {
				fmt.Fprintln(a.out, "Storage unchanged.")
				return nil
			}
			return err
		}
		if choice == 0 {
			fmt.Fprintln(a.out, "Storage unchanged.")
			return nil
		}
	}

	if err := a.coord.Switch(ctx, target, choice, handle); err != nil {
		return err
	}
	if choice == coordinator.ChoiceMove {
		fmt.Fprintf(a.out, "Moved %d task(s) to %s.\n", plan.TaskCount, target.Describe())
	} else {
		fmt.Fprintf(a.out, "Now using %s (%d task(s)).\n", target.Describe(), a.coord.Status().Tasks)
	}
	return nil
}

// askChoice asks Move or Skip; a declined skip warning yields choice 0.
func askChoice(ctx context.Context, a *app, plan coordinator.SwitchPlan) (coordinator.Choice, error) {
	idx, err := a.prompter.Choose(ctx, plan.Prompt, []string{"Move", "Skip"})
	if err != nil {
		return 0, err
	}
	if idx == 0 {
		return coordinator.ChoiceMove, nil
	}
	ok, err := a.prompter.Confirm(ctx, coordinator.SkipWarning)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return coordinator.ChoiceSkip, nil
}

func printStorage(ctx context.Context, a *app) error {
	loadErr := a.coord.Load(ctx)
	st := a.coord.Status()
	fmt.Fprintf(a.out, "Storage: %s\n", st.Settings.Storage.Describe())
	if loadErr != nil {
		fmt.Fprintf(a.out, "Status:  unavailable (%v)\n", loadErr)
		return loadErr
	}
	fmt.Fprintf(a.out, "Tasks:   %d\n", st.Tasks)
	return nil
}

// dirCommand manages remembered directory permissions.
func dirCommand(ctx context.Context, a *app, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list", "ls":
		return dirList(ctx, a, args)
	case "grant":
		return dirGrant(ctx, a, args)
	case "revoke":
		return dirRevoke(ctx, a, args)
	}
	return fmt.Errorf("unknown dir command: %s (want list, grant or revoke)", sub)
}

func dirList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "dir list")
	if _, err := parseArgs(fs, args, 0, 0, ""); err != nil {
		return err
	}
	grants, err := a.kv.ListGrants(ctx)
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		fmt.Fprintln(a.out, "No directory access granted.")
		return nil
	}
	for _, g := range grants {
		fmt.Fprintf(a.out, "%-9s %s  (granted %s)\n", g.Mode, g.Path, g.GrantedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func dirGrant(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "dir grant")
	modeFlag := fs.String("mode", string(fsaccess.ModeReadWrite), "Access mode (read, readwrite)")
	rest, err := parseArgs(fs, args, 0, 1, "[--mode read|readwrite] [path]")
	if err != nil {
		return err
	}
	mode, err := fsaccess.ParseMode(*modeFlag)
	if err != nil {
		return err
	}

	path := a.coord.Settings().Storage.Directory
	if len(rest) == 1 {
		path = rest[0]
	}
	if path == "" {
		return fmt.Errorf("%w: pass the directory to grant", storage.ErrNoDirectory)
	}
	h, err := a.openDirectory(path)
	if err != nil {
		return err
	}
	state, err := h.RequestPermission(ctx, mode)
	if err != nil {
		return err
	}
	if state != fsaccess.StateGranted {
		return &storage.PermissionError{Directory: h.Name(), Mode: mode, State: state}
	}
	fmt.Fprintf(a.out, "Granted %s access to %s\n", mode, h.Path())
	return nil
}

func dirRevoke(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "dir revoke")
	rest, err := parseArgs(fs, args, 1, 1, "<path>")
	if err != nil {
		return err
	}
	path, err := appdir.Canonical(rest[0])
	if err != nil {
		return err
	}
	n, err := a.kv.RevokeGrants(ctx, path)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintf(a.out, "No access was granted to %s\n", path)
		return nil
	}
	fmt.Fprintf(a.out, "Revoked %d grant(s) for %s\n", n, path)
	return nil
}
