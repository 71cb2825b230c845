package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/storage"
)

// Choice is the user's answer to a storage switch.
type Choice int

const (
	// ChoiceMove copies the document to the new location.
	ChoiceMove Choice = iota + 1
	// ChoiceSkip starts from whatever the new location holds.
	ChoiceSkip
)

func (c Choice) String() string {
	switch c {
	case ChoiceMove:
		return "move"
	case ChoiceSkip:
		return "skip"
	}
	return fmt.Sprintf("Choice(%d)", int(c))
}

// ParseChoice parses "move" or "skip".
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "move", "m":
		return ChoiceMove, nil
	case "skip", "s":
		return ChoiceSkip, nil
	}
	return 0, fmt.Errorf("unknown choice %q (want move or skip)", s)
}

// SkipWarning is shown before a skip is confirmed.
const SkipWarning = "Skip without moving? Data in the previous location may become inaccessible, and the new location may be empty or outdated."

// SwitchPlan describes a pending switch so the caller can ask the user.
type SwitchPlan struct {
	// Needed is false when the target is the active location.
	Needed    bool
	From      config.StorageConfig
	To        config.StorageConfig
	TaskCount int
	Prompt    string
}

// PlanSwitch describes what switching to target would involve.
func (c *Coordinator) PlanSwitch(target config.StorageConfig) SwitchPlan {
	c.mu.Lock()
	defer c.mu.Unlock()

	plan := SwitchPlan{
		From: c.settings.Storage,
		To:   target,
	}
	if c.doc != nil {
		plan.TaskCount = c.doc.TaskCount()
	}
	plan.Needed = !plan.From.Same(target)
	if plan.Needed {
		plan.Prompt = switchPrompt(plan)
	}
	return plan
}

func switchPrompt(p SwitchPlan) string {
	switch {
	case p.From.Location == config.LocationLocal:
		return fmt.Sprintf("Move your %d task(s) (across all roadmaps) from local storage to the directory %q? If you skip, local storage will be cleared.",
			p.TaskCount, p.To.DirectoryName())
	case p.To.Location == config.LocationLocal:
		return fmt.Sprintf("Move your roadmap data from the directory %q to local storage? If you skip, the data in %q stays there but roadmapper will use local storage.",
			p.From.DirectoryName(), p.From.DirectoryName())
	default:
		return fmt.Sprintf("Move your roadmap data from %q to %q? If you skip, the data in %q stays there but roadmapper will use the new directory.",
			p.From.DirectoryName(), p.To.DirectoryName(), p.From.DirectoryName())
	}
}

// undoStack records how to put back each backend a switch has touched.
type undoStack struct {
	steps []func(context.Context) error
}

// track snapshots b so a later rollback can restore it.
func (u *undoStack) track(ctx context.Context, b storage.Backend) error {
	snap, err := b.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", b.Name(), err)
	}
	u.steps = append(u.steps, func(ctx context.Context) error {
		return b.Restore(ctx, snap)
	})
	return nil
}

// rollback restores every tracked backend, newest first.
func (u *undoStack) rollback(ctx context.Context) error {
	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Switch changes the storage location. With ChoiceMove the live document
// is read from the old location and written to target; with ChoiceSkip the
// document is loaded from target. Either way, leaving local storage clears
// it, while a directory being left keeps its file. handle may be nil, in
// which case a directory target is opened from its path.
//
// Either every step succeeds or none is visible afterwards: on failure the
// touched backends are restored, and the settings and live document stay
// as they were.
func (c *Coordinator) Switch(ctx context.Context, target config.StorageConfig, choice Choice, handle fsaccess.Handle) error {
	if choice != ChoiceMove && choice != ChoiceSkip {
		return fmt.Errorf("invalid switch choice %v", choice)
	}
	if target.Location == config.LocationDirectory && target.Directory == "" && handle != nil {
		target.Directory = handle.Path()
	}

	c.mu.Lock()
	if c.switching {
		c.mu.Unlock()
		return ErrSwitchInProgress
	}
	settings := c.settings
	from := settings.Storage
	if from.Same(target) {
		c.mu.Unlock()
		return ErrSameLocation
	}
	oldBackend := c.active
	live := c.doc
	loadErr := c.loadErr
	dirty := c.dirty
	c.switching = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.switching = false
		c.mu.Unlock()
	}()

	fail := func(stage string, err error, undo *undoStack) error {
		serr := &SwitchError{From: from, To: target, Stage: stage, Err: err}
		if undo != nil {
			if rerr := undo.rollback(ctx); rerr != nil {
				serr.Rollback = rerr
			}
		}
		c.logger.Error("storage switch failed", "from", from.Describe(), "to", target.Describe(), "stage", stage, "err", err)
		return serr
	}

	c.logger.Info("switching storage", "from", from.Describe(), "to", target.Describe(), "choice", choice)

	newBackend, err := c.backendFor(target, handle)
	if err != nil {
		return fail("opening the new location", err, nil)
	}

	undo := &undoStack{}
	var next *roadmap.Document
	var persistBack bool

	switch choice {
	case ChoiceMove:
		doc, err := c.moveSource(ctx, oldBackend, live, loadErr, dirty)
		if err != nil {
			return fail("reading the current location", err, nil)
		}
		if err := undo.track(ctx, newBackend); err != nil {
			return fail("preparing the new location", err, undo)
		}
		if err := newBackend.Save(ctx, doc); err != nil {
			return fail("writing to the new location", err, undo)
		}
		next = doc

	case ChoiceSkip:
		doc, res, err := c.loadFrom(ctx, newBackend)
		if err != nil {
			return fail("reading the new location", err, nil)
		}
		next = doc
		persistBack = res.Migrated()
	}

	if from.Location == config.LocationLocal {
		if err := undo.track(ctx, c.local); err != nil {
			return fail("preparing to clear local storage", err, undo)
		}
		if err := c.local.Clear(ctx); err != nil {
			return fail("clearing local storage", err, undo)
		}
	}

	newSettings := settings
	newSettings.Storage = target
	if err := c.saveSettings(newSettings); err != nil {
		return fail("saving settings", err, undo)
	}

	c.mu.Lock()
	c.settings.Storage = target
	c.active = newBackend
	c.doc = next
	c.loadErr = nil
	c.dirty = false
	c.mu.Unlock()

	c.logger.Info("storage switched", "to", target.Describe(), "choice", choice, "tasks", next.TaskCount())

	if persistBack {
		c.mu.Lock()
		c.persistMigrated(ctx)
		c.mu.Unlock()
	}
	return nil
}

// moveSource returns the document a move should carry. The stored copy is
// read fresh unless the live document holds unsaved changes.
func (c *Coordinator) moveSource(ctx context.Context, old storage.Backend, live *roadmap.Document, loadErr error, dirty bool) (*roadmap.Document, error) {
	if live != nil && dirty && loadErr == nil {
		return live.Clone(), nil
	}
	if old == nil {
		return nil, ErrNotLoaded
	}
	doc, res, err := c.loadFrom(ctx, old)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrParse, res.Err)
	}
	return doc, nil
}
