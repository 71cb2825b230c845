package cmd

import (
	"context"
	"fmt"

	"github.com/nibzard/roadmapper/internal/calendar"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/stats"
)

// listCommand lists roadmaps with their progress.
func listCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "list")
	verbose := fs.Bool("v", false, "Show roadmap ids")
	var format outputFormat
	format.register(fs)
	if _, err := parseArgs(fs, args, 0, 0, ""); err != nil {
		return err
	}

	doc, err := a.load(ctx)
	if err != nil {
		return err
	}
	summary := stats.Summary(doc, a.today())
	if format.structured() {
		return format.encode(a.out, summary)
	}

	if len(summary) == 0 {
		fmt.Fprintln(a.out, "No roadmaps yet. Create one with 'roadmapper create <name>'.")
		return nil
	}
	for _, s := range summary {
		fmt.Fprintf(a.out, "%-30s %-8s %3d tasks  %3d%% done  %d in progress  %d overdue\n",
			truncate(s.Name, 30), s.TimeScale, s.Stats.Total, s.Stats.CompletedPct,
			s.Stats.InProgress, s.Stats.Overdue)
		if *verbose {
			fmt.Fprintf(a.out, "    id: %s\n", s.ID)
		}
	}
	return nil
}

// createCommand creates a roadmap.
func createCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "create")
	scaleFlag := fs.String("scale", string(roadmap.DefaultTimeScale), "Time scale (daily, weekly, monthly)")
	rest, err := parseArgs(fs, args, 1, -1, "<name>")
	if err != nil {
		return err
	}
	scale, err := roadmap.ParseTimeScale(*scaleFlag)
	if err != nil {
		return err
	}

	var created roadmap.Roadmap
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, err := doc.CreateRoadmap(joinArgs(rest), scale)
		if err != nil {
			return err
		}
		created = *r
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created roadmap %q (%s, id %s)\n", created.Name, created.TimeScale, created.ID)
	return nil
}

// renameCommand renames a roadmap.
func renameCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "rename")
	rest, err := parseArgs(fs, args, 2, -1, "<roadmap> <new name>")
	if err != nil {
		return err
	}
	name := joinArgs(rest[1:])
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, err := doc.ResolveRoadmap(rest[0])
		if err != nil {
			return err
		}
		return doc.RenameRoadmap(r.ID, name)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Renamed roadmap to %q\n", name)
	return nil
}

// deleteCommand deletes a roadmap after confirmation.
func deleteCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "delete")
	rest, err := parseArgs(fs, args, 1, 1, "<roadmap>")
	if err != nil {
		return err
	}

	doc, err := a.load(ctx)
	if err != nil {
		return err
	}
	r, err := doc.ResolveRoadmap(rest[0])
	if err != nil {
		return err
	}
	question := fmt.Sprintf("Delete roadmap %q and its %d task(s)?", r.Name, len(r.Tasks))
	ok, err := a.prompter.Confirm(ctx, question)
	if err != nil && !cancelled(err) {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Nothing deleted.")
		return nil
	}

	id, name := r.ID, r.Name
	if err := a.mutate(ctx, func(doc *roadmap.Document) error {
		return doc.DeleteRoadmap(id)
	}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted roadmap %q\n", name)
	return nil
}

// scaleCommand sets a roadmap's time scale.
func scaleCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "scale")
	rest, err := parseArgs(fs, args, 2, 2, "<roadmap> <daily|weekly|monthly>")
	if err != nil {
		return err
	}
	scale, err := roadmap.ParseTimeScale(rest[1])
	if err != nil {
		return err
	}
	var name string
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, err := doc.ResolveRoadmap(rest[0])
		if err != nil {
			return err
		}
		name = r.Name
		return doc.SetTimeScale(r.ID, scale)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Roadmap %q now uses a %s scale\n", name, scale)
	return nil
}

// showCommand prints a roadmap's tasks grouped by its time scale.
func showCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "show")
	scaleFlag := fs.String("scale", "", "Group by this scale instead of the roadmap's own")
	groupFlag := fs.String("group", "", "Only show one group: its key, or 'today'")
	verbose := fs.Bool("v", false, "Show task ids, notes and categories")
	rest, err := parseArgs(fs, args, 1, 1, "<roadmap>")
	if err != nil {
		return err
	}

	doc, err := a.load(ctx)
	if err != nil {
		return err
	}
	r, err := doc.ResolveRoadmap(rest[0])
	if err != nil {
		return err
	}
	scale := r.TimeScale
	if *scaleFlag != "" {
		if scale, err = roadmap.ParseTimeScale(*scaleFlag); err != nil {
			return err
		}
	}

	today := a.today()
	groups := calendar.GroupTasks(r.Tasks, scale)
	if *groupFlag != "" {
		key := *groupFlag
		if key == "today" {
			date, _ := roadmap.ParseDate(today)
			g, ok := calendar.GroupFor(date, scale)
			if !ok {
				return fmt.Errorf("no %s group for %s", scale, today)
			}
			key = g.Key
		}
		idx := calendar.FindGroup(groups, key)
		if idx < 0 {
			return fmt.Errorf("no tasks in group %q", *groupFlag)
		}
		groups = groups[idx : idx+1]
	}

	st := stats.Calculate(r, today)
	fmt.Fprintf(a.out, "%s (%s)\n", r.Name, scale)
	fmt.Fprintf(a.out, "%d tasks: %d%% done, %d%% in progress, %d%% overdue\n",
		st.Total, st.CompletedPct, st.InProgressPct, st.OverduePct)
	if len(groups) == 0 {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "No tasks yet.")
		return nil
	}
	for _, g := range groups {
		fmt.Fprintln(a.out)
		fmt.Fprintf(a.out, "%s\n", g.Label)
		for _, t := range calendar.FilterTasksForGroup(r.Tasks, g) {
			printTask(a, t, today, *verbose)
		}
	}
	return nil
}

// statsCommand prints completion statistics for one or all roadmaps.
func statsCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "stats")
	var format outputFormat
	format.register(fs)
	rest, err := parseArgs(fs, args, 0, 1, "[roadmap]")
	if err != nil {
		return err
	}

	doc, err := a.load(ctx)
	if err != nil {
		return err
	}
	today := a.today()
	summary := stats.Summary(doc, today)
	if len(rest) == 1 {
		r, err := doc.ResolveRoadmap(rest[0])
		if err != nil {
			return err
		}
		summary = []stats.RoadmapSummary{{
			ID:        r.ID,
			Name:      r.Name,
			TimeScale: r.TimeScale,
			Stats:     stats.Calculate(r, today),
		}}
	}
	if format.structured() {
		return format.encode(a.out, summary)
	}
	if len(summary) == 0 {
		fmt.Fprintln(a.out, "No roadmaps yet.")
		return nil
	}
	for i, s := range summary {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		fmt.Fprintf(a.out, "%s\n", s.Name)
		fmt.Fprintf(a.out, "  Total:       %d\n", s.Stats.Total)
		fmt.Fprintf(a.out, "  Completed:   %d (%d%%)\n", s.Stats.Completed, s.Stats.CompletedPct)
		fmt.Fprintf(a.out, "  In progress: %d (%d%%)\n", s.Stats.InProgress, s.Stats.InProgressPct)
		fmt.Fprintf(a.out, "  Overdue:     %d (%d%%)\n", s.Stats.Overdue, s.Stats.OverduePct)
	}
	return nil
}

// printTask prints a single task line.
func printTask(a *app, t roadmap.Task, today string, verbose bool) {
	statusIcon := "⬜"
	switch {
	case t.Completed:
		statusIcon = "✅"
	case t.EndDate < today:
		statusIcon = "⏰"
	}

	dates := t.StartDate
	if t.EndDate != t.StartDate {
		dates += " → " + t.EndDate
	}
	fmt.Fprintf(a.out, "  %s %s  (%s)\n", statusIcon, t.Name, dates)

	if verbose {
		fmt.Fprintf(a.out, "      id: %s\n", t.ID)
		if t.Category != "" {
			fmt.Fprintf(a.out, "      Category: %s\n", t.Category)
		}
		if t.Notes != "" {
			fmt.Fprintf(a.out, "      Notes: %s\n", t.Notes)
		}
	}
}
