package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nibzard/roadmapper/internal/importer"
	"github.com/nibzard/roadmapper/internal/roadmap"
)

// addCommand adds a task to a roadmap.
func addCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "add")
	start := fs.String("start", "", "Start date YYYY-MM-DD (default today)")
	end := fs.String("end", "", "End date YYYY-MM-DD (default the start date)")
	category := fs.String("category", "", "Optional category")
	rest, err := parseArgs(fs, args, 2, -1, "[--start YYYY-MM-DD] [--end YYYY-MM-DD] <roadmap> <name>")
	if err != nil {
		return err
	}

	n := roadmap.NewTask{
		Name:      joinArgs(rest[1:]),
		StartDate: *start,
		EndDate:   *end,
		Category:  strings.TrimSpace(*category),
	}
	if n.StartDate == "" {
		n.StartDate = a.today()
	}
	if n.EndDate == "" {
		n.EndDate = n.StartDate
	}

	var added roadmap.Task
	var roadmapName string
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, err := doc.ResolveRoadmap(rest[0])
		if err != nil {
			return err
		}
		roadmapName = r.Name
		added, err = doc.AddTask(r.ID, n)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %q to %q (%s → %s)\n", added.Name, roadmapName, added.StartDate, added.EndDate)
	return nil
}

// doneCommand toggles a task's completion.
func doneCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "done")
	rest, err := parseArgs(fs, args, 2, -1, "<roadmap> <task>")
	if err != nil {
		return err
	}

	var name string
	var completed bool
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, t, err := resolveTask(doc, rest[0], joinArgs(rest[1:]))
		if err != nil {
			return err
		}
		name = t.Name
		completed, err = doc.ToggleComplete(r.ID, t.ID)
		return err
	})
	if err != nil {
		return err
	}
	if completed {
		fmt.Fprintf(a.out, "✅ %s is done\n", name)
	} else {
		fmt.Fprintf(a.out, "⬜ %s is open again\n", name)
	}
	return nil
}

// notesCommand shows or replaces a task's notes.
func notesCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "notes")
	set := fs.String("set", "", "Replace the notes with this text")
	clearNotes := fs.Bool("clear", false, "Remove the notes")
	rest, err := parseArgs(fs, args, 2, -1, "[--set text | --clear] <roadmap> <task>")
	if err != nil {
		return err
	}
	taskRef := joinArgs(rest[1:])

	setGiven := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "set" {
			setGiven = true
		}
	})

	if !setGiven && !*clearNotes {
		doc, err := a.load(ctx)
		if err != nil {
			return err
		}
		_, t, err := resolveTask(doc, rest[0], taskRef)
		if err != nil {
			return err
		}
		if t.Notes == "" {
			fmt.Fprintf(a.out, "%s has no notes.\n", t.Name)
			return nil
		}
		fmt.Fprintln(a.out, t.Notes)
		return nil
	}
	if setGiven && *clearNotes {
		return fmt.Errorf("--set and --clear cannot be combined")
	}

	notes := *set
	if *clearNotes {
		notes = ""
	}
	var name string
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, t, err := resolveTask(doc, rest[0], taskRef)
		if err != nil {
			return err
		}
		name = t.Name
		return doc.SetNotes(r.ID, t.ID, notes)
	})
	if err != nil {
		return err
	}
	if notes == "" {
		fmt.Fprintf(a.out, "Cleared notes of %q\n", name)
	} else {
		fmt.Fprintf(a.out, "Updated notes of %q\n", name)
	}
	return nil
}

// rmCommand deletes a task.
func rmCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "rm")
	rest, err := parseArgs(fs, args, 2, -1, "<roadmap> <task>")
	if err != nil {
		return err
	}
	var name string
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, t, err := resolveTask(doc, rest[0], joinArgs(rest[1:]))
		if err != nil {
			return err
		}
		name = t.Name
		return doc.DeleteTask(r.ID, t.ID)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted task %q\n", name)
	return nil
}

// importCommand appends tasks from a CSV or JSON file to a roadmap.
func importCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "import")
	formatFlag := fs.String("format", "", "Input format (csv, json); default from the file extension")
	rest, err := parseArgs(fs, args, 2, 2, "[--format csv|json] <roadmap> <file|->")
	if err != nil {
		return err
	}

	format := strings.ToLower(*formatFlag)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(rest[1])), ".")
	}
	data, err := readInput(a, rest[1])
	if err != nil {
		return err
	}

	var tasks []roadmap.Task
	switch format {
	case "csv":
		res, err := importer.ParseCSV(bytes.NewReader(data))
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			a.logger.Warn(w.String())
		}
		tasks = res.Tasks
	case "json":
		if tasks, err = importer.ParseTasksJSON(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot tell the format of %q; pass --format csv or --format json", rest[1])
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no valid tasks found in %s", rest[1])
	}

	var count int
	var roadmapName string
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, err := doc.ResolveRoadmap(rest[0])
		if err != nil {
			return err
		}
		roadmapName = r.Name
		count, err = doc.ImportTasks(r.ID, tasks)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d task(s) into %q\n", count, roadmapName)
	return nil
}

// exportCommand writes a roadmap as JSON or YAML.
func exportCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "export")
	formatFlag := fs.String("format", "json", "Output format (json, yaml)")
	output := fs.String("o", "", "Output file, or - for stdout (default <name>-data.<ext>)")
	rest, err := parseArgs(fs, args, 1, 1, "[--format json|yaml] [-o file] <roadmap>")
	if err != nil {
		return err
	}
	format, err := importer.ParseFormat(*formatFlag)
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

	if *output == "-" {
		return importer.Export(a.out, r, format)
	}
	path := *output
	if path == "" {
		path = importer.FileName(r.Name, format)
	}
	var buf bytes.Buffer
	if err := importer.Export(&buf, r, format); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(a.out, "Exported %q to %s\n", r.Name, path)
	return nil
}

func resolveTask(doc *roadmap.Document, roadmapRef, taskRef string) (*roadmap.Roadmap, *roadmap.Task, error) {
	r, err := doc.ResolveRoadmap(roadmapRef)
	if err != nil {
		return nil, nil, err
	}
	t, err := r.ResolveTask(taskRef)
	if err != nil {
		return nil, nil, err
	}
	return r, t, nil
}

func readInput(a *app, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
