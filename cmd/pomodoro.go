package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/roadmap"
)

// focusCommand shows, selects or clears the task used for focus sessions.
func focusCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "focus")
	clearFocus := fs.Bool("clear", false, "Clear the focus task")
	rest, err := parseArgs(fs, args, 0, -1, "[--clear] [<roadmap> <task>]")
	if err != nil {
		return err
	}

	switch {
	case *clearFocus:
		if len(rest) > 0 {
			return fmt.Errorf("unexpected arguments: %v", rest)
		}
		if err := a.mutate(ctx, func(doc *roadmap.Document) error {
			doc.ClearActivePomodoroTask()
			return nil
		}); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Focus task cleared")
		return nil

	case len(rest) == 0:
		doc, err := a.load(ctx)
		if err != nil {
			return err
		}
		active := doc.ActivePomodoroTask
		if active == nil {
			fmt.Fprintln(a.out, "No focus task selected.")
			return nil
		}
		line := fmt.Sprintf("Focus: %s", active.TaskName)
		if active.TaskCategory != "" {
			line += fmt.Sprintf(" [%s]", active.TaskCategory)
		}
		if r := doc.Roadmap(active.RoadmapID); r != nil {
			line += fmt.Sprintf(" in %q", r.Name)
		}
		fmt.Fprintln(a.out, line)
		return nil

	case len(rest) == 1:
		return fmt.Errorf("usage: %s %s", fs.Name(), "[--clear] [<roadmap> <task>]")
	}

	var name string
	err = a.mutate(ctx, func(doc *roadmap.Document) error {
		r, t, err := resolveTask(doc, rest[0], joinArgs(rest[1:]))
		if err != nil {
			return err
		}
		name = t.Name
		return doc.SetActivePomodoroTask(r.ID, t.ID)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Focusing on %q\n", name)
	return nil
}

// sessionsCommand lists the session log, or records a finished session
// with "sessions log".
func sessionsCommand(ctx context.Context, a *app, args []string) error {
	if len(args) > 0 && args[0] == "log" {
		return logSession(ctx, a, args[1:])
	}

	fs := newFlagSet(a, "sessions")
	limit := fs.Int("n", 0, "Show only the last n sessions (0 = all)")
	var format outputFormat
	format.register(fs)
	if _, err := parseArgs(fs, args, 0, 0, "[log]"); err != nil {
		return err
	}

	doc, err := a.load(ctx)
	if err != nil {
		return err
	}
	sessions := doc.PomodoroSessions
	if *limit > 0 && len(sessions) > *limit {
		sessions = sessions[len(sessions)-*limit:]
	}
	if format.structured() {
		return format.encode(a.out, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.out, "No focus sessions recorded.")
		return nil
	}

	var workSeconds int
	for _, s := range sessions {
		icon := "🍅"
		if s.SessionType == roadmap.SessionBreak {
			icon = "☕"
		}
		status := ""
		if !s.Completed {
			status = " (stopped early)"
		}
		fmt.Fprintf(a.out, "%s %s  %-5s %3d min  %s%s\n",
			icon, formatSessionTime(s.StartTime), s.SessionType,
			s.ActualDurationSeconds/60, s.TaskName, status)
		if s.SessionType == roadmap.SessionWork {
			workSeconds += s.ActualDurationSeconds
		}
	}
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "%d session(s), %d min of focused work\n", len(sessions), workSeconds/60)
	return nil
}

// logSession appends a finished session for the focus task.
func logSession(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "sessions log")
	kind := fs.String("type", string(roadmap.SessionWork), "Session type (work, break)")
	minutes := fs.Int("minutes", 0, "Actual length in minutes (default the planned length)")
	stopped := fs.Bool("stopped", false, "The session was stopped before the timer ran out")
	if _, err := parseArgs(fs, args, 0, 0, "[--type work|break] [--minutes n] [--stopped]"); err != nil {
		return err
	}

	sessionType := roadmap.SessionType(*kind)
	pomodoro := a.coord.Settings().Pomodoro
	var planned int
	switch sessionType {
	case roadmap.SessionWork:
		planned = pomodoro.WorkMinutes
	case roadmap.SessionBreak:
		planned = pomodoro.BreakMinutes
	default:
		return fmt.Errorf("unknown session type %q (want work or break)", *kind)
	}
	actual := planned
	if *minutes > 0 {
		actual = *minutes
	}
	if *minutes < 0 {
		return fmt.Errorf("--minutes must not be negative")
	}

	end := a.now().UTC()
	start := end.Add(-time.Duration(actual) * time.Minute)
	var logged roadmap.PomodoroSession
	err := a.mutate(ctx, func(doc *roadmap.Document) error {
		active := doc.ActivePomodoroTask
		if active == nil {
			return fmt.Errorf("%w: no focus task selected; pick one with 'roadmapper focus <roadmap> <task>'", roadmap.ErrInvalid)
		}
		logged = doc.AppendSession(roadmap.PomodoroSession{
			RoadmapID:              active.RoadmapID,
			TaskID:                 active.TaskID,
			TaskName:               active.TaskName,
			TaskCategory:           active.TaskCategory,
			StartTime:              start.Format(sessionTimeLayout),
			EndTime:                end.Format(sessionTimeLayout),
			PlannedDurationSeconds: planned * 60,
			ActualDurationSeconds:  actual * 60,
			SessionType:            sessionType,
			Completed:              !*stopped,
		})
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged a %d min %s session for %q\n", actual, logged.SessionType, logged.TaskName)
	return nil
}

// sessionTimeLayout writes UTC timestamps with millisecond precision.
const sessionTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatSessionTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04")
}

// settingsCommand shows settings, or changes the focus session lengths
// with "settings pomodoro".
func settingsCommand(ctx context.Context, a *app, args []string) error {
	if len(args) > 0 && args[0] == "pomodoro" {
		return pomodoroSettings(a, args[1:])
	}

	fs := newFlagSet(a, "settings")
	if _, err := parseArgs(fs, args, 0, 0, "[pomodoro]"); err != nil {
		return err
	}

	s := a.coord.Settings()
	fmt.Fprintf(a.out, "Storage:        %s\n", s.Storage.Describe())
	fmt.Fprintf(a.out, "Work session:   %d min\n", s.Pomodoro.WorkMinutes)
	fmt.Fprintf(a.out, "Break session:  %d min\n", s.Pomodoro.BreakMinutes)
	fmt.Fprintf(a.out, "Settings file:  %s\n", a.cfg.SettingsFile)
	if a.cfg.ConfigFile != "" {
		fmt.Fprintf(a.out, "Config file:    %s\n", a.cfg.ConfigFile)
	}
	return nil
}

func pomodoroSettings(a *app, args []string) error {
	fs := newFlagSet(a, "settings pomodoro")
	current := a.coord.Settings().Pomodoro
	work := fs.Int("work", current.WorkMinutes, "Work session length in minutes")
	breakMinutes := fs.Int("break", current.BreakMinutes, "Break session length in minutes")
	if _, err := parseArgs(fs, args, 0, 0, "[--work n] [--break n]"); err != nil {
		return err
	}

	p := config.PomodoroConfig{WorkMinutes: *work, BreakMinutes: *breakMinutes}
	if err := a.coord.UpdatePomodoro(p); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Focus sessions: %d min work, %d min break\n", p.WorkMinutes, p.BreakMinutes)
	return nil
}
