// Package cmd provides tests for CLI command handlers.
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nibzard/roadmapper/internal/appdir"
	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/coordinator"
	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/logging"
	"github.com/nibzard/roadmapper/internal/prompt"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/stats"
	"github.com/nibzard/roadmapper/internal/storage"
	"github.com/nibzard/roadmapper/internal/testutil"
	"github.com/nibzard/roadmapper/internal/ui"
)

// isolate points HOME and the data directory at temp dirs and clears the
// ROADMAPPER_* variables. It returns the data directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, name := range []string{
		"ROADMAPPER_CONFIG",
		"ROADMAPPER_STORAGE",
		"ROADMAPPER_DIRECTORY",
		"ROADMAPPER_POMODORO_WORK",
		"ROADMAPPER_POMODORO_BREAK",
		"ROADMAPPER_YES",
		"ROADMAPPER_LOG_LEVEL",
		"ROADMAPPER_LOG_FORMAT",
		"ROADMAPPER_LOG_TIMESTAMPS",
		"ROADMAPPER_LOG_CALLER",
	} {
		t.Setenv(name, "")
	}
	dataDir := filepath.Join(home, "data")
	t.Setenv("ROADMAPPER_DATA_DIR", dataDir)
	return dataDir
}

type result struct {
	out    string
	errOut string
	err    error
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res := runCLI(t, "", args...)
	if res.err != nil {
		t.Fatalf("run %v: %v\nstdout:\n%s\nstderr:\n%s", args, res.err, res.out, res.errOut)
	}
	return res.out
}

func listSummary(t *testing.T, args ...string) []stats.RoadmapSummary {
	t.Helper()
	out := mustRun(t, append(args, "list", "--json")...)
	var summary []stats.RoadmapSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("list --json output is not JSON: %v\n%s", err, out)
	}
	return summary
}

// TestRun tests the main Run function.
func TestRun(t *testing.T) {
	isolate(t)

	t.Run("shows help with --help flag", func(t *testing.T) {
		res := runCLI(t, "", "--help")
		if res.err != nil {
			t.Errorf("expected no error with --help, got %v", res.err)
		}
		if !strings.Contains(res.out, "Usage:") {
			t.Errorf("help output missing usage:\n%s", res.out)
		}
	})

	t.Run("shows help with help command", func(t *testing.T) {
		res := runCLI(t, "", "help")
		if res.err != nil {
			t.Errorf("expected no error with help command, got %v", res.err)
		}
		if !strings.Contains(res.out, "storage [local|directory <path>]") {
			t.Errorf("help output missing storage command:\n%s", res.out)
		}
	})

	t.Run("shows version", func(t *testing.T) {
		for _, args := range [][]string{{"--version"}, {"-v"}, {"version"}} {
			res := runCLI(t, "", args...)
			if res.err != nil {
				t.Errorf("%v: unexpected error %v", args, res.err)
			}
			if !strings.Contains(res.out, "roadmapper version") {
				t.Errorf("%v: output = %q", args, res.out)
			}
		}
	})

	t.Run("unknown command returns error", func(t *testing.T) {
		res := runCLI(t, "", "unknown-command")
		if res.err == nil || !strings.Contains(res.err.Error(), "unknown command") {
			t.Errorf("expected 'unknown command' error, got %v", res.err)
		}
	})

	t.Run("list with no roadmaps", func(t *testing.T) {
		out := mustRun(t)
		if !strings.Contains(out, "No roadmaps yet") {
			t.Errorf("default command output = %q", out)
		}
	})

	t.Run("bad storage flag fails config loading", func(t *testing.T) {
		res := runCLI(t, "", "--storage", "cloud", "list")
		if res.err == nil || !strings.Contains(res.err.Error(), "loading config") {
			t.Errorf("expected config error, got %v", res.err)
		}
	})
}

func TestRoadmapLifecycle(t *testing.T) {
	isolate(t)

	mustRun(t, "create", "--scale", "monthly", "Q3", "Launch")
	summary := listSummary(t)
	if len(summary) != 1 || summary[0].Name != "Q3 Launch" || summary[0].TimeScale != roadmap.TimeScaleMonthly {
		t.Fatalf("summary = %+v", summary)
	}

	mustRun(t, "rename", "q3 launch", "Launch")
	mustRun(t, "scale", "Launch", "d")
	summary = listSummary(t)
	if summary[0].Name != "Launch" || summary[0].TimeScale != roadmap.TimeScaleDaily {
		t.Fatalf("after rename and scale: %+v", summary)
	}

	res := runCLI(t, "", "create", "--scale", "yearly", "Other")
	if !errors.Is(res.err, roadmap.ErrInvalid) {
		t.Errorf("create with bad scale: got %v, want ErrInvalid", res.err)
	}
	res = runCLI(t, "", "rename", "missing", "x")
	if !errors.Is(res.err, roadmap.ErrRoadmapNotFound) {
		t.Errorf("rename missing: got %v, want ErrRoadmapNotFound", res.err)
	}

	// Declining the confirmation keeps the roadmap.
	res = runCLI(t, "n\n", "delete", "Launch")
	if res.err != nil {
		t.Fatalf("delete declined: %v", res.err)
	}
	if !strings.Contains(res.out, "Nothing deleted") {
		t.Errorf("delete declined output = %q", res.out)
	}
	if got := listSummary(t); len(got) != 1 {
		t.Fatalf("roadmap deleted despite the declined prompt: %+v", got)
	}

	mustRun(t, "--yes", "delete", "Launch")
	if got := listSummary(t); len(got) != 0 {
		t.Fatalf("roadmap still listed after delete: %+v", got)
	}
}

func TestTaskCommands(t *testing.T) {
	isolate(t)

	mustRun(t, "create", "Plan")
	mustRun(t, "add", "--start", "2024-01-08", "--end", "2024-01-10", "Plan", "Write", "draft")
	mustRun(t, "add", "Plan", "Kickoff", "--start", "2024-01-01", "--category", "meetings")

	res := runCLI(t, "", "add", "--start", "2024-02-02", "--end", "2024-02-01", "Plan", "Backwards")
	if !errors.Is(res.err, roadmap.ErrInvalid) {
		t.Errorf("add with end before start: got %v, want ErrInvalid", res.err)
	}

	out := mustRun(t, "show", "Plan")
	for _, want := range []string{"Week 1: Jan 1 - Jan 7, 2024", "Kickoff", "Week 2: Jan 8 - Jan 14, 2024", "Write draft"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Kickoff") > strings.Index(out, "Write draft") {
		t.Errorf("tasks are not ordered by start date:\n%s", out)
	}

	out = mustRun(t, "show", "--scale", "monthly", "--group", "2024-01", "Plan")
	if !strings.Contains(out, "January 2024") {
		t.Errorf("monthly group missing:\n%s", out)
	}
	if res := runCLI(t, "", "show", "--group", "2030-W01", "Plan"); res.err == nil {
		t.Error("expected an error for a group without tasks")
	}

	out = mustRun(t, "done", "Plan", "kickoff")
	if !strings.Contains(out, "is done") {
		t.Errorf("done output = %q", out)
	}

	mustRun(t, "notes", "--set", "Bring slides", "Plan", "Kickoff")
	out = mustRun(t, "notes", "Plan", "Kickoff")
	if strings.TrimSpace(out) != "Bring slides" {
		t.Errorf("notes = %q", out)
	}
	mustRun(t, "notes", "--clear", "Plan", "Kickoff")
	out = mustRun(t, "notes", "Plan", "Kickoff")
	if !strings.Contains(out, "has no notes") {
		t.Errorf("notes after clear = %q", out)
	}

	out = mustRun(t, "stats", "--json", "Plan")
	var summary []stats.RoadmapSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("stats --json: %v\n%s", err, out)
	}
	if len(summary) != 1 || summary[0].Stats.Total != 2 || summary[0].Stats.Completed != 1 || summary[0].Stats.CompletedPct != 50 {
		t.Errorf("stats = %+v", summary)
	}

	mustRun(t, "rm", "Plan", "Write draft")
	if res := runCLI(t, "", "rm", "Plan", "Write draft"); !errors.Is(res.err, roadmap.ErrTaskNotFound) {
		t.Errorf("second rm: got %v, want ErrTaskNotFound", res.err)
	}
}

func TestImportExport(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "tasks.csv")
	csvData := "Name,StartDate,EndDate\nDesign,2024-03-01,2024-03-05\n,2024-03-02,2024-03-03\nBuild,2024-03-06,2024-03-20\n"
	if err := os.WriteFile(csvPath, []byte(csvData), 0o644); err != nil {
		t.Fatal(err)
	}

	mustRun(t, "create", "Release")
	res := runCLI(t, "", "import", "Release", csvPath)
	if res.err != nil {
		t.Fatalf("import csv: %v", res.err)
	}
	if !strings.Contains(res.out, "Imported 2 task(s)") {
		t.Errorf("import output = %q", res.out)
	}
	if !strings.Contains(res.errOut, "skipping row 3") {
		t.Errorf("expected a warning for the invalid row, stderr:\n%s", res.errOut)
	}

	jsonPath := filepath.Join(dir, "more.json")
	jsonData := `[{"id":"x","name":"Ship","startDate":"2024-03-21","endDate":"2024-03-21","completed":true}]`
	if err := os.WriteFile(jsonPath, []byte(jsonData), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun(t, "import", "Release", jsonPath)

	if res := runCLI(t, "", "import", "Release", filepath.Join(dir, "tasks.txt")); res.err == nil {
		t.Error("expected an error for an unknown import format")
	}

	exportPath := filepath.Join(dir, "out.json")
	mustRun(t, "export", "-o", exportPath, "Release")
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	var exported roadmap.Roadmap
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	var names []string
	for _, task := range exported.Tasks {
		names = append(names, task.Name)
	}
	if want := []string{"Design", "Build", "Ship"}; !reflect.DeepEqual(names, want) {
		t.Errorf("exported tasks = %v, want %v", names, want)
	}

	out := mustRun(t, "export", "--format", "yaml", "-o", "-", "Release")
	var fromYAML roadmap.Roadmap
	if err := yaml.Unmarshal([]byte(out), &fromYAML); err != nil {
		t.Fatalf("yaml export: %v\n%s", err, out)
	}
	if fromYAML.Name != "Release" || len(fromYAML.Tasks) != 3 {
		t.Errorf("yaml export = %+v", fromYAML)
	}

	// An exported roadmap can be imported into another one.
	mustRun(t, "create", "Copy")
	mustRun(t, "import", "Copy", exportPath)
	summary := listSummary(t)
	if summary[1].Stats.Total != 3 {
		t.Errorf("imported copy has %d tasks, want 3", summary[1].Stats.Total)
	}
}

func TestFocusAndSessions(t *testing.T) {
	isolate(t)

	mustRun(t, "create", "Work")
	mustRun(t, "add", "--start", "2024-01-01", "--category", "deep", "Work", "Refactor")

	if res := runCLI(t, "", "sessions", "log"); !errors.Is(res.err, roadmap.ErrInvalid) {
		t.Errorf("logging without a focus task: got %v, want ErrInvalid", res.err)
	}

	mustRun(t, "focus", "Work", "Refactor")
	out := mustRun(t, "focus")
	if !strings.Contains(out, "Refactor [deep]") {
		t.Errorf("focus output = %q", out)
	}

	mustRun(t, "sessions", "log")
	mustRun(t, "sessions", "log", "--type", "break", "--minutes", "3", "--stopped")

	out = mustRun(t, "sessions", "--json")
	var sessions []roadmap.PomodoroSession
	if err := json.Unmarshal([]byte(out), &sessions); err != nil {
		t.Fatalf("sessions --json: %v\n%s", err, out)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	work, brk := sessions[0], sessions[1]
	if work.SessionType != roadmap.SessionWork || work.PlannedDurationSeconds != 25*60 || !work.Completed || work.TaskCategory != "deep" {
		t.Errorf("work session = %+v", work)
	}
	if brk.SessionType != roadmap.SessionBreak || brk.PlannedDurationSeconds != 5*60 || brk.ActualDurationSeconds != 3*60 || brk.Completed {
		t.Errorf("break session = %+v", brk)
	}

	// Deleting the focus task clears the selection but keeps the log.
	mustRun(t, "rm", "Work", "Refactor")
	out = mustRun(t, "focus")
	if !strings.Contains(out, "No focus task selected") {
		t.Errorf("focus after rm = %q", out)
	}
	out = mustRun(t, "sessions")
	if !strings.Contains(out, "2 session(s)") {
		t.Errorf("sessions output = %q", out)
	}
}

func TestSettingsPomodoro(t *testing.T) {
	dataDir := isolate(t)

	mustRun(t, "settings", "pomodoro", "--work", "50", "--break", "10")
	s, err := config.LoadSettings(appdir.SettingsPath(dataDir))
	if err != nil {
		t.Fatal(err)
	}
	if s.Pomodoro.WorkMinutes != 50 || s.Pomodoro.BreakMinutes != 10 {
		t.Errorf("saved pomodoro = %+v", s.Pomodoro)
	}
	out := mustRun(t, "settings")
	if !strings.Contains(out, "50 min") {
		t.Errorf("settings output = %q", out)
	}

	res := runCLI(t, "", "settings", "pomodoro", "--work", "0")
	if res.err == nil {
		t.Error("expected an error for a zero-minute work session")
	}
}

func TestStorageSwitch(t *testing.T) {
	dataDir := isolate(t)
	target := t.TempDir()

	mustRun(t, "create", "Trip")
	mustRun(t, "add", "--start", "2024-05-01", "Trip", "Book", "flights")

	out := mustRun(t, "--yes", "storage", "--move", "directory", target)
	if !strings.Contains(out, "Moved 1 task(s)") {
		t.Errorf("storage output = %q", out)
	}
	if _, err := os.Stat(appdir.DataPath(target)); err != nil {
		t.Fatalf("data file not written: %v", err)
	}
	s, err := config.LoadSettings(appdir.SettingsPath(dataDir))
	if err != nil {
		t.Fatal(err)
	}
	if s.Storage.Location != config.LocationDirectory {
		t.Errorf("saved location = %q, want directory", s.Storage.Location)
	}

	// The grant is remembered, so later runs need no --yes.
	summary := listSummary(t)
	if len(summary) != 1 || summary[0].Stats.Total != 1 {
		t.Fatalf("summary after move = %+v", summary)
	}
	out = mustRun(t, "storage")
	if !strings.Contains(out, "directory") {
		t.Errorf("storage status = %q", out)
	}
	out = mustRun(t, "storage", "directory", target)
	if !strings.Contains(out, "Already using") {
		t.Errorf("switch to the same directory: %q", out)
	}

	// Moving back brings the data with it; the directory file is left alone.
	mustRun(t, "storage", "--move", "local")
	if summary := listSummary(t); len(summary) != 1 {
		t.Fatalf("summary after moving back = %+v", summary)
	}
	if _, err := os.Stat(appdir.DataPath(target)); err != nil {
		t.Errorf("directory file removed by the switch: %v", err)
	}
}

func TestStorageSkipStartsFromTarget(t *testing.T) {
	isolate(t)
	target := t.TempDir()

	mustRun(t, "create", "Old")
	// The prompt answers pick Skip and confirm the warning.
	res := runCLI(t, "2\ny\n", "storage", "directory", target)
	if res.err == nil {
		t.Fatalf("expected the permission prompt to fail on closed input, got output %q", res.out)
	}

	mustRun(t, "--yes", "dir", "grant", target)
	res = runCLI(t, "skip\ny\n", "storage", "directory", target)
	if res.err != nil {
		t.Fatalf("storage skip: %v\nstderr:\n%s", res.err, res.errOut)
	}
	if summary := listSummary(t); len(summary) != 0 {
		t.Errorf("skip should start from the empty directory, got %+v", summary)
	}
}

func TestStorageSwitchCancelled(t *testing.T) {
	isolate(t)
	target := t.TempDir()
	mustRun(t, "create", "Stay")
	mustRun(t, "--yes", "dir", "grant", target)

	res := runCLI(t, "", "storage", "directory", target)
	if res.err != nil {
		t.Fatalf("cancelled switch: %v", res.err)
	}
	if !strings.Contains(res.out, "Storage unchanged") {
		t.Errorf("output = %q", res.out)
	}
	if summary := listSummary(t); len(summary) != 1 {
		t.Errorf("data changed by a cancelled switch: %+v", summary)
	}
}

func TestStorageMissingDirectory(t *testing.T) {
	isolate(t)
	res := runCLI(t, "", "storage", "directory", filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(res.err, storage.ErrNoDirectory) {
		t.Fatalf("got %v, want ErrNoDirectory", res.err)
	}
	if !strings.Contains(res.errOut, "Hint:") {
		t.Errorf("expected a hint on stderr, got:\n%s", res.errOut)
	}
}

func TestDirGrants(t *testing.T) {
	isolate(t)
	target := t.TempDir()

	out := mustRun(t, "dir")
	if !strings.Contains(out, "No directory access granted") {
		t.Errorf("dir list = %q", out)
	}

	res := runCLI(t, "n\n", "dir", "grant", target)
	if !errors.Is(res.err, storage.ErrPermissionDenied) {
		t.Errorf("declined grant: got %v, want ErrPermissionDenied", res.err)
	}

	mustRun(t, "--yes", "dir", "grant", "--mode", "read", target)
	out = mustRun(t, "dir", "list")
	if !strings.Contains(out, "read") || !strings.Contains(out, target) {
		t.Errorf("dir list = %q", out)
	}

	out = mustRun(t, "dir", "revoke", target)
	if !strings.Contains(out, "Revoked 1 grant(s)") {
		t.Errorf("dir revoke = %q", out)
	}
	if res := runCLI(t, "", "dir", "chmod"); res.err == nil {
		t.Error("expected an error for an unknown dir command")
	}
}

func TestDoctor(t *testing.T) {
	isolate(t)
	mustRun(t, "create", "Checked")
	mustRun(t, "add", "--start", "2024-01-01", "Checked", "Task")

	out := mustRun(t, "doctor", "-v")
	for _, want := range []string{"Roadmapper Doctor", "✅ Valid", "Checked (weekly, 1 tasks)", "All checks passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "doctor", "--retry")
	if !strings.Contains(out, "✅ Saved") {
		t.Errorf("doctor --retry output:\n%s", out)
	}
}

func TestDoctorReportsUnreachableDirectory(t *testing.T) {
	isolate(t)
	missing := filepath.Join(t.TempDir(), "gone")
	res := runCLI(t, "", "--storage", "directory", "--dir", missing, "doctor")
	if res.err == nil {
		t.Fatal("expected doctor to fail for a missing directory")
	}
	if !strings.Contains(res.out, "❌ Load") || !strings.Contains(res.out, "Hint:") {
		t.Errorf("doctor output:\n%s", res.out)
	}
}

func TestDoctorValidatesUndecodableDocument(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	stored := `{"roadmaps": [{"id": "r", "name": "Launch", "tasks": [{"id": "t", "name": "Plan", "completed": "true"}], "timeScale": "weekly"}]}`
	if err := os.WriteFile(filepath.Join(dir, appdir.DataFile), []byte(stored), 0o644); err != nil {
		t.Fatal(err)
	}

	res := runCLI(t, "", "--yes", "--storage", "directory", "--dir", dir, "doctor")
	if res.err == nil {
		t.Fatal("expected doctor to fail for an undecodable document")
	}
	for _, want := range []string{"❌ Load", "Validation failed"} {
		if !strings.Contains(res.out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, res.out)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, appdir.DataFile))
	if err != nil || string(data) != stored {
		t.Errorf("document was modified: %s (%v)", data, err)
	}
}

func TestTUIRequiresTTY(t *testing.T) {
	isolate(t)
	res := runCLI(t, "", "tui")
	if !errors.Is(res.err, ui.ErrNoTTY) {
		t.Errorf("got %v, want ErrNoTTY", res.err)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantPos []string
		wantCat string
		wantErr bool
	}{
		{name: "flags first", args: []string{"-category", "c", "a", "b"}, wantPos: []string{"a", "b"}, wantCat: "c"},
		{name: "flags between", args: []string{"a", "--category=c", "b"}, wantPos: []string{"a", "b"}, wantCat: "c"},
		{name: "flags last", args: []string{"a", "b", "-category", "c"}, wantPos: []string{"a", "b"}, wantCat: "c"},
		{name: "double dash", args: []string{"a", "--", "-category", "c"}, wantPos: []string{"a", "-category", "c"}},
		{name: "too few", args: []string{}, wantErr: true},
		{name: "unknown flag", args: []string{"a", "-nope"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(&bytes.Buffer{})
			category := fs.String("category", "", "")
			got, err := parseArgs(fs, tt.args, 1, -1, "<a>")
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.wantPos) {
				t.Errorf("positional = %v, want %v", got, tt.wantPos)
			}
			if *category != tt.wantCat {
				t.Errorf("category = %q, want %q", *category, tt.wantCat)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("roadmap", 10); got != "roadmap" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("roadmapper", 5); got != "road…" {
		t.Errorf("truncate long = %q", got)
	}
}

// clearOnRead runs fn on the first read, like a user fixing the problem
// before answering the prompt.
type clearOnRead struct {
	fn   func()
	done bool
	r    *strings.Reader
}

func (c *clearOnRead) Read(p []byte) (int, error) {
	if !c.done {
		c.done = true
		c.fn()
	}
	return c.r.Read(p)
}

func newDirectoryApp(t *testing.T, in io.Reader, h *testutil.FakeHandle) (*app, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	settings := config.Settings{
		Storage:  config.StorageConfig{Location: config.LocationDirectory, Directory: h.Path()},
		Pomodoro: config.PomodoroConfig{WorkMinutes: 25, BreakMinutes: 5},
	}
	coord, err := coordinator.New(coordinator.Options{
		Settings:      settings,
		Local:         storage.NewLocalStore(testutil.NewFakeKV()),
		OpenDirectory: func(string) (fsaccess.Handle, error) { return h, nil },
		SaveSettings:  func(config.Settings) error { return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	return &app{
		cfg:      &config.Config{},
		in:       in,
		out:      &out,
		errOut:   &errOut,
		logger:   logging.Discard(),
		prompter: prompt.New(in, &errOut, false),
		coord:    coord,
		now:      time.Now,
	}, &errOut
}

func TestMutateRetriesFailedSave(t *testing.T) {
	createPlan := func(d *roadmap.Document) error {
		_, err := d.CreateRoadmap("Plan", roadmap.TimeScaleWeekly)
		return err
	}

	t.Run("saved after the problem is fixed", func(t *testing.T) {
		h := testutil.NewFakeHandle("/plans")
		h.WriteErr = errors.New("disk full")
		in := &clearOnRead{fn: func() { h.WriteErr = nil }, r: strings.NewReader("y\n")}
		a, errOut := newDirectoryApp(t, in, h)

		if err := a.mutate(context.Background(), createPlan); err != nil {
			t.Fatalf("mutate: %v\n%s", err, errOut)
		}
		data, ok := h.File(appdir.DataFile)
		if !ok || !strings.Contains(string(data), `"Plan"`) {
			t.Errorf("change not written after retry: %s", data)
		}
		if !strings.Contains(errOut.String(), "Saved.") {
			t.Errorf("stderr:\n%s", errOut)
		}
	})

	t.Run("declined retry reports the lost change", func(t *testing.T) {
		h := testutil.NewFakeHandle("/plans")
		h.WriteErr = errors.New("disk full")
		a, _ := newDirectoryApp(t, strings.NewReader("n\n"), h)

		err := a.mutate(context.Background(), createPlan)
		if !errors.Is(err, storage.ErrWriteFailure) {
			t.Fatalf("mutate: got %v, want ErrWriteFailure", err)
		}
		if !strings.Contains(storage.Hint(err), "not saved") {
			t.Errorf("hint should say the change was not saved: %q", storage.Hint(err))
		}
		if _, ok := h.File(appdir.DataFile); ok {
			t.Error("nothing should have been written")
		}
	})

	t.Run("gives up after repeated failures", func(t *testing.T) {
		h := testutil.NewFakeHandle("/plans")
		h.WriteErr = errors.New("disk full")
		a, errOut := newDirectoryApp(t, strings.NewReader(strings.Repeat("y\n", saveAttempts+1)), h)

		if err := a.mutate(context.Background(), createPlan); !errors.Is(err, storage.ErrWriteFailure) {
			t.Fatalf("mutate: got %v, want ErrWriteFailure", err)
		}
		if got := strings.Count(errOut.String(), "Could not save"); got != saveAttempts {
			t.Errorf("save attempts reported: got %d, want %d", got, saveAttempts)
		}
	})
}
