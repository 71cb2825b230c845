package coordinator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/nibzard/roadmapper/internal/appdir"
	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/migrate"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/storage"
	"github.com/nibzard/roadmapper/internal/testutil"
)

var errBoom = errors.New("boom")

type testEnv struct {
	kv      *testutil.FakeKV
	local   *storage.LocalStore
	dirs    map[string]fsaccess.Handle
	saved   []config.Settings
	saveErr error
	coord   *Coordinator
}

func localSettings() config.Settings {
	return config.Settings{
		Storage:  config.StorageConfig{Location: config.LocationLocal},
		Pomodoro: config.PomodoroConfig{WorkMinutes: 25, BreakMinutes: 5},
	}
}

func dirSettings(path string) config.Settings {
	s := localSettings()
	s.Storage = config.StorageConfig{Location: config.LocationDirectory, Directory: path}
	return s
}

func newEnv(t *testing.T, settings config.Settings) *testEnv {
	t.Helper()
	e := &testEnv{
		kv:   testutil.NewFakeKV(),
		dirs: make(map[string]fsaccess.Handle),
	}
	e.local = storage.NewLocalStore(e.kv)
	c, err := New(Options{
		Settings: settings,
		Local:    e.local,
		OpenDirectory: func(path string) (fsaccess.Handle, error) {
			h, ok := e.dirs[path]
			if !ok {
				return nil, fmt.Errorf("%w: %s", fsaccess.ErrStaleHandle, path)
			}
			return h, nil
		},
		SaveSettings: func(s config.Settings) error {
			if e.saveErr != nil {
				return e.saveErr
			}
			e.saved = append(e.saved, s)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.coord = c
	return e
}

func (e *testEnv) addDir(path string) *testutil.FakeHandle {
	h := testutil.NewFakeHandle(path)
	e.dirs[path] = h
	return h
}

func (e *testEnv) seedLocal(t *testing.T, doc *roadmap.Document) {
	t.Helper()
	if err := e.local.Save(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) localDoc(t *testing.T) *roadmap.Document {
	t.Helper()
	raw, ok := e.kv.Value(storage.LocalKey)
	if !ok {
		t.Fatal("local storage has no document")
	}
	return decode(t, []byte(raw))
}

func sampleDocument(name string) *roadmap.Document {
	doc := roadmap.NewDocument()
	doc.Roadmaps = []roadmap.Roadmap{{
		ID:        "r-" + name,
		Name:      name,
		TimeScale: roadmap.TimeScaleWeekly,
		Tasks: []roadmap.Task{
			{ID: "t1", Name: "Plan", StartDate: "2024-01-01", EndDate: "2024-01-05"},
			{ID: "t2", Name: "Build", StartDate: "2024-01-08", EndDate: "2024-02-02", Completed: true, Notes: "v1"},
		},
	}}
	doc.ActivePomodoroTask = &roadmap.ActivePomodoroTask{RoadmapID: "r-" + name, TaskID: "t1", TaskName: "Plan"}
	return doc
}

func encode(t *testing.T, doc *roadmap.Document) []byte {
	t.Helper()
	data, err := roadmap.Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func decode(t *testing.T, data []byte) *roadmap.Document {
	t.Helper()
	doc, err := roadmap.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return doc
}

func fileDoc(t *testing.T, h *testutil.FakeHandle) *roadmap.Document {
	t.Helper()
	data, ok := h.File(appdir.DataFile)
	if !ok {
		t.Fatalf("%s has no %s", h.Path(), appdir.DataFile)
	}
	return decode(t, data)
}

func addTask(name string) func(*roadmap.Document) error {
	return func(d *roadmap.Document) error {
		_, err := d.AddTask(d.Roadmaps[0].ID, roadmap.NewTask{Name: name, StartDate: "2024-03-01", EndDate: "2024-03-02"})
		return err
	}
}

func TestNewRequiresBackends(t *testing.T) {
	if _, err := New(Options{SaveSettings: func(config.Settings) error { return nil }}); err == nil {
		t.Error("expected error without a local backend")
	}
	if _, err := New(Options{Local: storage.NewLocalStore(testutil.NewFakeKV())}); err == nil {
		t.Error("expected error without SaveSettings")
	}
}

func TestLoadLocal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	want := sampleDocument("Launch")
	e.seedLocal(t, want)

	if err := e.coord.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := e.coord.Document(); !reflect.DeepEqual(got, want) {
		t.Errorf("Document:\n got %+v\nwant %+v", got, want)
	}
	st := e.coord.Status()
	if st.Shape != migrate.ShapeCurrent || st.Tasks != 2 || st.Dirty || st.LoadErr != nil {
		t.Errorf("Status: %+v", st)
	}
}

func TestLoadEmptyLocal(t *testing.T) {
	e := newEnv(t, localSettings())
	if err := e.coord.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := e.coord.Document(); !got.IsEmpty() {
		t.Errorf("expected empty document, got %+v", got)
	}
	if _, ok := e.kv.Value(storage.LocalKey); ok {
		t.Error("loading nothing should not write anything")
	}
}

func TestLoadLegacyWritesBack(t *testing.T) {
	e := newEnv(t, localSettings())
	legacy := `{"tasks":[{"id":"t1","name":"Plan","startDate":"2024-01-01","endDate":"2024-01-02","completed":false,"notes":""}],"timeScale":"monthly"}`
	if err := e.kv.Set(context.Background(), storage.LocalKey, legacy); err != nil {
		t.Fatal(err)
	}

	if err := e.coord.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	doc := e.coord.Document()
	if len(doc.Roadmaps) != 1 || doc.Roadmaps[0].Name != migrate.LegacyRoadmapName {
		t.Fatalf("unexpected roadmaps: %+v", doc.Roadmaps)
	}
	if e.coord.Status().Shape != migrate.ShapeLegacy {
		t.Errorf("Shape: got %q, want legacy", e.coord.Status().Shape)
	}
	if stored := e.localDoc(t); !reflect.DeepEqual(stored, doc) {
		t.Errorf("migrated document not written back:\n got %+v\nwant %+v", stored, doc)
	}
}

func TestLoadUnreadableDegradesToEmpty(t *testing.T) {
	e := newEnv(t, localSettings())
	if err := e.kv.Set(context.Background(), storage.LocalKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	if err := e.coord.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !e.coord.Document().IsEmpty() {
		t.Error("expected empty document")
	}
	if e.coord.Status().Shape != migrate.ShapeUnparseable {
		t.Errorf("Shape: got %q, want unparseable", e.coord.Status().Shape)
	}
}

func TestLoadCorruptDocumentIsKept(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	const stored = `{"roadmaps": [{"id": "r", "name": "Launch", "tasks": [{"id": "t", "name": "Plan", "completed": "true"}], "timeScale": "weekly"}]}`
	if err := e.kv.Set(ctx, storage.LocalKey, stored); err != nil {
		t.Fatal(err)
	}

	err := e.coord.Load(ctx)
	if !errors.Is(err, storage.ErrParse) || !errors.Is(err, migrate.ErrCorrupt) {
		t.Fatalf("Load: got %v, want ErrParse wrapping ErrCorrupt", err)
	}
	if err := e.coord.Mutate(ctx, func(d *roadmap.Document) error {
		_, err := d.CreateRoadmap("New", roadmap.TimeScaleDaily)
		return err
	}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Mutate: got %v, want ErrNotLoaded", err)
	}
	if got, _ := e.kv.Value(storage.LocalKey); got != stored {
		t.Errorf("stored document was overwritten: %s", got)
	}
	if storage.Hint(err) == "" {
		t.Error("expected a hint for an unreadable document")
	}

	fixed := strings.Replace(stored, `"true"`, `true`, 1)
	if err := e.kv.Set(ctx, storage.LocalKey, fixed); err != nil {
		t.Fatal(err)
	}
	if err := e.coord.Retry(ctx); err != nil {
		t.Fatalf("Retry after repair: %v", err)
	}
	if doc := e.coord.Document(); len(doc.Roadmaps) != 1 || !doc.Roadmaps[0].Tasks[0].Completed {
		t.Errorf("repaired document not loaded: %+v", doc)
	}
}

func TestLoadDirectoryFailures(t *testing.T) {
	tests := []struct {
		name     string
		settings config.Settings
		setup    func(e *testEnv)
		want     error
	}{
		{
			name:     "no directory chosen",
			settings: dirSettings(""),
			want:     storage.ErrNoDirectory,
		},
		{
			name:     "directory gone",
			settings: dirSettings("/gone"),
			want:     storage.ErrNoDirectory,
		},
		{
			name:     "permission denied",
			settings: dirSettings("/plans"),
			setup: func(e *testEnv) {
				h := e.addDir("/plans")
				h.SetFile(appdir.DataFile, []byte(`{"roadmaps":[]}`))
				h.Permission[fsaccess.ModeRead] = fsaccess.StateDenied
			},
			want: storage.ErrPermissionDenied,
		},
		{
			name:     "prompt dismissed",
			settings: dirSettings("/plans"),
			setup: func(e *testEnv) {
				h := e.addDir("/plans")
				h.Permission[fsaccess.ModeRead] = fsaccess.StateCancelled
			},
			want: storage.ErrPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t, tt.settings)
			// Local data must never stand in for the directory.
			e.seedLocal(t, sampleDocument("Local"))
			if tt.setup != nil {
				tt.setup(e)
			}

			err := e.coord.Load(ctx)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load: got %v, want %v", err, tt.want)
			}
			if storage.Hint(err) == "" {
				t.Errorf("no hint for %v", err)
			}
			if !e.coord.Document().IsEmpty() {
				t.Error("expected empty live document")
			}
			if e.coord.Status().LoadErr == nil {
				t.Error("Status.LoadErr not set")
			}
			if err := e.coord.Mutate(ctx, addTask("x")); !errors.Is(err, ErrNotLoaded) {
				t.Errorf("Mutate after failed load: got %v, want ErrNotLoaded", err)
			}
		})
	}
}

func TestRetryAfterPermissionGranted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dirSettings("/plans"))
	h := e.addDir("/plans")
	want := sampleDocument("Dir")
	h.SetFile(appdir.DataFile, encode(t, want))
	h.Permission[fsaccess.ModeRead] = fsaccess.StateDenied

	if err := e.coord.Load(ctx); !errors.Is(err, storage.ErrPermissionDenied) {
		t.Fatalf("Load: got %v, want ErrPermissionDenied", err)
	}

	delete(h.Permission, fsaccess.ModeRead)
	if err := e.coord.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got := e.coord.Document(); !reflect.DeepEqual(got, want) {
		t.Errorf("Document after retry:\n got %+v\nwant %+v", got, want)
	}
}

func TestMutate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	e.seedLocal(t, sampleDocument("Launch"))
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.coord.Mutate(ctx, addTask("Ship")); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if got := e.coord.Document().TaskCount(); got != 3 {
		t.Errorf("TaskCount: got %d, want 3", got)
	}
	if got := e.localDoc(t).TaskCount(); got != 3 {
		t.Errorf("stored TaskCount: got %d, want 3", got)
	}

	before, _ := e.kv.Value(storage.LocalKey)
	err := e.coord.Mutate(ctx, func(d *roadmap.Document) error {
		d.Roadmaps[0].Name = "half applied"
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Mutate: got %v, want errBoom", err)
	}
	if got := e.coord.Document().Roadmaps[0].Name; got != "Launch" {
		t.Errorf("failed mutation leaked into live document: %q", got)
	}
	if after, _ := e.kv.Value(storage.LocalKey); after != before {
		t.Error("failed mutation was saved")
	}
}

func TestMutateSaveFailureKeepsChange(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	e.seedLocal(t, sampleDocument("Launch"))
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	e.kv.SetErr = errBoom
	err := e.coord.Mutate(ctx, addTask("Ship"))
	if !errors.Is(err, storage.ErrWriteFailure) {
		t.Fatalf("Mutate: got %v, want ErrWriteFailure", err)
	}
	if got := e.coord.Document().TaskCount(); got != 3 {
		t.Errorf("change not kept in memory: TaskCount %d", got)
	}
	if st := e.coord.Status(); !st.Dirty || st.SaveErr == nil {
		t.Errorf("Status: %+v", st)
	}

	e.kv.SetErr = nil
	if err := e.coord.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got := e.localDoc(t).TaskCount(); got != 3 {
		t.Errorf("stored TaskCount after retry: got %d, want 3", got)
	}
	if e.coord.Status().Dirty {
		t.Error("still dirty after retry")
	}
}

func TestMutateDirectoryPermissionError(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dirSettings("/plans"))
	h := e.addDir("/plans")
	h.SetFile(appdir.DataFile, encode(t, sampleDocument("Dir")))
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	h.Permission[fsaccess.ModeReadWrite] = fsaccess.StateDenied
	err := e.coord.Mutate(ctx, addTask("Ship"))
	var perr *storage.PermissionError
	if !errors.As(err, &perr) || !errors.Is(err, storage.ErrWriteFailure) {
		t.Fatalf("Mutate: got %v, want a PermissionError wrapped as write failure", err)
	}
	if e.coord.Document().TaskCount() != 3 {
		t.Error("change not kept in memory")
	}
}

func TestSwitchMoveLocalToDirectory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	want := sampleDocument("Launch")
	e.seedLocal(t, want)
	h := e.addDir("/plans")
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	target := dirSettings("/plans").Storage
	if err := e.coord.Switch(ctx, target, ChoiceMove, nil); err != nil {
		t.Fatalf("Switch: %v", err)
	}

	if got := fileDoc(t, h); !reflect.DeepEqual(got, want) {
		t.Errorf("directory file:\n got %+v\nwant %+v", got, want)
	}
	if got := e.localDoc(t); !reflect.DeepEqual(got, roadmap.NewDocument()) {
		t.Errorf("local storage not cleared: %+v", got)
	}
	if got := e.coord.Document(); !reflect.DeepEqual(got, want) {
		t.Errorf("live document:\n got %+v\nwant %+v", got, want)
	}
	if len(e.saved) != 1 || !e.saved[0].Storage.Same(target) {
		t.Errorf("saved settings: %+v", e.saved)
	}
	if !e.coord.Settings().Storage.Same(target) {
		t.Errorf("Settings: %+v", e.coord.Settings())
	}

	// Mutations now go to the directory.
	if err := e.coord.Mutate(ctx, addTask("Ship")); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if got := fileDoc(t, h).TaskCount(); got != 3 {
		t.Errorf("directory TaskCount: got %d, want 3", got)
	}
}

func TestSwitchMoveDirectoryToLocal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dirSettings("/plans"))
	h := e.addDir("/plans")
	want := sampleDocument("Dir")
	raw := encode(t, want)
	h.SetFile(appdir.DataFile, raw)
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.coord.Switch(ctx, localSettings().Storage, ChoiceMove, nil); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := e.localDoc(t); !reflect.DeepEqual(got, want) {
		t.Errorf("local storage:\n got %+v\nwant %+v", got, want)
	}
	if got, _ := h.File(appdir.DataFile); string(got) != string(raw) {
		t.Error("directory file changed by move")
	}
}

func TestSwitchSkipLocalToDirectory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	e.seedLocal(t, sampleDocument("Local"))
	h := e.addDir("/plans")
	dirDoc := sampleDocument("Dir")
	h.SetFile(appdir.DataFile, encode(t, dirDoc))
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.coord.Switch(ctx, dirSettings("/plans").Storage, ChoiceSkip, nil); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := e.coord.Document(); !reflect.DeepEqual(got, dirDoc) {
		t.Errorf("live document:\n got %+v\nwant %+v", got, dirDoc)
	}
	if got := e.localDoc(t); !got.IsEmpty() {
		t.Errorf("local storage not cleared on skip: %+v", got)
	}
	if h.Writes != 0 {
		t.Errorf("skip wrote to the directory %d times", h.Writes)
	}
}

func TestSwitchSkipDirectoryToLocal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dirSettings("/plans"))
	h := e.addDir("/plans")
	raw := encode(t, sampleDocument("Dir"))
	h.SetFile(appdir.DataFile, raw)
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.coord.Switch(ctx, localSettings().Storage, ChoiceSkip, nil); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if !e.coord.Document().IsEmpty() {
		t.Error("expected the empty local document")
	}
	if got, ok := h.File(appdir.DataFile); !ok || string(got) != string(raw) {
		t.Error("directory file must be left untouched")
	}
}

func TestSwitchDirectoryToDirectory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, dirSettings("/old"))
	oldDir := e.addDir("/old")
	newDir := e.addDir("/new")
	want := sampleDocument("Dir")
	oldDir.SetFile(appdir.DataFile, encode(t, want))
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.coord.Switch(ctx, dirSettings("/new").Storage, ChoiceMove, nil); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := fileDoc(t, newDir); !reflect.DeepEqual(got, want) {
		t.Errorf("new directory:\n got %+v\nwant %+v", got, want)
	}
	if _, ok := oldDir.File(appdir.DataFile); !ok {
		t.Error("old directory file removed")
	}
}

func TestSwitchUsesGivenHandle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}
	h := testutil.NewFakeHandle("/picked")

	target := config.StorageConfig{Location: config.LocationDirectory}
	if err := e.coord.Switch(ctx, target, ChoiceMove, h); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := e.coord.Settings().Storage.Directory; got != "/picked" {
		t.Errorf("Directory: got %q, want /picked", got)
	}
	if _, ok := h.File(appdir.DataFile); !ok {
		t.Error("document not written to the picked directory")
	}
}

func TestSwitchMoveCarriesUnsavedChanges(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	e.seedLocal(t, sampleDocument("Launch"))
	h := e.addDir("/plans")
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	e.kv.SetErr = errBoom
	if err := e.coord.Mutate(ctx, addTask("Ship")); err == nil {
		t.Fatal("expected save failure")
	}
	e.kv.SetErr = nil

	if err := e.coord.Switch(ctx, dirSettings("/plans").Storage, ChoiceMove, nil); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := fileDoc(t, h).TaskCount(); got != 3 {
		t.Errorf("moved TaskCount: got %d, want 3", got)
	}
}

func TestSwitchFailureIsAtomic(t *testing.T) {
	emptyDoc := string(func() []byte {
		data, _ := roadmap.Encode(roadmap.NewDocument())
		return data
	}())

	tests := []struct {
		name   string
		choice Choice
		setup  func(e *testEnv, h *testutil.FakeHandle)
		stage  string
	}{
		{
			name:   "target write fails",
			choice: ChoiceMove,
			setup:  func(_ *testEnv, h *testutil.FakeHandle) { h.WriteErr = errBoom },
			stage:  "writing to the new location",
		},
		{
			name:   "target permission denied",
			choice: ChoiceMove,
			setup: func(_ *testEnv, h *testutil.FakeHandle) {
				h.Permission[fsaccess.ModeReadWrite] = fsaccess.StateDenied
			},
			stage: "writing to the new location",
		},
		{
			name:   "clearing local fails",
			choice: ChoiceMove,
			setup: func(e *testEnv, _ *testutil.FakeHandle) {
				e.kv.SetHook = func(_, value string) error {
					if value == emptyDoc {
						return errBoom
					}
					return nil
				}
			},
			stage: "clearing local storage",
		},
		{
			name:   "saving settings fails",
			choice: ChoiceMove,
			setup:  func(e *testEnv, _ *testutil.FakeHandle) { e.saveErr = errBoom },
			stage:  "saving settings",
		},
		{
			name:   "skip with unreadable target",
			choice: ChoiceSkip,
			setup:  func(_ *testEnv, h *testutil.FakeHandle) { h.ReadErr = errBoom },
			stage:  "reading the new location",
		},
		{
			name:   "skip with settings failure",
			choice: ChoiceSkip,
			setup:  func(e *testEnv, _ *testutil.FakeHandle) { e.saveErr = errBoom },
			stage:  "saving settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t, localSettings())
			want := sampleDocument("Launch")
			e.seedLocal(t, want)
			h := e.addDir("/plans")
			if err := e.coord.Load(ctx); err != nil {
				t.Fatal(err)
			}
			localBefore, _ := e.kv.Value(storage.LocalKey)
			tt.setup(e, h)

			err := e.coord.Switch(ctx, dirSettings("/plans").Storage, tt.choice, nil)
			var serr *SwitchError
			if !errors.As(err, &serr) {
				t.Fatalf("Switch: got %v, want *SwitchError", err)
			}
			if serr.Stage != tt.stage {
				t.Errorf("Stage: got %q, want %q", serr.Stage, tt.stage)
			}
			if serr.Rollback != nil {
				t.Errorf("rollback failed: %v", serr.Rollback)
			}

			if got := e.coord.Settings(); got != localSettings() {
				t.Errorf("settings changed: %+v", got)
			}
			if len(e.saved) != 0 {
				t.Errorf("settings saved: %+v", e.saved)
			}
			if got := e.coord.Document(); !reflect.DeepEqual(got, want) {
				t.Errorf("live document changed:\n got %+v\nwant %+v", got, want)
			}
			if got, _ := e.kv.Value(storage.LocalKey); got != localBefore {
				t.Error("local storage changed")
			}
			if _, ok := h.File(appdir.DataFile); ok {
				t.Error("directory file left behind")
			}

			// The coordinator stays usable on the old backend.
			e.kv.SetHook = nil
			if err := e.coord.Mutate(ctx, addTask("Ship")); err != nil {
				t.Fatalf("Mutate after failed switch: %v", err)
			}
			if got := e.localDoc(t).TaskCount(); got != 3 {
				t.Errorf("local TaskCount: got %d, want 3", got)
			}
		})
	}
}

func TestSwitchMoveRefusesUnreadableSource(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	if err := e.kv.Set(ctx, storage.LocalKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	h := e.addDir("/plans")
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	err := e.coord.Switch(ctx, dirSettings("/plans").Storage, ChoiceMove, nil)
	if !errors.Is(err, storage.ErrParse) {
		t.Fatalf("Switch: got %v, want ErrParse", err)
	}
	if got, _ := e.kv.Value(storage.LocalKey); got != "{not json" {
		t.Error("unreadable local data was cleared")
	}
	if h.Writes != 0 {
		t.Error("directory written")
	}
}

func TestSwitchSameLocation(t *testing.T) {
	e := newEnv(t, dirSettings("/plans"))
	e.addDir("/plans")
	if err := e.coord.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := e.coord.Switch(context.Background(), dirSettings("/plans/").Storage, ChoiceMove, nil)
	if !errors.Is(err, ErrSameLocation) {
		t.Fatalf("Switch: got %v, want ErrSameLocation", err)
	}
}

func TestSwitchRejectsUnknownChoice(t *testing.T) {
	e := newEnv(t, localSettings())
	if err := e.coord.Switch(context.Background(), dirSettings("/plans").Storage, Choice(0), nil); err == nil {
		t.Fatal("expected error for zero choice")
	}
}

// blockingHandle parks RequestPermission until released.
type blockingHandle struct {
	*testutil.FakeHandle
	entered chan struct{}
	release chan struct{}
}

func (h *blockingHandle) RequestPermission(ctx context.Context, mode fsaccess.Mode) (fsaccess.PermissionState, error) {
	select {
	case h.entered <- struct{}{}:
	default:
	}
	<-h.release
	return h.FakeHandle.RequestPermission(ctx, mode)
}

func TestMutateDuringSwitch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, localSettings())
	e.seedLocal(t, sampleDocument("Launch"))
	if err := e.coord.Load(ctx); err != nil {
		t.Fatal(err)
	}

	h := &blockingHandle{
		FakeHandle: testutil.NewFakeHandle("/plans"),
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	done := make(chan error, 1)
	go func() {
		done <- e.coord.Switch(ctx, dirSettings("/plans").Storage, ChoiceMove, h)
	}()

	<-h.entered
	if err := e.coord.Mutate(ctx, addTask("Ship")); !errors.Is(err, ErrSwitchInProgress) {
		t.Errorf("Mutate: got %v, want ErrSwitchInProgress", err)
	}
	if err := e.coord.Switch(ctx, dirSettings("/other").Storage, ChoiceSkip, nil); !errors.Is(err, ErrSwitchInProgress) {
		t.Errorf("second Switch: got %v, want ErrSwitchInProgress", err)
	}
	if err := e.coord.UpdatePomodoro(config.PomodoroConfig{WorkMinutes: 50, BreakMinutes: 10}); !errors.Is(err, ErrSwitchInProgress) {
		t.Errorf("UpdatePomodoro: got %v, want ErrSwitchInProgress", err)
	}
	close(h.release)

	if err := <-done; err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if err := e.coord.Mutate(ctx, addTask("Ship")); err != nil {
		t.Errorf("Mutate after switch: %v", err)
	}
}

func TestPlanSwitch(t *testing.T) {
	e := newEnv(t, localSettings())
	e.seedLocal(t, sampleDocument("Launch"))
	if err := e.coord.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	plan := e.coord.PlanSwitch(localSettings().Storage)
	if plan.Needed || plan.Prompt != "" {
		t.Errorf("same location plan: %+v", plan)
	}

	plan = e.coord.PlanSwitch(dirSettings("/home/me/plans").Storage)
	if !plan.Needed || plan.TaskCount != 2 {
		t.Fatalf("plan: %+v", plan)
	}
	for _, want := range []string{"2 task(s)", `"plans"`, "local storage will be cleared"} {
		if !strings.Contains(plan.Prompt, want) {
			t.Errorf("prompt %q missing %q", plan.Prompt, want)
		}
	}
}

func TestSwitchPromptWording(t *testing.T) {
	local := config.StorageConfig{Location: config.LocationLocal}
	a := config.StorageConfig{Location: config.LocationDirectory, Directory: "/x/alpha"}
	b := config.StorageConfig{Location: config.LocationDirectory, Directory: "/x/beta"}

	tests := []struct {
		name string
		plan SwitchPlan
		want string
	}{
		{"to local", SwitchPlan{From: a, To: local}, `from the directory "alpha" to local storage`},
		{"between directories", SwitchPlan{From: a, To: b}, `from "alpha" to "beta"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := switchPrompt(tt.plan); !strings.Contains(got, tt.want) {
				t.Errorf("switchPrompt = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input   string
		want    Choice
		wantErr bool
	}{
		{"move", ChoiceMove, false},
		{" Skip ", ChoiceSkip, false},
		{"m", ChoiceMove, false},
		{"copy", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChoice(tt.input)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseChoice(%q) = %v, %v", tt.input, got, err)
			}
		})
	}
}

func TestUpdatePomodoro(t *testing.T) {
	e := newEnv(t, localSettings())

	if err := e.coord.UpdatePomodoro(config.PomodoroConfig{WorkMinutes: 0, BreakMinutes: 5}); err == nil {
		t.Error("expected validation error")
	}
	if len(e.saved) != 0 {
		t.Error("invalid settings saved")
	}

	want := config.PomodoroConfig{WorkMinutes: 50, BreakMinutes: 10}
	if err := e.coord.UpdatePomodoro(want); err != nil {
		t.Fatalf("UpdatePomodoro: %v", err)
	}
	if got := e.coord.Settings().Pomodoro; got != want {
		t.Errorf("Pomodoro: got %+v, want %+v", got, want)
	}

	e.saveErr = errBoom
	if err := e.coord.UpdatePomodoro(config.PomodoroConfig{WorkMinutes: 30, BreakMinutes: 5}); err == nil {
		t.Error("expected save error")
	}
	if got := e.coord.Settings().Pomodoro; got != want {
		t.Errorf("Pomodoro changed despite failed save: %+v", got)
	}
}

func TestSwitchErrorMessage(t *testing.T) {
	err := &SwitchError{
		From:  config.StorageConfig{Location: config.LocationLocal},
		To:    config.StorageConfig{Location: config.LocationDirectory, Directory: "/x/plans"},
		Stage: "saving settings",
		Err:   errBoom,
	}
	if !strings.Contains(err.Error(), "nothing was changed") || !errors.Is(err, errBoom) {
		t.Errorf("Error() = %q", err.Error())
	}
	err.Rollback = errors.New("disk gone")
	if !strings.Contains(err.Error(), "rollback incomplete") {
		t.Errorf("Error() = %q", err.Error())
	}
}
