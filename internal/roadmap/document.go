package roadmap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// NewTask holds the user supplied fields of a task being added.
type NewTask struct {
	Name      string
	StartDate string
	EndDate   string
	Category  string
}

// Validate checks the name and the date range of a new task.
func (n NewTask) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: task name is required", ErrInvalid)
	}
	return validateRange(n.StartDate, n.EndDate)
}

func validateRange(startDate, endDate string) error {
	start, err := ParseDate(startDate)
	if err != nil {
		return err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalid, startDate, endDate)
	}
	return nil
}

// Roadmap returns the roadmap with the given id, or nil if not found.
func (d *Document) Roadmap(id string) *Roadmap {
	for i := range d.Roadmaps {
		if d.Roadmaps[i].ID == id {
			return &d.Roadmaps[i]
		}
	}
	return nil
}

// ResolveRoadmap finds a roadmap by id, then by case-insensitive name.
func (d *Document) ResolveRoadmap(ref string) (*Roadmap, error) {
	if r := d.Roadmap(ref); r != nil {
		return r, nil
	}
	want := strings.ToLower(strings.TrimSpace(ref))
	var match *Roadmap
	for i := range d.Roadmaps {
		if strings.ToLower(strings.TrimSpace(d.Roadmaps[i].Name)) != want {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: more than one roadmap is named %q", ErrAmbiguous, ref)
		}
		match = &d.Roadmaps[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrRoadmapNotFound, ref)
	}
	return match, nil
}

// Task returns the task with the given id, or nil if not found.
func (r *Roadmap) Task(id string) *Task {
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return &r.Tasks[i]
		}
	}
	return nil
}

// ResolveTask finds a task by id, then by case-insensitive name.
func (r *Roadmap) ResolveTask(ref string) (*Task, error) {
	if t := r.Task(ref); t != nil {
		return t, nil
	}
	want := strings.ToLower(strings.TrimSpace(ref))
	var match *Task
	for i := range r.Tasks {
		if strings.ToLower(strings.TrimSpace(r.Tasks[i].Name)) != want {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: more than one task in %q is named %q", ErrAmbiguous, r.Name, ref)
		}
		match = &r.Tasks[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q in roadmap %q", ErrTaskNotFound, ref, r.Name)
	}
	return match, nil
}

func (d *Document) mustRoadmap(id string) (*Roadmap, error) {
	r := d.Roadmap(id)
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrRoadmapNotFound, id)
	}
	return r, nil
}

// CreateRoadmap appends a new empty roadmap. An empty scale means weekly.
func (d *Document) CreateRoadmap(name string, scale TimeScale) (*Roadmap, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: roadmap name is required", ErrInvalid)
	}
	if scale == "" {
		scale = DefaultTimeScale
	}
	if !scale.Valid() {
		return nil, fmt.Errorf("%w: unknown time scale %q", ErrInvalid, scale)
	}
	d.Roadmaps = append(d.Roadmaps, Roadmap{
		ID:        NewID(),
		Name:      name,
		Tasks:     []Task{},
		TimeScale: scale,
	})
	return &d.Roadmaps[len(d.Roadmaps)-1], nil
}

// RenameRoadmap changes a roadmap's name.
func (d *Document) RenameRoadmap(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: roadmap name is required", ErrInvalid)
	}
	r, err := d.mustRoadmap(id)
	if err != nil {
		return err
	}
	r.Name = name
	return nil
}

// DeleteRoadmap removes a roadmap and clears the active pomodoro task if it
// belonged to that roadmap.
func (d *Document) DeleteRoadmap(id string) error {
	idx := slices.IndexFunc(d.Roadmaps, func(r Roadmap) bool { return r.ID == id })
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrRoadmapNotFound, id)
	}
	d.Roadmaps = slices.Delete(d.Roadmaps, idx, idx+1)
	if d.ActivePomodoroTask != nil && d.ActivePomodoroTask.RoadmapID == id {
		d.ActivePomodoroTask = nil
	}
	return nil
}

// SetTimeScale changes how a roadmap groups its tasks.
func (d *Document) SetTimeScale(id string, scale TimeScale) error {
	if !scale.Valid() {
		return fmt.Errorf("%w: unknown time scale %q", ErrInvalid, scale)
	}
	r, err := d.mustRoadmap(id)
	if err != nil {
		return err
	}
	r.TimeScale = scale
	return nil
}

// AddTask validates and appends a task, then re-sorts by start date.
func (d *Document) AddTask(roadmapID string, n NewTask) (Task, error) {
	if err := n.Validate(); err != nil {
		return Task{}, err
	}
	r, err := d.mustRoadmap(roadmapID)
	if err != nil {
		return Task{}, err
	}
	task := Task{
		ID:        NewID(),
		Name:      strings.TrimSpace(n.Name),
		StartDate: strings.TrimSpace(n.StartDate),
		EndDate:   strings.TrimSpace(n.EndDate),
		Notes:     "",
		Category:  strings.TrimSpace(n.Category),
	}
	r.Tasks = append(r.Tasks, task)
	sortTasks(r.Tasks)
	return task, nil
}

// ImportTasks appends already validated tasks and re-sorts by start date.
// Tasks with an empty or colliding id get a fresh one.
func (d *Document) ImportTasks(roadmapID string, tasks []Task) (int, error) {
	r, err := d.mustRoadmap(roadmapID)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(r.Tasks)+len(tasks))
	for _, t := range r.Tasks {
		seen[t.ID] = true
	}
	for _, t := range tasks {
		if t.ID == "" || seen[t.ID] {
			t.ID = NewID()
		}
		seen[t.ID] = true
		r.Tasks = append(r.Tasks, t)
	}
	sortTasks(r.Tasks)
	return len(tasks), nil
}

// ToggleComplete flips a task's completion flag and returns the new value.
func (d *Document) ToggleComplete(roadmapID, taskID string) (bool, error) {
	t, err := d.mustTask(roadmapID, taskID)
	if err != nil {
		return false, err
	}
	t.Completed = !t.Completed
	return t.Completed, nil
}

// SetNotes replaces a task's notes. The content is opaque.
func (d *Document) SetNotes(roadmapID, taskID, notes string) error {
	t, err := d.mustTask(roadmapID, taskID)
	if err != nil {
		return err
	}
	t.Notes = notes
	return nil
}

// DeleteTask removes a task and clears the active pomodoro task if it
// pointed at it.
func (d *Document) DeleteTask(roadmapID, taskID string) error {
	r, err := d.mustRoadmap(roadmapID)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(r.Tasks, func(t Task) bool { return t.ID == taskID })
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	r.Tasks = slices.Delete(r.Tasks, idx, idx+1)
	if a := d.ActivePomodoroTask; a != nil && a.RoadmapID == roadmapID && a.TaskID == taskID {
		d.ActivePomodoroTask = nil
	}
	return nil
}

// SetActivePomodoroTask selects a task for focus sessions.
func (d *Document) SetActivePomodoroTask(roadmapID, taskID string) error {
	t, err := d.mustTask(roadmapID, taskID)
	if err != nil {
		return err
	}
	d.ActivePomodoroTask = &ActivePomodoroTask{
		RoadmapID:    roadmapID,
		TaskID:       t.ID,
		TaskName:     t.Name,
		TaskCategory: t.Category,
	}
	return nil
}

// ClearActivePomodoroTask drops the focus selection.
func (d *Document) ClearActivePomodoroTask() {
	d.ActivePomodoroTask = nil
}

// AppendSession adds an entry to the session log. Entries are never edited.
func (d *Document) AppendSession(s PomodoroSession) PomodoroSession {
	if s.ID == "" {
		s.ID = NewID()
	}
	d.PomodoroSessions = append(d.PomodoroSessions, s)
	return s
}

func (d *Document) mustTask(roadmapID, taskID string) (*Task, error) {
	r, err := d.mustRoadmap(roadmapID)
	if err != nil {
		return nil, err
	}
	t := r.Task(taskID)
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	return t, nil
}

// sortTasks orders tasks by start date, keeping insertion order for ties.
func sortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return strings.Compare(a.StartDate, b.StartDate)
	})
}
