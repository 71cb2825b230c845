package roadmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for task dates.
const DateLayout = "2006-01-02"

// DefaultTimeScale is used for new roadmaps and for roadmaps missing a scale.
const DefaultTimeScale = TimeScaleWeekly

var (
	// ErrRoadmapNotFound is returned when a roadmap reference matches nothing.
	ErrRoadmapNotFound = errors.New("roadmap not found")
	// ErrTaskNotFound is returned when a task reference matches nothing.
	ErrTaskNotFound = errors.New("task not found")
	// ErrAmbiguous is returned when a name matches more than one entry.
	ErrAmbiguous = errors.New("ambiguous reference")
	// ErrInvalid is returned for rejected input (empty names, bad dates).
	ErrInvalid = errors.New("invalid input")
)

// TimeScale is the grouping granularity of a roadmap.
type TimeScale string

const (
	TimeScaleDaily   TimeScale = "daily"
	TimeScaleWeekly  TimeScale = "weekly"
	TimeScaleMonthly TimeScale = "monthly"
)

// Valid reports whether s is one of the known scales.
func (s TimeScale) Valid() bool {
	switch s {
	case TimeScaleDaily, TimeScaleWeekly, TimeScaleMonthly:
		return true
	}
	return false
}

// ParseTimeScale parses a scale name, accepting single-letter shorthands.
func ParseTimeScale(input string) (TimeScale, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "daily", "day", "d":
		return TimeScaleDaily, nil
	case "weekly", "week", "w":
		return TimeScaleWeekly, nil
	case "monthly", "month", "m":
		return TimeScaleMonthly, nil
	}
	return "", fmt.Errorf("%w: unknown time scale %q (want daily, weekly or monthly)", ErrInvalid, input)
}

// Task is a single dated item of work.
type Task struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	StartDate string `json:"startDate" yaml:"startDate"`
	EndDate   string `json:"endDate" yaml:"endDate"`
	Completed bool   `json:"completed" yaml:"completed"`
	Notes     string `json:"notes" yaml:"notes"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Roadmap is a named, independently scaled collection of tasks.
type Roadmap struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Tasks     []Task    `json:"tasks" yaml:"tasks"`
	TimeScale TimeScale `json:"timeScale" yaml:"timeScale"`
}

// SessionType distinguishes work from break pomodoro sessions.
type SessionType string

const (
	SessionWork  SessionType = "work"
	SessionBreak SessionType = "break"
)

// PomodoroSession is one entry of the append-only session log.
type PomodoroSession struct {
	ID                     string      `json:"id"`
	RoadmapID              string      `json:"roadmapId"`
	TaskID                 string      `json:"taskId"`
	TaskName               string      `json:"taskName"`
	TaskCategory           string      `json:"taskCategory,omitempty"`
	StartTime              string      `json:"startTime"`
	EndTime                string      `json:"endTime"`
	PlannedDurationSeconds int         `json:"plannedDurationSeconds"`
	ActualDurationSeconds  int         `json:"actualDurationSeconds"`
	SessionType            SessionType `json:"sessionType"`
	Completed              bool        `json:"completed"`

	// raw holds the stored entry when it does not round-trip through the
	// fields above. It is written back unchanged.
	raw json.RawMessage
}

// ActivePomodoroTask points at the task selected for focus sessions.
// Name and category are denormalized for display.
type ActivePomodoroTask struct {
	RoadmapID    string `json:"roadmapId"`
	TaskID       string `json:"taskId"`
	TaskName     string `json:"taskName"`
	TaskCategory string `json:"taskCategory,omitempty"`
}

// Document is the complete persisted state.
type Document struct {
	Roadmaps           []Roadmap           `json:"roadmaps"`
	PomodoroSessions   []PomodoroSession   `json:"pomodoroSessions"`
	ActivePomodoroTask *ActivePomodoroTask `json:"activePomodoroTaskDetails"`
}

// NewDocument returns the empty default document.
func NewDocument() *Document {
	return &Document{
		Roadmaps:         []Roadmap{},
		PomodoroSessions: []PomodoroSession{},
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Roadmaps:         make([]Roadmap, len(d.Roadmaps)),
		PomodoroSessions: make([]PomodoroSession, len(d.PomodoroSessions)),
	}
	for i, r := range d.Roadmaps {
		r.Tasks = append(make([]Task, 0, len(r.Tasks)), r.Tasks...)
		out.Roadmaps[i] = r
	}
	copy(out.PomodoroSessions, d.PomodoroSessions)
	if d.ActivePomodoroTask != nil {
		active := *d.ActivePomodoroTask
		out.ActivePomodoroTask = &active
	}
	return out
}

// TaskCount returns the number of tasks across all roadmaps.
func (d *Document) TaskCount() int {
	n := 0
	for _, r := range d.Roadmaps {
		n += len(r.Tasks)
	}
	return n
}

// IsEmpty reports whether the document holds no roadmaps and no sessions.
func (d *Document) IsEmpty() bool {
	return len(d.Roadmaps) == 0 && len(d.PomodoroSessions) == 0 && d.ActivePomodoroTask == nil
}

// Encode marshals the document with 2-space indentation and a trailing newline.
func Encode(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a current-schema document. Legacy shapes are handled by
// the migrate package, not here.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &d, nil
}

// ParseDate parses a YYYY-MM-DD task date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalid, s)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD using its own calendar fields.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
