// Package migrate normalizes any stored document shape into the current
// multi-roadmap schema.
//
// Shapes are recognized by an ordered list of predicates. The first match
// converts the input; when none matches the empty default document is
// returned. Normalizing an already current document is a no-op, so the
// result can be saved and normalized again without drift.
package migrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nibzard/roadmapper/internal/roadmap"
)

// LegacyRoadmapName names the roadmap synthesized from single-roadmap data.
const LegacyRoadmapName = "My Default Roadmap"

var (
	// ErrMalformed is reported for input that is not valid JSON.
	ErrMalformed = errors.New("malformed document")
	// ErrUnrecognized is reported for JSON matching no known shape.
	ErrUnrecognized = errors.New("unrecognized document shape")
	// ErrCorrupt is reported for a recognized shape whose content does not
	// decode, such as a task with a mistyped field. Unlike the other
	// errors it means the stored data is ours and worth keeping.
	ErrCorrupt = errors.New("corrupt document")
)

// Shape identifies which input form was detected.
type Shape string

const (
	ShapeEmpty        Shape = "empty"
	ShapeCurrent      Shape = "current"
	ShapeLegacy       Shape = "legacy"
	ShapeUnrecognized Shape = "unrecognized"
	ShapeUnparseable  Shape = "unparseable"
)

// Result is the outcome of a normalization. Document is never nil; Err is
// set when the input was degraded to the empty default.
type Result struct {
	Document *roadmap.Document
	Shape    Shape
	// Repaired is set when defaults were filled into a current document.
	Repaired bool
	// VerbatimSessions counts session log entries kept exactly as stored
	// because they carry fields or values the session type does not model.
	VerbatimSessions int
	Err              error
}

// Migrated reports whether the document differs in form from the input
// and should be written back.
func (r Result) Migrated() bool {
	return r.Shape == ShapeLegacy || r.Repaired
}

type shape struct {
	name    Shape
	match   func(map[string]any) bool
	convert func(map[string]any) (*roadmap.Document, bool, error)
}

var shapes = []shape{
	{name: ShapeCurrent, match: isCurrent, convert: convertCurrent},
	{name: ShapeLegacy, match: isLegacy, convert: convertLegacy},
}

// Normalize parses raw and normalizes it. Empty or whitespace-only input
// yields the empty default document.
func Normalize(raw []byte) Result {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{Document: roadmap.NewDocument(), Shape: ShapeEmpty}
	}
	value, err := decodeValue(raw)
	if err != nil {
		return Result{
			Document: roadmap.NewDocument(),
			Shape:    ShapeUnparseable,
			Err:      fmt.Errorf("%w: %v", ErrMalformed, err),
		}
	}
	return NormalizeValue(value)
}

// decodeValue keeps numbers as json.Number so values carried through
// unchanged keep their exact text.
func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the document")
	}
	return value, nil
}

// NormalizeValue normalizes an already decoded JSON value.
func NormalizeValue(value any) Result {
	if value == nil {
		return Result{Document: roadmap.NewDocument(), Shape: ShapeEmpty}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return unrecognized(fmt.Errorf("%w: top level is %s, not an object", ErrUnrecognized, kind(value)))
	}

	for _, s := range shapes {
		if !s.match(obj) {
			continue
		}
		doc, repaired, err := s.convert(obj)
		if err != nil {
			return unrecognized(fmt.Errorf("%w: %s document: %v", ErrCorrupt, s.name, err))
		}
		return Result{Document: doc, Shape: s.name, Repaired: repaired, VerbatimSessions: verbatim(doc)}
	}
	return unrecognized(fmt.Errorf("%w: neither roadmaps nor tasks with timeScale present", ErrUnrecognized))
}

func verbatim(doc *roadmap.Document) int {
	n := 0
	for _, s := range doc.PomodoroSessions {
		if s.Verbatim() {
			n++
		}
	}
	return n
}

func unrecognized(err error) Result {
	return Result{Document: roadmap.NewDocument(), Shape: ShapeUnrecognized, Err: err}
}

func isCurrent(obj map[string]any) bool {
	_, ok := obj["roadmaps"].([]any)
	return ok
}

// isLegacy matches {tasks: [...], timeScale: "..."} without a roadmaps key.
func isLegacy(obj map[string]any) bool {
	if _, ok := obj["tasks"].([]any); !ok {
		return false
	}
	scale, _ := obj["timeScale"].(string)
	if scale == "" {
		return false
	}
	return obj["roadmaps"] == nil
}

func convertCurrent(obj map[string]any) (*roadmap.Document, bool, error) {
	var roadmaps []roadmap.Roadmap
	if err := remarshal(obj["roadmaps"], &roadmaps); err != nil {
		return nil, false, fmt.Errorf("roadmaps: %w", err)
	}
	repaired := false
	for i := range roadmaps {
		if fillRoadmap(&roadmaps[i]) {
			repaired = true
		}
	}

	doc := roadmap.NewDocument()
	doc.Roadmaps = roadmaps
	carryPomodoro(doc, obj)
	return doc, repaired, nil
}

func convertLegacy(obj map[string]any) (*roadmap.Document, bool, error) {
	var tasks []roadmap.Task
	if err := remarshal(obj["tasks"], &tasks); err != nil {
		return nil, false, fmt.Errorf("tasks: %w", err)
	}
	r := roadmap.Roadmap{
		ID:        roadmap.NewID(),
		Name:      LegacyRoadmapName,
		Tasks:     tasks,
		TimeScale: roadmap.TimeScale(obj["timeScale"].(string)),
	}
	fillRoadmap(&r)

	doc := roadmap.NewDocument()
	doc.Roadmaps = []roadmap.Roadmap{r}
	carryPomodoro(doc, obj)
	return doc, true, nil
}

// fillRoadmap applies defaults for fields older writers may have omitted
// and reports whether anything changed.
func fillRoadmap(r *roadmap.Roadmap) bool {
	changed := false
	if r.ID == "" {
		r.ID = roadmap.NewID()
		changed = true
	}
	if r.Tasks == nil {
		r.Tasks = []roadmap.Task{}
		changed = true
	}
	if !r.TimeScale.Valid() {
		r.TimeScale = roadmap.DefaultTimeScale
		changed = true
	}
	return changed
}

// carryPomodoro copies the session log and active task. Session entries
// always decode (odd ones are kept verbatim); an active task that does not
// decode falls back to nil.
func carryPomodoro(doc *roadmap.Document, obj map[string]any) {
	if raw, ok := obj["pomodoroSessions"].([]any); ok {
		var sessions []roadmap.PomodoroSession
		if err := remarshal(raw, &sessions); err == nil {
			doc.PomodoroSessions = sessions
		}
	}
	if raw, ok := obj["activePomodoroTaskDetails"].(map[string]any); ok {
		var active roadmap.ActivePomodoroTask
		if err := remarshal(raw, &active); err == nil && active.RoadmapID != "" && active.TaskID != "" {
			doc.ActivePomodoroTask = &active
		}
	}
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func kind(v any) string {
	switch v.(type) {
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64, json.Number:
		return "a number"
	case bool:
		return "a boolean"
	}
	return fmt.Sprintf("%T", v)
}
