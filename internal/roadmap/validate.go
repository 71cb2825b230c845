package roadmap

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/roadmapper/internal/utils"
)

//go:embed document.schema.json
var documentSchema string

const documentSchemaURL = "https://roadmapper.local/document.schema.json"

var (
	embeddedOnce   sync.Once
	embeddedSchema *jsonschema.Schema
	embeddedErr    error
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // dot path to the error location
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationOptions controls validation behavior.
type ValidationOptions struct {
	// SchemaPath overrides the embedded JSON Schema with a file on disk.
	SchemaPath string
	// SkipSchema runs only the minimal structural and semantic checks.
	SkipSchema bool
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Valid      bool
	Errors     []error
	Warnings   []string
	UsedSchema bool // true if JSON Schema validation was performed
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   make([]error, 0),
		Warnings: make([]string, 0),
	}
}

func (r *ValidationResult) fail(path string, err error) {
	r.Valid = false
	r.Errors = append(r.Errors, &ValidationError{Path: path, Err: err})
}

// Err joins all validation errors, or returns nil when valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.Join(r.Errors...)
}

// Validate validates the document in memory.
func (d *Document) Validate(opts ValidationOptions) *ValidationResult {
	data, err := json.Marshal(d)
	if err != nil {
		result := newResult()
		result.fail("", fmt.Errorf("marshal document for validation: %w", err))
		return result
	}
	return ValidateRaw(data, opts)
}

// ValidateRaw validates serialized document bytes. Schema checks run first
// when available; the semantic checks (unique ids, date order, pomodoro
// reference) always run because the schema cannot express them.
func ValidateRaw(data []byte, opts ValidationOptions) *ValidationResult {
	result := newResult()

	var value any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		result.fail("", fmt.Errorf("parse document: %w", err))
		return result
	}

	if !opts.SkipSchema {
		schema, err := loadSchema(opts.SchemaPath)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("JSON Schema validation not available, using minimal checks: %v", err))
		} else {
			result.UsedSchema = true
			if err := schema.Validate(value); err != nil {
				appendSchemaErrors(result, err)
			}
		}
	}

	doc, err := Decode(data)
	if err != nil {
		result.fail("", err)
		return result
	}
	if !result.UsedSchema {
		doc.validateMinimal(result)
	}
	doc.validateSemantics(result)
	return result
}

func loadSchema(path string) (*jsonschema.Schema, error) {
	if path == "" {
		embeddedOnce.Do(func() {
			embeddedSchema, embeddedErr = compileSchema(documentSchemaURL, strings.NewReader(documentSchema))
		})
		return embeddedSchema, embeddedErr
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid schema path: %w", err)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	defer f.Close()
	return compileSchema(absPath, f)
}

func compileSchema(url string, r io.Reader) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(url, r); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}

func appendSchemaErrors(result *ValidationResult, err error) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		result.Valid = false
		result.Errors = append(result.Errors, err)
		return
	}
	collectSchemaErrors(result, ve)
}

func collectSchemaErrors(result *ValidationResult, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		result.fail(utils.JSONPointerToPath(err.InstanceLocation), errors.New(err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(result, cause)
	}
}

// validateMinimal performs the structural checks the schema would otherwise cover.
func (d *Document) validateMinimal(result *ValidationResult) {
	if d.Roadmaps == nil {
		result.fail("roadmaps", errors.New("missing required field"))
		return
	}
	for i, r := range d.Roadmaps {
		path := fmt.Sprintf("roadmaps[%d]", i)
		if r.ID == "" {
			result.fail(path+".id", errors.New("missing required field"))
		}
		if strings.TrimSpace(r.Name) == "" {
			result.fail(path+".name", errors.New("missing required field"))
		}
		if !r.TimeScale.Valid() {
			result.fail(path+".timeScale", fmt.Errorf("invalid time scale %q, must be one of: daily, weekly, monthly", r.TimeScale))
		}
		for j, t := range r.Tasks {
			taskPath := fmt.Sprintf("%s.tasks[%d]", path, j)
			if t.ID == "" {
				result.fail(taskPath+".id", errors.New("missing required field"))
			}
			if strings.TrimSpace(t.Name) == "" {
				result.fail(taskPath+".name", errors.New("missing required field"))
			}
		}
	}
}

// validateSemantics checks invariants that span fields or entries.
func (d *Document) validateSemantics(result *ValidationResult) {
	roadmapIDs := make(map[string]bool, len(d.Roadmaps))
	for i, r := range d.Roadmaps {
		path := fmt.Sprintf("roadmaps[%d]", i)
		if roadmapIDs[r.ID] {
			result.fail(path+".id", fmt.Errorf("duplicate roadmap id %q", r.ID))
		}
		roadmapIDs[r.ID] = true

		taskIDs := make(map[string]bool, len(r.Tasks))
		for j, t := range r.Tasks {
			taskPath := fmt.Sprintf("%s.tasks[%d]", path, j)
			if taskIDs[t.ID] {
				result.fail(taskPath+".id", fmt.Errorf("duplicate task id %q", t.ID))
			}
			taskIDs[t.ID] = true
			if err := validateRange(t.StartDate, t.EndDate); err != nil {
				result.fail(taskPath, err)
			}
		}
	}

	if a := d.ActivePomodoroTask; a != nil {
		r := d.Roadmap(a.RoadmapID)
		if r == nil || r.Task(a.TaskID) == nil {
			result.Warnings = append(result.Warnings, "activePomodoroTaskDetails references a missing roadmap or task")
		}
	}
}
