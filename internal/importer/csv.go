// Package importer reads tasks from CSV and JSON files and writes roadmaps
// out as JSON or YAML.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nibzard/roadmapper/internal/roadmap"
)

var (
	// ErrNoRows is returned for CSV input without any data row.
	ErrNoRows = errors.New("CSV file must contain a header row and at least one data row")
	// ErrMissingColumns is returned when a required CSV column is absent.
	ErrMissingColumns = errors.New("CSV header must contain 'name', 'startDate', and 'endDate' columns")
	// ErrInvalidTasks is returned for JSON task lists with the wrong shape.
	ErrInvalidTasks = errors.New("imported JSON tasks have incorrect structure or missing required fields")
)

// Warning describes a skipped input row.
type Warning struct {
	// Row is the 1-based line number in the input, header included.
	Row    int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("skipping row %d: %s", w.Row, w.Reason)
}

// CSVResult holds the tasks parsed from a CSV file and the rows skipped.
type CSVResult struct {
	Tasks    []roadmap.Task
	Warnings []Warning
}

type csvColumns struct {
	name, start, end          int
	notes, category, complete int
}

func (c csvColumns) required() int {
	return max(c.name, c.start, c.end) + 1
}

// ParseCSV reads tasks from CSV with a case-insensitive header containing
// name, startDate and endDate. The notes, category and completed columns
// are optional. Invalid rows are skipped and reported as warnings; every
// task gets a fresh id.
func ParseCSV(r io.Reader) (CSVResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return CSVResult{}, ErrNoRows
	}
	if err != nil {
		return CSVResult{}, fmt.Errorf("read CSV header: %w", err)
	}
	cols, err := locateColumns(header)
	if err != nil {
		return CSVResult{}, err
	}

	var result CSVResult
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.Warnings = append(result.Warnings, Warning{Row: perr.StartLine, Reason: perr.Err.Error()})
				continue
			}
			return CSVResult{}, fmt.Errorf("read CSV: %w", err)
		}
		rows++
		line, _ := reader.FieldPos(0)
		task, reason := csvTask(record, cols)
		if reason != "" {
			result.Warnings = append(result.Warnings, Warning{Row: line, Reason: reason})
			continue
		}
		result.Tasks = append(result.Tasks, task)
	}
	if rows == 0 && len(result.Warnings) == 0 {
		return CSVResult{}, ErrNoRows
	}
	return result, nil
}

func locateColumns(header []string) (csvColumns, error) {
	cols := csvColumns{name: -1, start: -1, end: -1, notes: -1, category: -1, complete: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "name":
			cols.name = i
		case "startdate":
			cols.start = i
		case "enddate":
			cols.end = i
		case "notes":
			cols.notes = i
		case "category":
			cols.category = i
		case "completed":
			cols.complete = i
		}
	}
	if cols.name < 0 || cols.start < 0 || cols.end < 0 {
		return cols, ErrMissingColumns
	}
	return cols, nil
}

// csvTask builds a task from one record, or returns why it was skipped.
func csvTask(record []string, cols csvColumns) (roadmap.Task, string) {
	if len(record) < cols.required() {
		return roadmap.Task{}, "not enough columns"
	}
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	n := roadmap.NewTask{
		Name:      field(cols.name),
		StartDate: field(cols.start),
		EndDate:   field(cols.end),
		Category:  field(cols.category),
	}
	if n.Name == "" || n.StartDate == "" || n.EndDate == "" {
		return roadmap.Task{}, "missing required fields (name, startDate, endDate)"
	}
	if err := n.Validate(); err != nil {
		return roadmap.Task{}, strings.TrimPrefix(err.Error(), roadmap.ErrInvalid.Error()+": ")
	}

	task := roadmap.Task{
		ID:        roadmap.NewID(),
		Name:      n.Name,
		StartDate: n.StartDate,
		EndDate:   n.EndDate,
		Notes:     field(cols.notes),
		Category:  n.Category,
	}
	if v := field(cols.complete); v != "" {
		done, err := strconv.ParseBool(v)
		if err != nil {
			return roadmap.Task{}, fmt.Sprintf("completed value %q is not a boolean", v)
		}
		task.Completed = done
	}
	return task, ""
}
