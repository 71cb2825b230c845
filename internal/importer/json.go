package importer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nibzard/roadmapper/internal/roadmap"
)

// ParseTasksJSON reads a JSON array of tasks. An exported roadmap object is
// accepted too, in which case its tasks are used. Every task must carry
// string id, name, startDate and endDate and a boolean completed; notes
// and category are optional strings. Dates must form a valid range.
func ParseTasksJSON(data []byte) ([]roadmap.Task, error) {
	raw, err := taskArray(data)
	if err != nil {
		return nil, err
	}

	tasks := make([]roadmap.Task, 0, len(raw))
	for i, item := range raw {
		task, err := decodeTask(item)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d: %v", ErrInvalidTasks, i, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func taskArray(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var exported struct {
			Tasks []map[string]any `json:"tasks"`
		}
		if err := json.Unmarshal(trimmed, &exported); err != nil || exported.Tasks == nil {
			return nil, fmt.Errorf("invalid JSON format: expected an array of tasks or an exported roadmap")
		}
		return exported.Tasks, nil
	}
	var raw []map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON format: expected an array of tasks: %w", err)
	}
	return raw, nil
}

func decodeTask(item map[string]any) (roadmap.Task, error) {
	if item == nil {
		return roadmap.Task{}, fmt.Errorf("not an object")
	}
	str := func(key string, required bool) (string, error) {
		v, ok := item[key]
		if !ok || v == nil {
			if required {
				return "", fmt.Errorf("%s is required", key)
			}
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%s must be a string", key)
		}
		return s, nil
	}

	var task roadmap.Task
	var err error
	if task.ID, err = str("id", true); err != nil {
		return task, err
	}
	if task.Name, err = str("name", true); err != nil {
		return task, err
	}
	if task.StartDate, err = str("startDate", true); err != nil {
		return task, err
	}
	if task.EndDate, err = str("endDate", true); err != nil {
		return task, err
	}
	if task.Notes, err = str("notes", false); err != nil {
		return task, err
	}
	if task.Category, err = str("category", false); err != nil {
		return task, err
	}
	completed, ok := item["completed"].(bool)
	if !ok {
		return task, fmt.Errorf("completed must be a boolean")
	}
	task.Completed = completed

	n := roadmap.NewTask{Name: task.Name, StartDate: task.StartDate, EndDate: task.EndDate}
	if err := n.Validate(); err != nil {
		return task, err
	}
	return task, nil
}
