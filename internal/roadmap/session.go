package roadmap

import (
	"bytes"
	"encoding/json"
	"math"
)

// sessionFields mirrors PomodoroSession without its JSON methods.
type sessionFields PomodoroSession

// Verbatim reports whether the entry is kept exactly as it was stored
// because it has fields or values this version does not model.
func (s PomodoroSession) Verbatim() bool {
	return s.raw != nil
}

// MarshalJSON writes verbatim entries back unchanged.
func (s PomodoroSession) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	return json.Marshal(sessionFields(s))
}

// UnmarshalJSON never fails. An entry that does not decode strictly is
// kept verbatim and its known fields are filled in where they can be read,
// so the session log survives a load and save unchanged.
func (s *PomodoroSession) UnmarshalJSON(data []byte) error {
	var strict sessionFields
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&strict); err == nil && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = PomodoroSession(strict)
		return nil
	}

	*s = PomodoroSession{raw: append(json.RawMessage(nil), bytes.TrimSpace(data)...)}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	text := func(key string, dst *string) {
		if v, ok := fields[key]; ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	seconds := func(key string, dst *int) {
		var f float64
		if v, ok := fields[key]; ok && json.Unmarshal(v, &f) == nil {
			*dst = int(math.Round(f))
		}
	}
	text("id", &s.ID)
	text("roadmapId", &s.RoadmapID)
	text("taskId", &s.TaskID)
	text("taskName", &s.TaskName)
	text("taskCategory", &s.TaskCategory)
	text("startTime", &s.StartTime)
	text("endTime", &s.EndTime)
	seconds("plannedDurationSeconds", &s.PlannedDurationSeconds)
	seconds("actualDurationSeconds", &s.ActualDurationSeconds)
	if v, ok := fields["sessionType"]; ok {
		_ = json.Unmarshal(v, &s.SessionType)
	}
	if v, ok := fields["completed"]; ok {
		_ = json.Unmarshal(v, &s.Completed)
	}
	return nil
}
