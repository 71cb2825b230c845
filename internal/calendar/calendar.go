// Package calendar partitions date-ranged tasks into calendar-aligned
// buckets (days, ISO weeks, months) and answers bucket membership.
//
// All dates are civil dates interpreted as UTC midnight, so bucket
// arithmetic never crosses a DST transition.
package calendar

import (
	"fmt"
	"slices"
	"time"

	"github.com/nibzard/roadmapper/internal/roadmap"
)

// TimeGroup is one calendar bucket. StartDate is midnight of the first day
// and EndDate is the last instant of the last day.
type TimeGroup struct {
	Key       string
	Label     string
	StartDate time.Time
	EndDate   time.Time
}

// Contains reports whether the civil date d falls inside the bucket.
func (g TimeGroup) Contains(d time.Time) bool {
	d = truncate(d)
	return !d.Before(g.StartDate) && !d.After(g.EndDate)
}

// Today returns the current civil date in loc as YYYY-MM-DD.
func Today(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return roadmap.FormatDate(time.Now().In(loc))
}

// truncate drops the time of day and pins the calendar day to UTC.
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOf(next time.Time) time.Time {
	return next.Add(-time.Nanosecond)
}

// GroupFor returns the bucket of the given scale containing date.
// It returns false for an unknown scale.
func GroupFor(date time.Time, scale roadmap.TimeScale) (TimeGroup, bool) {
	day := truncate(date)
	switch scale {
	case roadmap.TimeScaleDaily:
		return TimeGroup{
			Key:       day.Format(roadmap.DateLayout),
			Label:     day.Format("Mon, Jan 2, 2006"),
			StartDate: day,
			EndDate:   endOf(day.AddDate(0, 0, 1)),
		}, true

	case roadmap.TimeScaleWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // days since Monday
		start := day.AddDate(0, 0, -offset)
		end := endOf(start.AddDate(0, 0, 7))
		year, week := start.ISOWeek()
		return TimeGroup{
			Key:       fmt.Sprintf("%04d-W%02d", year, week),
			Label:     fmt.Sprintf("Week %d: %s - %s", week, start.Format("Jan 2"), end.Format("Jan 2, 2006")),
			StartDate: start,
			EndDate:   end,
		}, true

	case roadmap.TimeScaleMonthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return TimeGroup{
			Key:       start.Format("2006-01"),
			Label:     start.Format("January 2006"),
			StartDate: start,
			EndDate:   endOf(start.AddDate(0, 1, 0)),
		}, true
	}
	return TimeGroup{}, false
}

type span struct {
	start, end time.Time
}

func taskSpan(t roadmap.Task) (span, bool) {
	start, err := roadmap.ParseDate(t.StartDate)
	if err != nil {
		return span{}, false
	}
	end, err := roadmap.ParseDate(t.EndDate)
	if err != nil {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// GroupTasks returns the buckets of the given scale covering the span from
// the earliest task start to the latest task end, sorted by start date.
// Tasks with unparseable dates are ignored.
func GroupTasks(tasks []roadmap.Task, scale roadmap.TimeScale) []TimeGroup {
	if !scale.Valid() {
		return nil
	}

	var minDate, maxDate time.Time
	found := false
	for _, t := range tasks {
		s, ok := taskSpan(t)
		if !ok {
			continue
		}
		if !found || s.start.Before(minDate) {
			minDate = s.start
		}
		if !found || s.end.After(maxDate) {
			maxDate = s.end
		}
		found = true
	}
	if !found {
		return nil
	}

	seen := make(map[string]bool)
	var groups []TimeGroup
	for cursor := minDate; !cursor.After(maxDate); {
		g, _ := GroupFor(cursor, scale)
		if !seen[g.Key] {
			seen[g.Key] = true
			groups = append(groups, g)
		}
		// Step from the bucket bounds, not the cursor, so every bucket
		// is visited exactly once.
		cursor = g.EndDate.Add(time.Nanosecond)
	}

	slices.SortFunc(groups, func(a, b TimeGroup) int {
		return a.StartDate.Compare(b.StartDate)
	})
	return groups
}

// FilterTasksForGroup returns the tasks whose inclusive date range overlaps
// the group, in their original order. A task spanning several buckets is
// returned for each of them.
func FilterTasksForGroup(tasks []roadmap.Task, group TimeGroup) []roadmap.Task {
	var out []roadmap.Task
	for _, t := range tasks {
		s, ok := taskSpan(t)
		if !ok {
			continue
		}
		if !s.start.After(group.EndDate) && !s.end.Before(group.StartDate) {
			out = append(out, t)
		}
	}
	return out
}

// FindGroup returns the index of the group with the given key, or -1.
func FindGroup(groups []TimeGroup, key string) int {
	return slices.IndexFunc(groups, func(g TimeGroup) bool { return g.Key == key })
}
