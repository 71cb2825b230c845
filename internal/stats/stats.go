// Package stats computes completion statistics for roadmaps.
package stats

import (
	"math"
	"time"

	"github.com/nibzard/roadmapper/internal/roadmap"
)

// Stats summarizes the tasks of one roadmap relative to a given day.
// Percentages are rounded independently and may not sum to 100.
type Stats struct {
	Total         int `json:"total" yaml:"total"`
	Completed     int `json:"completed" yaml:"completed"`
	CompletedPct  int `json:"completedPct" yaml:"completedPct"`
	InProgress    int `json:"inProgress" yaml:"inProgress"`
	InProgressPct int `json:"inProgressPct" yaml:"inProgressPct"`
	Overdue       int `json:"overdue" yaml:"overdue"`
	OverduePct    int `json:"overduePct" yaml:"overduePct"`
}

// Calculate computes stats for r. today is a YYYY-MM-DD date; incomplete
// tasks ending strictly before it are overdue.
func Calculate(r *roadmap.Roadmap, today string) Stats {
	var s Stats
	if r == nil || len(r.Tasks) == 0 {
		return s
	}

	s.Total = len(r.Tasks)
	for _, t := range r.Tasks {
		switch {
		case t.Completed:
			s.Completed++
		case t.EndDate < today:
			s.Overdue++
		default:
			s.InProgress++
		}
	}
	s.CompletedPct = percent(s.Completed, s.Total)
	s.InProgressPct = percent(s.InProgress, s.Total)
	s.OverduePct = percent(s.Overdue, s.Total)
	return s
}

// CalculateAt computes stats using the calendar day of now in its own location.
func CalculateAt(r *roadmap.Roadmap, now time.Time) Stats {
	return Calculate(r, roadmap.FormatDate(now))
}

func percent(n, total int) int {
	return int(math.Round(float64(n) / float64(total) * 100))
}

// RoadmapSummary pairs a roadmap's identity with its stats.
type RoadmapSummary struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	TimeScale roadmap.TimeScale `json:"timeScale" yaml:"timeScale"`
	Stats     Stats             `json:"stats" yaml:"stats"`
}

// Summary returns one entry per roadmap, in document order.
func Summary(doc *roadmap.Document, today string) []RoadmapSummary {
	out := make([]RoadmapSummary, 0, len(doc.Roadmaps))
	for i := range doc.Roadmaps {
		r := &doc.Roadmaps[i]
		out = append(out, RoadmapSummary{
			ID:        r.ID,
			Name:      r.Name,
			TimeScale: r.TimeScale,
			Stats:     Calculate(r, today),
		})
	}
	return out
}
