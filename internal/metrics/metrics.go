// Package metrics derives progress, activity and sprint figures from the entity store.
// Every function here is pure; Engine adds memoization on top.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

// MaxLevel is the highest heatmap intensity level.
const MaxLevel = 4

// Counts tallies tasks per workflow status.
type Counts struct {
	Todo       int
	InProgress int
	Done       int
	Total      int
}

// Open is the number of tasks not yet done.
func (c Counts) Open() int { return c.Todo + c.InProgress }

func StatusCounts(tasks []entity.Task) Counts {
	var c Counts
	for _, t := range tasks {
		switch t.Status {
		case entity.StatusTodo:
			c.Todo++
		case entity.StatusInProgress:
			c.InProgress++
		case entity.StatusDone:
			c.Done++
		}
		c.Total++
	}
	return c
}

// ProgressPercentage returns round(100 * done / total), or 0 for an empty set.
func ProgressPercentage(tasks []entity.Task) int {
	c := StatusCounts(tasks)
	return percent(c.Done, c.Total)
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// CompletionRate returns done / total in [0, 1], or 0 for an empty set.
func CompletionRate(tasks []entity.Task) float64 {
	c := StatusCounts(tasks)
	if c.Total == 0 {
		return 0
	}
	return float64(c.Done) / float64(c.Total)
}

// HeatmapDay is one cell of the activity heatmap.
type HeatmapDay struct {
	Date  entity.Date
	Count int
	Level int
}

// Level quantizes a daily count into 0, 1, 2, 3 or 4+.
func Level(count int) int {
	if count < 0 {
		return 0
	}
	return min(count, MaxLevel)
}

// HeatmapBuckets counts events per calendar day over the windowDays days ending
// at ref, oldest first. Every day of the window is present, including empty ones.
// An event's day is taken in its own location; see InZone.
func HeatmapBuckets(events []time.Time, windowDays int, ref entity.Date) []HeatmapDay {
	if windowDays <= 0 || ref.IsZero() {
		return nil
	}
	first := ref.AddDays(-(windowDays - 1))
	days := make([]HeatmapDay, windowDays)
	for i := range days {
		days[i].Date = first.AddDays(i)
	}
	for _, ev := range events {
		d := entity.DateOf(ev)
		if d.Before(first) || d.After(ref) {
			continue
		}
		days[first.DaysUntil(d)].Count++
	}
	for i := range days {
		days[i].Level = Level(days[i].Count)
	}
	return days
}

// CompletionEvents returns the completion timestamps of done tasks in chronological order.
func CompletionEvents(tasks []entity.Task) []time.Time {
	var out []time.Time
	for _, t := range tasks {
		if t.Status == entity.StatusDone && t.CompletedAt != nil {
			out = append(out, *t.CompletedAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// InZone returns copies of events moved to loc, so that their calendar days
// match a reference date taken from a clock in loc. A nil loc changes nothing.
func InZone(events []time.Time, loc *time.Location) []time.Time {
	if loc == nil {
		return events
	}
	out := make([]time.Time, len(events))
	for i, ev := range events {
		out[i] = ev.In(loc)
	}
	return out
}

// SprintPhase places a sprint relative to a reference date.
type SprintPhase string

const (
	PhaseUpcoming  SprintPhase = "upcoming"
	PhaseActive    SprintPhase = "active"
	PhaseCompleted SprintPhase = "completed"
)

// SprintDaysRemaining returns ceil((end - ref) in days). It goes negative once
// the sprint is over; callers decide how to show that.
func SprintDaysRemaining(end, ref entity.Date) int {
	return int(math.Ceil(end.Time().Sub(ref.Time()).Hours() / 24))
}

// SprintStatus reports whether ref falls before, within or after [start, end].
func SprintStatus(start, end, ref entity.Date) SprintPhase {
	switch {
	case ref.Before(start):
		return PhaseUpcoming
	case ref.After(end):
		return PhaseCompleted
	default:
		return PhaseActive
	}
}

// Greeting picks a salutation for the hour of day.
func Greeting(hour int) string {
	switch {
	case hour < 12:
		return "Good morning"
	case hour < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
