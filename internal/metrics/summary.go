package metrics

import (
	"cmp"
	"slices"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

// TrackSummary is a track with its derived figures. The hour totals add up
// the estimates and logged hours of the track's tasks that carry them.
type TrackSummary struct {
	Track          entity.Track
	Tasks          Counts
	Progress       int
	SprintCount    int
	EstimatedHours float64
	ActualHours    float64
}

// TrackSummaries returns one summary per track in store order.
func TrackSummaries(s *entity.Store) []TrackSummary {
	sprints := make(map[int64]int)
	for _, sp := range s.Sprints() {
		if sp.TrackID != nil {
			sprints[*sp.TrackID]++
		}
	}

	var out []TrackSummary
	for _, tr := range s.Tracks() {
		tasks := s.TasksInTrack(tr.ID)
		c := StatusCounts(tasks)
		sum := TrackSummary{
			Track:       tr,
			Tasks:       c,
			Progress:    percent(c.Done, c.Total),
			SprintCount: sprints[tr.ID],
		}
		for _, t := range tasks {
			if t.EstimatedHours != nil {
				sum.EstimatedHours += *t.EstimatedHours
			}
			if t.ActualHours != nil {
				sum.ActualHours += *t.ActualHours
			}
		}
		sum.EstimatedHours, sum.ActualHours = round2(sum.EstimatedHours), round2(sum.ActualHours)
		out = append(out, sum)
	}
	return out
}

// CategoryGroup gathers the active tracks sharing a category.
type CategoryGroup struct {
	Category string // empty for uncategorized tracks
	Tracks   []TrackSummary
	Tasks    Counts
	Progress int
}

// TracksByCategory groups active tracks by category name, sorted by name with
// the uncategorized group last. Categories without active tracks are omitted.
func TracksByCategory(tracks []TrackSummary) []CategoryGroup {
	index := make(map[string]int)
	var out []CategoryGroup
	for _, ts := range tracks {
		if !ts.Track.IsActive {
			continue
		}
		i, ok := index[ts.Track.Category]
		if !ok {
			i = len(out)
			index[ts.Track.Category] = i
			out = append(out, CategoryGroup{Category: ts.Track.Category})
		}
		g := &out[i]
		g.Tracks = append(g.Tracks, ts)
		g.Tasks.Todo += ts.Tasks.Todo
		g.Tasks.InProgress += ts.Tasks.InProgress
		g.Tasks.Done += ts.Tasks.Done
		g.Tasks.Total += ts.Tasks.Total
	}
	for i := range out {
		out[i].Progress = percent(out[i].Tasks.Done, out[i].Tasks.Total)
	}
	slices.SortStableFunc(out, func(a, b CategoryGroup) int {
		switch {
		case a.Category == "" && b.Category != "":
			return 1
		case b.Category == "" && a.Category != "":
			return -1
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// SprintSummary is a sprint with its derived figures at a reference date.
type SprintSummary struct {
	Sprint        entity.Sprint
	TrackTitle    string
	Tasks         Counts
	Progress      int
	Phase         SprintPhase
	DaysRemaining int
}

// SprintSummaries returns one summary per sprint in store order.
func SprintSummaries(s *entity.Store, ref entity.Date) []SprintSummary {
	var out []SprintSummary
	for _, sp := range s.Sprints() {
		out = append(out, summarizeSprint(s, sp, ref))
	}
	return out
}

func summarizeSprint(s *entity.Store, sp entity.Sprint, ref entity.Date) SprintSummary {
	c := StatusCounts(s.TasksInSprint(sp.ID))
	sum := SprintSummary{
		Sprint:        sp,
		Tasks:         c,
		Progress:      percent(c.Done, c.Total),
		Phase:         SprintStatus(sp.StartDate, sp.EndDate, ref),
		DaysRemaining: SprintDaysRemaining(sp.EndDate, ref),
	}
	if sp.TrackID != nil {
		if tr, err := s.Track(*sp.TrackID); err == nil {
			sum.TrackTitle = tr.Title
		}
	}
	return sum
}

// BurndownPoint is the state of a sprint at the end of one day.
type BurndownPoint struct {
	Date      entity.Date
	Remaining int
	Ideal     float64
}

// Burndown returns, for each sprint day from start through min(end, ref), the
// number of sprint tasks still open at the end of that day next to the ideal
// straight line from the task total down to zero at the end date.
// Done tasks without a completion time count as done from the start.
// Completion times are placed on calendar days in loc; nil keeps their own zone.
func Burndown(sp entity.Sprint, tasks []entity.Task, ref entity.Date, loc *time.Location) []BurndownPoint {
	if sp.StartDate.IsZero() || sp.EndDate.IsZero() || ref.Before(sp.StartDate) {
		return nil
	}
	last := sp.EndDate
	if ref.Before(last) {
		last = ref
	}
	if last.Before(sp.StartDate) {
		return nil
	}

	var sprintTasks []entity.Task
	for _, t := range tasks {
		if t.SprintID != nil && *t.SprintID == sp.ID {
			sprintTasks = append(sprintTasks, t)
		}
	}
	total := len(sprintTasks)
	span := sp.StartDate.DaysUntil(sp.EndDate)

	var out []BurndownPoint
	for d, i := sp.StartDate, 0; !d.After(last); d, i = d.AddDays(1), i+1 {
		remaining := 0
		for _, t := range sprintTasks {
			if !doneBy(t, d, loc) {
				remaining++
			}
		}
		ideal := 0.0
		if span > 0 {
			ideal = float64(total) * (1 - float64(i)/float64(span))
			ideal = max(ideal, 0)
		}
		out = append(out, BurndownPoint{Date: d, Remaining: remaining, Ideal: round2(ideal)})
	}
	return out
}

func doneBy(t entity.Task, day entity.Date, loc *time.Location) bool {
	if t.Status != entity.StatusDone {
		return false
	}
	if t.CompletedAt == nil {
		return true
	}
	at := *t.CompletedAt
	if loc != nil {
		at = at.In(loc)
	}
	return !entity.DateOf(at).After(day)
}
