package metrics

import (
	"slices"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

// DefaultHeatmapDays is the trailing window of the dashboard heatmap and journal averages.
const DefaultHeatmapDays = 30

// Dashboard is the summary shown on the home screen.
type Dashboard struct {
	Date     entity.Date
	Greeting string

	TotalTracks  int
	ActiveTracks int

	Tasks               Counts
	HighPriorityPending int
	Overdue             int
	CompletionPercent   float64

	ActiveSprints []SprintSummary
	Tracks        []TrackSummary
	Categories    []CategoryGroup
	Heatmap       []HeatmapDay

	// Today's checklist.
	Todos     []entity.DailyTodo
	TodosDone int

	// Journal figures over the heatmap window. AvgMood is 0 when no mood was logged.
	AvgMood         float64
	TotalFocusHours float64
	LoggedDays      int
}

type dashKey struct {
	version uint64
	date    entity.Date
	days    int
	loc     *time.Location
}

// Engine computes dashboards from a store and reuses the last result until the
// store changes or the reference day moves. It is not safe for concurrent use.
type Engine struct {
	store       *entity.Store
	heatmapDays int

	cached   *Dashboard
	key      dashKey
	computed int
}

func NewEngine(store *entity.Store) *Engine {
	return &Engine{store: store, heatmapDays: DefaultHeatmapDays}
}

// SetHeatmapDays changes the trailing window; non-positive values restore the default.
func (e *Engine) SetHeatmapDays(days int) {
	if days <= 0 {
		days = DefaultHeatmapDays
	}
	e.heatmapDays = days
}

func (e *Engine) HeatmapDays() int { return e.heatmapDays }

// Dashboard returns the summary as of now. Calendar days, the heatmap's
// included, are taken in now's location. The result shares no memory with the
// cached copy.
func (e *Engine) Dashboard(now time.Time) Dashboard {
	ref := entity.DateOf(now)
	key := dashKey{version: e.store.Version(), date: ref, days: e.heatmapDays, loc: now.Location()}
	if e.cached == nil || e.key != key {
		d := buildDashboard(e.store, ref, e.heatmapDays, now.Location())
		e.cached, e.key = &d, key
		e.computed++
	}
	d := e.cached.clone()
	d.Greeting = Greeting(now.Hour())
	return d
}

func (d Dashboard) clone() Dashboard {
	d.ActiveSprints = slices.Clone(d.ActiveSprints)
	d.Tracks = slices.Clone(d.Tracks)
	d.Heatmap = slices.Clone(d.Heatmap)
	d.Todos = slices.Clone(d.Todos)
	d.Categories = slices.Clone(d.Categories)
	for i := range d.Categories {
		d.Categories[i].Tracks = slices.Clone(d.Categories[i].Tracks)
	}
	return d
}

func buildDashboard(s *entity.Store, ref entity.Date, days int, loc *time.Location) Dashboard {
	tasks := s.Tasks()
	d := Dashboard{
		Date:    ref,
		Tasks:   StatusCounts(tasks),
		Tracks:  TrackSummaries(s),
		Heatmap: HeatmapBuckets(InZone(CompletionEvents(tasks), loc), days, ref),
		Todos:   s.TodosOn(ref),
	}
	d.Categories = TracksByCategory(d.Tracks)
	for _, t := range d.Todos {
		if t.IsCompleted {
			d.TodosDone++
		}
	}

	for _, tr := range s.Tracks() {
		d.TotalTracks++
		if tr.IsActive {
			d.ActiveTracks++
		}
	}

	for _, t := range tasks {
		if t.Status == entity.StatusDone {
			continue
		}
		if t.Priority == entity.PriorityHigh {
			d.HighPriorityPending++
		}
		if t.Overdue(ref) {
			d.Overdue++
		}
	}
	if d.Tasks.Total > 0 {
		d.CompletionPercent = round2(100 * CompletionRate(tasks))
	}

	for _, sp := range s.Sprints() {
		if !sp.IsActive || SprintStatus(sp.StartDate, sp.EndDate, ref) != PhaseActive {
			continue
		}
		d.ActiveSprints = append(d.ActiveSprints, summarizeSprint(s, sp, ref))
	}

	first := ref.AddDays(-(days - 1))
	var moodSum, moodN int
	var focus float64
	for _, l := range s.DailyLogs() {
		if l.Date.Before(first) || l.Date.After(ref) {
			continue
		}
		d.LoggedDays++
		if l.MoodScore != nil {
			moodSum += *l.MoodScore
			moodN++
		}
		if l.FocusHours != nil {
			focus += *l.FocusHours
		}
	}
	if moodN > 0 {
		d.AvgMood = round2(float64(moodSum) / float64(moodN))
	}
	d.TotalFocusHours = round2(focus)
	return d
}
