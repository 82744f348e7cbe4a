package entity

import (
	"slices"
	"strings"
	"time"
)

// Kind names an entity collection.
type Kind string

const (
	KindTrack     Kind = "track"
	KindSprint    Kind = "sprint"
	KindTask      Kind = "task"
	KindDailyLog  Kind = "daily_log"
	KindDailyTodo Kind = "daily_todo"
)

// Kinds lists every collection in load order.
var Kinds = []Kind{KindTrack, KindSprint, KindTask, KindDailyLog, KindDailyTodo}

func (k Kind) Valid() bool {
	switch k {
	case KindTrack, KindSprint, KindTask, KindDailyLog, KindDailyTodo:
		return true
	}
	return false
}

// Status is the board column a task sits in.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses is the column order of the board.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", invalid("status", "%q is not one of TODO, IN_PROGRESS, DONE", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Next follows the one-click cycle TODO -> IN_PROGRESS -> DONE -> TODO.
func (s Status) Next() Status {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusTodo
	}
}

func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", invalid("priority", "%q is not one of LOW, MEDIUM, HIGH", s)
	}
	return p, nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Record is implemented by every entity the store and the gateway exchange.
type Record interface {
	Kind() Kind
	Key() int64
	Validate() error
}

type Track struct {
	ID          int64
	Title       string
	Description string
	Category    string
	Deadline    *Date
	IsActive    bool
	CreatedAt   time.Time
}

func (t Track) Kind() Kind { return KindTrack }
func (t Track) Key() int64 { return t.ID }

func (t Track) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "track title is required")
	}
	return nil
}

type Sprint struct {
	ID          int64
	Name        string
	Description string
	TrackID     *int64
	StartDate   Date
	EndDate     Date
	IsActive    bool
	CreatedAt   time.Time
}

func (s Sprint) Kind() Kind { return KindSprint }
func (s Sprint) Key() int64 { return s.ID }

// Validate checks required fields only; end > start is enforced by the board when configured.
func (s Sprint) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("name", "sprint name is required")
	}
	if s.StartDate.IsZero() {
		return invalid("start_date", "sprint start date is required")
	}
	if s.EndDate.IsZero() {
		return invalid("end_date", "sprint end date is required")
	}
	return nil
}

type Task struct {
	ID             int64
	Title          string
	Description    string
	Status         Status
	Priority       Priority
	EstimatedHours *float64
	ActualHours    *float64
	DueDate        *Date
	TrackID        *int64
	SprintID       *int64
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t Task) Kind() Kind { return KindTask }
func (t Task) Key() int64 { return t.ID }

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "task title is required")
	}
	if !t.Status.Valid() {
		return invalid("status", "%q is not one of TODO, IN_PROGRESS, DONE", t.Status)
	}
	if !t.Priority.Valid() {
		return invalid("priority", "%q is not one of LOW, MEDIUM, HIGH", t.Priority)
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return invalid("estimated_hours", "must be >= 0")
	}
	if t.ActualHours != nil && *t.ActualHours < 0 {
		return invalid("actual_hours", "must be >= 0")
	}
	return nil
}

// WithStatus returns a copy moved to s, keeping CompletedAt consistent with the DONE column.
func (t Task) WithStatus(s Status, now time.Time) Task {
	t.Status = s
	switch {
	case s == StatusDone && t.CompletedAt == nil:
		at := now
		t.CompletedAt = &at
	case s != StatusDone:
		t.CompletedAt = nil
	}
	return t
}

// Overdue reports whether an open task's due date is before today.
func (t Task) Overdue(today Date) bool {
	return t.Status != StatusDone && t.DueDate != nil && t.DueDate.Before(today)
}

type DailyLog struct {
	ID          int64
	Date        Date
	MoodScore   *int
	EnergyLevel *int
	FocusHours  *float64
	Notes       string
	Habits      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (l DailyLog) Kind() Kind { return KindDailyLog }
func (l DailyLog) Key() int64 { return l.ID }

func (l DailyLog) Validate() error {
	if l.Date.IsZero() {
		return invalid("date", "daily log date is required")
	}
	if l.MoodScore != nil && (*l.MoodScore < 1 || *l.MoodScore > 10) {
		return invalid("mood_score", "must be between 1 and 10")
	}
	if l.EnergyLevel != nil && (*l.EnergyLevel < 1 || *l.EnergyLevel > 10) {
		return invalid("energy_level", "must be between 1 and 10")
	}
	if l.FocusHours != nil && *l.FocusHours < 0 {
		return invalid("focus_hours", "must be >= 0")
	}
	return nil
}

func (l DailyLog) HasHabit(name string) bool {
	return slices.Contains(l.Habits, name)
}

// ToggleHabit returns a copy with name added to or removed from the habit set.
func (l DailyLog) ToggleHabit(name string) DailyLog {
	l.Habits = slices.Clone(l.Habits)
	if i := slices.Index(l.Habits, name); i >= 0 {
		l.Habits = slices.Delete(l.Habits, i, i+1)
		return l
	}
	l.Habits = append(l.Habits, name)
	return l
}

// NormalizeHabits trims names and drops blanks and duplicates, keeping first occurrence order.
func NormalizeHabits(habits []string) []string {
	var out []string
	for _, h := range habits {
		h = strings.TrimSpace(h)
		if h == "" || slices.Contains(out, h) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// DailyTodo is one item of a day's checklist. Unlike tasks it never moves
// between columns and belongs to a single calendar day.
type DailyTodo struct {
	ID          int64
	Title       string
	Description string
	IsCompleted bool
	Date        Date
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (d DailyTodo) Kind() Kind { return KindDailyTodo }
func (d DailyTodo) Key() int64 { return d.ID }

func (d DailyTodo) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return invalid("title", "todo title is required")
	}
	if d.Date.IsZero() {
		return invalid("date", "todo date is required")
	}
	return nil
}

func Int64Ptr(v int64) *int64       { return &v }
func IntPtr(v int) *int             { return &v }
func Float64Ptr(v float64) *float64 { return &v }
