package store

import (
	"database/sql"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

type Setting struct {
	Key   string
	Value string
}

// TaskFilter narrows ListTasks. Nil fields impose no constraint.
type TaskFilter struct {
	Status   entity.Status
	Priority entity.Priority
	TrackID  *int64
	SprintID *int64
	// OverdueOn keeps open tasks due before the given day.
	OverdueOn *entity.Date
}

type SprintFilter struct {
	TrackID *int64
	Active  *bool
	// CurrentOn keeps sprints whose date range contains the given day.
	CurrentOn *entity.Date
}

type TrackFilter struct {
	Active *bool
}

// LogFilter bounds ListDailyLogs by date, both ends inclusive.
type LogFilter struct {
	From *entity.Date
	To   *entity.Date
}

func nullDate(d *entity.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func scanDate(ns sql.NullString) *entity.Date {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := entity.ParseDate(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// scanTime reads a stored UTC instant back in the local zone.
func scanTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	t = t.Local()
	return &t
}

func scanID(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func scanFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func scanInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
