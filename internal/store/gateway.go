package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/entity"
)

var _ board.Gateway = (*Store)(nil)

// Fetch lists one collection narrowed by q.
//
//	tasks:      status, priority, track, sprint, overdue (+ today)
//	sprints:    track, active, current (+ today)
//	tracks:     active
//	daily logs: start_date, end_date
//	daily todos: date, is_completed
func (s *Store) Fetch(ctx context.Context, kind entity.Kind, q board.Query) ([]entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := queryParser{q: q, today: entity.DateOf(s.now())}

	var out []entity.Record
	switch kind {
	case entity.KindTask:
		var f TaskFilter
		if v := q["status"]; v != "" {
			f.Status, p.err = entity.ParseStatus(v)
		}
		if v := q["priority"]; v != "" && p.err == nil {
			f.Priority, p.err = entity.ParsePriority(v)
		}
		f.TrackID, f.SprintID = p.id("track"), p.id("sprint")
		if overdue := p.flag("overdue"); overdue != nil && *overdue {
			today := p.day("today")
			f.OverdueOn = &today
		}
		if err := p.done("status", "priority", "track", "sprint", "overdue", "today"); err != nil {
			return nil, err
		}
		tasks, err := s.ListTasks(f)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			out = append(out, t)
		}
	case entity.KindSprint:
		f := SprintFilter{TrackID: p.id("track"), Active: p.flag("active")}
		if current := p.flag("current"); current != nil && *current {
			today := p.day("today")
			f.CurrentOn = &today
		}
		if err := p.done("track", "active", "current", "today"); err != nil {
			return nil, err
		}
		sprints, err := s.ListSprints(f)
		if err != nil {
			return nil, err
		}
		for _, sp := range sprints {
			out = append(out, sp)
		}
	case entity.KindTrack:
		f := TrackFilter{Active: p.flag("active")}
		if err := p.done("active"); err != nil {
			return nil, err
		}
		tracks, err := s.ListTracks(f)
		if err != nil {
			return nil, err
		}
		for _, t := range tracks {
			out = append(out, t)
		}
	case entity.KindDailyLog:
		var f LogFilter
		if q["start_date"] != "" {
			d := p.day("start_date")
			f.From = &d
		}
		if q["end_date"] != "" {
			d := p.day("end_date")
			f.To = &d
		}
		if err := p.done("start_date", "end_date"); err != nil {
			return nil, err
		}
		logs, err := s.ListDailyLogs(f)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			out = append(out, l)
		}
	case entity.KindDailyTodo:
		var f TodoFilter
		if q["date"] != "" {
			d := p.day("date")
			f.Date = &d
		}
		f.Completed = p.flag("is_completed")
		if err := p.done("date", "is_completed"); err != nil {
			return nil, err
		}
		todos, err := s.ListDailyTodos(f)
		if err != nil {
			return nil, err
		}
		for _, d := range todos {
			out = append(out, d)
		}
	default:
		return nil, &entity.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch r := value(rec).(type) {
	case entity.Track:
		t, err := s.CreateTrack(r)
		if err != nil {
			return nil, err
		}
		return *t, nil
	case entity.Sprint:
		sp, err := s.CreateSprint(r)
		if err != nil {
			return nil, err
		}
		return *sp, nil
	case entity.Task:
		t, err := s.CreateTask(r)
		if err != nil {
			return nil, err
		}
		return *t, nil
	case entity.DailyLog:
		l, err := s.CreateDailyLog(r)
		if err != nil {
			return nil, err
		}
		return *l, nil
	case entity.DailyTodo:
		d, err := s.CreateDailyTodo(r)
		if err != nil {
			return nil, err
		}
		return *d, nil
	}
	return nil, fmt.Errorf("create: unsupported record type %T", rec)
}

// value dereferences pointer records so callers only switch on value types.
func value(rec entity.Record) entity.Record {
	switch r := rec.(type) {
	case *entity.Track:
		if r != nil {
			return *r
		}
	case *entity.Sprint:
		if r != nil {
			return *r
		}
	case *entity.Task:
		if r != nil {
			return *r
		}
	case *entity.DailyLog:
		if r != nil {
			return *r
		}
	case *entity.DailyTodo:
		if r != nil {
			return *r
		}
	}
	return rec
}

// Update applies patch to one record inside a single transaction.
//
// A call tagged with an idempotency key that was already applied returns the
// current record without writing again. A task status commit tagged with a
// CommitOrder that is not newer than the last one applied from the same
// session was overtaken by a later move; it is refused the same way.
func (s *Store) Update(ctx context.Context, kind entity.Kind, id int64, patch board.Patch) (entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, keyed := board.IdempotencyKey(ctx)
	order, ordered := board.CommitOrderFrom(ctx)
	if _, moves := patch["status"]; !moves || kind != entity.KindTask {
		ordered = false
	}

	var rec entity.Record
	err := s.inTx(func(tx *Store) error {
		apply := true
		if keyed {
			applied, err := tx.commitApplied(key)
			if err != nil {
				return err
			}
			if applied {
				s.logger.Debug("skipping repeated commit", "key", key, "kind", kind, "id", id)
				apply = false
			}
		}
		if apply && ordered {
			stale, err := tx.statusCommitStale(id, order)
			if err != nil {
				return err
			}
			if stale {
				s.logger.Info("refusing overtaken status commit", "task", id, "seq", order.Seq)
				apply = false
			}
		}

		if apply {
			if err := tx.patch(kind, id, patch); err != nil {
				return err
			}
			if ordered {
				if err := tx.recordStatusCommit(id, order); err != nil {
					return err
				}
			}
		}
		if keyed && apply {
			if err := tx.recordCommit(key, kind, id); err != nil {
				return err
			}
		}

		var err error
		rec, err = tx.get(kind, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) patch(kind entity.Kind, id int64, patch board.Patch) error {
	switch kind {
	case entity.KindTask:
		return s.patchTask(id, patch)
	case entity.KindTrack:
		return s.patchTrack(id, patch)
	case entity.KindSprint:
		return s.patchSprint(id, patch)
	case entity.KindDailyLog:
		return s.patchDailyLog(id, patch)
	case entity.KindDailyTodo:
		return s.patchDailyTodo(id, patch)
	}
	return &entity.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
}

func (s *Store) Delete(ctx context.Context, kind entity.Kind, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch kind {
	case entity.KindTask:
		return s.DeleteTask(id)
	case entity.KindTrack:
		return s.DeleteTrack(id)
	case entity.KindSprint:
		return s.DeleteSprint(id)
	case entity.KindDailyLog:
		return s.DeleteDailyLog(id)
	case entity.KindDailyTodo:
		return s.DeleteDailyTodo(id)
	}
	return &entity.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
}

func (s *Store) get(kind entity.Kind, id int64) (entity.Record, error) {
	var (
		rec entity.Record
		err error
	)
	switch kind {
	case entity.KindTask:
		var t *entity.Task
		if t, err = s.GetTask(id); err == nil {
			rec = *t
		}
	case entity.KindTrack:
		var t *entity.Track
		if t, err = s.GetTrack(id); err == nil {
			rec = *t
		}
	case entity.KindSprint:
		var sp *entity.Sprint
		if sp, err = s.GetSprint(id); err == nil {
			rec = *sp
		}
	case entity.KindDailyLog:
		var l *entity.DailyLog
		if l, err = s.GetDailyLog(id); err == nil {
			rec = *l
		}
	case entity.KindDailyTodo:
		var d *entity.DailyTodo
		if d, err = s.GetDailyTodo(id); err == nil {
			rec = *d
		}
	default:
		err = &entity.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) commitApplied(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM commit_keys WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check commit key: %w", err)
	}
	return n > 0, nil
}

func (s *Store) recordCommit(key string, kind entity.Kind, id int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO commit_keys (key, kind, record_id, applied_at) VALUES (?, ?, ?, ?)`,
		key, string(kind), id, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("record commit key: %w", err)
	}
	return nil
}

func (s *Store) patchTask(id int64, patch board.Patch) error {
	t, err := s.GetTask(id)
	if err != nil {
		return err
	}
	next := *t
	for field, v := range patch {
		switch field {
		case "title":
			next.Title, err = board.PatchString(field, v)
		case "description":
			next.Description, err = board.PatchString(field, v)
		case "status":
			var st entity.Status
			if st, err = board.PatchStatus(v); err == nil {
				next = next.WithStatus(st, s.now())
			}
		case "priority":
			next.Priority, err = board.PatchPriority(v)
		case "estimated_hours":
			next.EstimatedHours, err = board.PatchFloat(field, v)
		case "actual_hours":
			next.ActualHours, err = board.PatchFloat(field, v)
		case "due_date":
			next.DueDate, err = board.PatchDate(field, v)
		case "track_id":
			next.TrackID, err = board.PatchID(field, v)
		case "sprint_id":
			next.SprintID, err = board.PatchID(field, v)
		default:
			err = unknownField(entity.KindTask, field)
		}
		if err != nil {
			return err
		}
	}
	if err := s.checkRefs(next.TrackID, next.SprintID); err != nil {
		return err
	}
	return s.UpdateTask(next)
}

func (s *Store) patchTrack(id int64, patch board.Patch) error {
	t, err := s.GetTrack(id)
	if err != nil {
		return err
	}
	next := *t
	for field, v := range patch {
		switch field {
		case "title":
			next.Title, err = board.PatchString(field, v)
		case "description":
			next.Description, err = board.PatchString(field, v)
		case "category":
			next.Category, err = board.PatchString(field, v)
		case "deadline":
			next.Deadline, err = board.PatchDate(field, v)
		case "is_active":
			next.IsActive, err = board.PatchBool(field, v)
		default:
			err = unknownField(entity.KindTrack, field)
		}
		if err != nil {
			return err
		}
	}
	return s.UpdateTrack(next)
}

func (s *Store) patchSprint(id int64, patch board.Patch) error {
	sp, err := s.GetSprint(id)
	if err != nil {
		return err
	}
	next := *sp
	for field, v := range patch {
		switch field {
		case "name":
			next.Name, err = board.PatchString(field, v)
		case "description":
			next.Description, err = board.PatchString(field, v)
		case "track_id":
			next.TrackID, err = board.PatchID(field, v)
		case "start_date", "end_date":
			var d *entity.Date
			if d, err = board.PatchDate(field, v); err == nil {
				if d == nil {
					err = &entity.ValidationError{Field: field, Reason: "sprint dates are required"}
				} else if field == "start_date" {
					next.StartDate = *d
				} else {
					next.EndDate = *d
				}
			}
		case "is_active":
			next.IsActive, err = board.PatchBool(field, v)
		default:
			err = unknownField(entity.KindSprint, field)
		}
		if err != nil {
			return err
		}
	}
	if err := s.checkRefs(next.TrackID, nil); err != nil {
		return err
	}
	return s.UpdateSprint(next)
}

func (s *Store) patchDailyLog(id int64, patch board.Patch) error {
	l, err := s.GetDailyLog(id)
	if err != nil {
		return err
	}
	next := *l
	for field, v := range patch {
		switch field {
		case "mood_score":
			next.MoodScore, err = board.PatchInt(field, v)
		case "energy_level":
			next.EnergyLevel, err = board.PatchInt(field, v)
		case "focus_hours":
			next.FocusHours, err = board.PatchFloat(field, v)
		case "notes":
			next.Notes, err = board.PatchString(field, v)
		case "habits_completed":
			next.Habits, err = board.PatchStrings(field, v)
		default:
			err = unknownField(entity.KindDailyLog, field)
		}
		if err != nil {
			return err
		}
	}
	return s.UpdateDailyLog(next)
}

func (s *Store) patchDailyTodo(id int64, patch board.Patch) error {
	d, err := s.GetDailyTodo(id)
	if err != nil {
		return err
	}
	next := *d
	for field, v := range patch {
		switch field {
		case "title":
			next.Title, err = board.PatchString(field, v)
		case "description":
			next.Description, err = board.PatchString(field, v)
		case "is_completed":
			next.IsCompleted, err = board.PatchBool(field, v)
		case "date":
			var day *entity.Date
			if day, err = board.PatchDate(field, v); err == nil {
				if day == nil {
					err = &entity.ValidationError{Field: field, Reason: "todo date is required"}
				} else {
					next.Date = *day
				}
			}
		default:
			err = unknownField(entity.KindDailyTodo, field)
		}
		if err != nil {
			return err
		}
	}
	return s.UpdateDailyTodo(next)
}

// statusCommitStale reports whether a status commit from o's session with a
// sequence at or above o's was already applied to the task.
func (s *Store) statusCommitStale(taskID int64, o board.CommitOrder) (bool, error) {
	var session string
	var seq int64
	err := s.db.QueryRow(`SELECT session, seq FROM status_commits WHERE task_id = ?`, taskID).Scan(&session, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check status commit: %w", err)
	}
	return session == o.Session && uint64(seq) >= o.Seq, nil
}

func (s *Store) recordStatusCommit(taskID int64, o board.CommitOrder) error {
	_, err := s.db.Exec(
		`INSERT INTO status_commits (task_id, session, seq) VALUES (?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET session = excluded.session, seq = excluded.seq`,
		taskID, o.Session, int64(o.Seq),
	)
	if err != nil {
		return fmt.Errorf("record status commit: %w", err)
	}
	return nil
}

func (s *Store) checkRefs(trackID, sprintID *int64) error {
	if trackID != nil {
		if _, err := s.GetTrack(*trackID); err != nil {
			return err
		}
	}
	if sprintID != nil {
		if _, err := s.GetSprint(*sprintID); err != nil {
			return err
		}
	}
	return nil
}

func unknownField(kind entity.Kind, field string) error {
	return &entity.ValidationError{Field: field, Reason: fmt.Sprintf("not a %s field", kind)}
}

// queryParser reads typed values out of a Query and remembers the first error.
type queryParser struct {
	q     board.Query
	today entity.Date
	err   error
}

func (p *queryParser) id(key string) *int64 {
	v := strings.TrimSpace(p.q[key])
	if v == "" || p.err != nil {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		p.err = &entity.ValidationError{Field: key, Reason: fmt.Sprintf("%q is not a valid id", v)}
		return nil
	}
	return &id
}

func (p *queryParser) flag(key string) *bool {
	v := strings.TrimSpace(p.q[key])
	if v == "" || p.err != nil {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = &entity.ValidationError{Field: key, Reason: fmt.Sprintf("%q is not a boolean", v)}
		return nil
	}
	return &b
}

// day parses a date parameter; an empty "today" means the store clock's date.
func (p *queryParser) day(key string) entity.Date {
	v := strings.TrimSpace(p.q[key])
	if v == "" || p.err != nil {
		return p.today
	}
	d, err := entity.ParseDate(v)
	if err != nil {
		p.err = &entity.ValidationError{Field: key, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", v)}
	}
	return d
}

// done reports the first parse error or the first key outside allowed.
func (p *queryParser) done(allowed ...string) error {
	if p.err != nil {
		return p.err
	}
	for k := range p.q {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			return &entity.ValidationError{Field: k, Reason: "unsupported query parameter"}
		}
	}
	return nil
}
