package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/sadopc/sprintboard/internal/entity"
)

// Edit operations commit to the gateway first and then upsert the gateway's
// record locally. There is no optimistic step: new records need a gateway id.

// CreateTask persists a new task. An empty status defaults to TODO and an
// empty priority to MEDIUM.
func (b *Board) CreateTask(ctx context.Context, t entity.Task) (entity.Task, error) {
	if t.Status == "" {
		t.Status = entity.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = entity.PriorityMedium
	}
	t.ID = 0
	now := b.now()
	t = t.WithStatus(t.Status, now)
	if err := t.Validate(); err != nil {
		return entity.Task{}, err
	}
	if err := b.checkRefs(t.TrackID, t.SprintID); err != nil {
		return entity.Task{}, err
	}

	rec, err := b.gateway.Create(ctx, t)
	if err != nil {
		return entity.Task{}, &CommitError{Op: "create", Kind: entity.KindTask, Err: err}
	}
	created, ok := taskOf(rec)
	if !ok {
		return entity.Task{}, fmt.Errorf("create task: gateway returned %T", rec)
	}
	if err := b.store.Upsert(created); err != nil {
		return entity.Task{}, err
	}
	b.logger.Info("task created", "task", created.ID, "status", created.Status)
	return created, nil
}

var taskPatchFields = map[string]bool{
	"title": true, "description": true, "priority": true, "estimated_hours": true,
	"actual_hours": true, "due_date": true, "track_id": true, "sprint_id": true,
}

// UpdateTask edits task fields other than status; status only changes through moves.
func (b *Board) UpdateTask(ctx context.Context, id int64, patch Patch) (entity.Task, error) {
	current, err := b.store.Task(id)
	if err != nil {
		return entity.Task{}, err
	}
	if _, ok := patch["status"]; ok {
		return entity.Task{}, &entity.ValidationError{Field: "status", Reason: "status changes go through the board"}
	}
	next, err := applyTaskPatch(current, patch)
	if err != nil {
		return entity.Task{}, err
	}
	if err := b.checkRefs(next.TrackID, next.SprintID); err != nil {
		return entity.Task{}, err
	}

	rec, err := b.gateway.Update(ctx, entity.KindTask, id, patch)
	if err != nil {
		return entity.Task{}, &CommitError{Op: "update", Kind: entity.KindTask, ID: id, Err: err}
	}
	if t, ok := taskOf(rec); ok {
		next = t
	}
	// A move still in flight, or one that failed and was kept as unsynced,
	// keeps its optimistic status over the persisted one.
	_, unsynced := b.unsynced[id]
	if latest, err := b.store.Task(id); err == nil && (b.Pending(id) || unsynced) {
		next.Status, next.CompletedAt = latest.Status, latest.CompletedAt
	}
	if err := b.store.Upsert(next); err != nil {
		return entity.Task{}, err
	}
	return next, nil
}

func applyTaskPatch(t entity.Task, patch Patch) (entity.Task, error) {
	for field, v := range patch {
		if field == "status" {
			continue
		}
		if !taskPatchFields[field] {
			return entity.Task{}, &entity.ValidationError{Field: field, Reason: "unknown task field"}
		}
		var err error
		switch field {
		case "title":
			t.Title, err = PatchString(field, v)
		case "description":
			t.Description, err = PatchString(field, v)
		case "priority":
			t.Priority, err = PatchPriority(v)
		case "estimated_hours":
			t.EstimatedHours, err = PatchFloat(field, v)
		case "actual_hours":
			t.ActualHours, err = PatchFloat(field, v)
		case "due_date":
			t.DueDate, err = PatchDate(field, v)
		case "track_id":
			t.TrackID, err = PatchID(field, v)
		case "sprint_id":
			t.SprintID, err = PatchID(field, v)
		}
		if err != nil {
			return entity.Task{}, err
		}
	}
	return t, t.Validate()
}

// DeleteTask removes a task and drops an active drag of it.
func (b *Board) DeleteTask(ctx context.Context, id int64) error {
	if _, err := b.store.Task(id); err != nil {
		return err
	}
	if err := b.gateway.Delete(ctx, entity.KindTask, id); err != nil {
		return &CommitError{Op: "delete", Kind: entity.KindTask, ID: id, Err: err}
	}
	if dragged, ok := b.Dragging(); ok && dragged == id {
		b.dragging = nil
	}
	delete(b.pending, id)
	delete(b.unsynced, id)
	return b.store.Remove(entity.KindTask, id)
}

func (b *Board) CreateTrack(ctx context.Context, t entity.Track) (entity.Track, error) {
	t.ID = 0
	if err := t.Validate(); err != nil {
		return entity.Track{}, err
	}
	rec, err := b.gateway.Create(ctx, t)
	if err != nil {
		return entity.Track{}, &CommitError{Op: "create", Kind: entity.KindTrack, Err: err}
	}
	created, ok := rec.(entity.Track)
	if !ok {
		return entity.Track{}, fmt.Errorf("create track: gateway returned %T", rec)
	}
	if err := b.store.Upsert(created); err != nil {
		return entity.Track{}, err
	}
	b.logger.Info("track created", "track", created.ID)
	return created, nil
}

func (b *Board) UpdateTrack(ctx context.Context, id int64, patch Patch) (entity.Track, error) {
	current, err := b.store.Track(id)
	if err != nil {
		return entity.Track{}, err
	}
	next := current
	for field, v := range patch {
		switch field {
		case "title":
			next.Title, err = PatchString(field, v)
		case "description":
			next.Description, err = PatchString(field, v)
		case "category":
			next.Category, err = PatchString(field, v)
		case "deadline":
			next.Deadline, err = PatchDate(field, v)
		case "is_active":
			next.IsActive, err = PatchBool(field, v)
		default:
			err = &entity.ValidationError{Field: field, Reason: "unknown track field"}
		}
		if err != nil {
			return entity.Track{}, err
		}
	}
	if err := next.Validate(); err != nil {
		return entity.Track{}, err
	}
	rec, err := b.gateway.Update(ctx, entity.KindTrack, id, patch)
	if err != nil {
		return entity.Track{}, &CommitError{Op: "update", Kind: entity.KindTrack, ID: id, Err: err}
	}
	if t, ok := rec.(entity.Track); ok {
		next = t
	}
	return next, b.store.Upsert(next)
}

// DeleteTrack removes a track; its sprints and tasks are kept and detached.
func (b *Board) DeleteTrack(ctx context.Context, id int64) error {
	if _, err := b.store.Track(id); err != nil {
		return err
	}
	if err := b.gateway.Delete(ctx, entity.KindTrack, id); err != nil {
		return &CommitError{Op: "delete", Kind: entity.KindTrack, ID: id, Err: err}
	}
	return b.store.Remove(entity.KindTrack, id)
}

// CreateSprint persists a sprint. A missing end date defaults to the start date
// plus the configured sprint length. end <= start is only an error in strict mode.
func (b *Board) CreateSprint(ctx context.Context, s entity.Sprint) (entity.Sprint, error) {
	s.ID = 0
	if s.StartDate.IsZero() {
		s.StartDate = entity.DateOf(b.now())
	}
	if s.EndDate.IsZero() {
		s.EndDate = s.StartDate.AddDays(b.sprintLength)
	}
	if err := b.checkSprint(s); err != nil {
		return entity.Sprint{}, err
	}
	if err := b.checkRefs(s.TrackID, nil); err != nil {
		return entity.Sprint{}, err
	}
	rec, err := b.gateway.Create(ctx, s)
	if err != nil {
		return entity.Sprint{}, &CommitError{Op: "create", Kind: entity.KindSprint, Err: err}
	}
	created, ok := rec.(entity.Sprint)
	if !ok {
		return entity.Sprint{}, fmt.Errorf("create sprint: gateway returned %T", rec)
	}
	if err := b.store.Upsert(created); err != nil {
		return entity.Sprint{}, err
	}
	b.logger.Info("sprint created", "sprint", created.ID, "start", created.StartDate, "end", created.EndDate)
	return created, nil
}

func (b *Board) UpdateSprint(ctx context.Context, id int64, patch Patch) (entity.Sprint, error) {
	current, err := b.store.Sprint(id)
	if err != nil {
		return entity.Sprint{}, err
	}
	next := current
	for field, v := range patch {
		switch field {
		case "name":
			next.Name, err = PatchString(field, v)
		case "description":
			next.Description, err = PatchString(field, v)
		case "track_id":
			next.TrackID, err = PatchID(field, v)
		case "start_date", "end_date":
			var d *entity.Date
			if d, err = PatchDate(field, v); err == nil {
				if d == nil {
					err = &entity.ValidationError{Field: field, Reason: "sprint dates are required"}
				} else if field == "start_date" {
					next.StartDate = *d
				} else {
					next.EndDate = *d
				}
			}
		case "is_active":
			next.IsActive, err = PatchBool(field, v)
		default:
			err = &entity.ValidationError{Field: field, Reason: "unknown sprint field"}
		}
		if err != nil {
			return entity.Sprint{}, err
		}
	}
	if err := b.checkSprint(next); err != nil {
		return entity.Sprint{}, err
	}
	if err := b.checkRefs(next.TrackID, nil); err != nil {
		return entity.Sprint{}, err
	}
	rec, err := b.gateway.Update(ctx, entity.KindSprint, id, patch)
	if err != nil {
		return entity.Sprint{}, &CommitError{Op: "update", Kind: entity.KindSprint, ID: id, Err: err}
	}
	if s, ok := rec.(entity.Sprint); ok {
		next = s
	}
	return next, b.store.Upsert(next)
}

// DeleteSprint removes a sprint; its tasks are kept and detached.
func (b *Board) DeleteSprint(ctx context.Context, id int64) error {
	if _, err := b.store.Sprint(id); err != nil {
		return err
	}
	if err := b.gateway.Delete(ctx, entity.KindSprint, id); err != nil {
		return &CommitError{Op: "delete", Kind: entity.KindSprint, ID: id, Err: err}
	}
	return b.store.Remove(entity.KindSprint, id)
}

func (b *Board) checkSprint(s entity.Sprint) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !s.EndDate.After(s.StartDate) {
		if b.strictSprintDates {
			return &entity.ValidationError{Field: "end_date", Reason: fmt.Sprintf("%s is not after start date %s", s.EndDate, s.StartDate)}
		}
		b.logger.Warn("sprint ends before it starts", "sprint", s.Name, "start", s.StartDate, "end", s.EndDate)
	}
	return nil
}

func (b *Board) checkRefs(trackID, sprintID *int64) error {
	if trackID != nil {
		if _, err := b.store.Track(*trackID); err != nil {
			return err
		}
	}
	if sprintID != nil {
		if _, err := b.store.Sprint(*sprintID); err != nil {
			return err
		}
	}
	return nil
}

// Today returns the daily log for day, creating it when it does not exist yet.
func (b *Board) Today(ctx context.Context, day entity.Date) (entity.DailyLog, error) {
	if day.IsZero() {
		day = entity.DateOf(b.now())
	}
	if l, ok := b.store.DailyLogOn(day); ok {
		return l, nil
	}
	rec, err := b.gateway.Create(ctx, entity.DailyLog{Date: day})
	if err != nil {
		return entity.DailyLog{}, &CommitError{Op: "create", Kind: entity.KindDailyLog, Err: err}
	}
	created, ok := rec.(entity.DailyLog)
	if !ok {
		return entity.DailyLog{}, fmt.Errorf("create daily log: gateway returned %T", rec)
	}
	if err := b.store.Upsert(created); err != nil {
		return entity.DailyLog{}, err
	}
	return created, nil
}

// SaveDailyLog writes the editable fields of a log, creating the day's log first if needed.
func (b *Board) SaveDailyLog(ctx context.Context, l entity.DailyLog) (entity.DailyLog, error) {
	l.Habits = entity.NormalizeHabits(l.Habits)
	if err := l.Validate(); err != nil {
		return entity.DailyLog{}, err
	}
	existing, err := b.Today(ctx, l.Date)
	if err != nil {
		return entity.DailyLog{}, err
	}
	patch := Patch{
		"mood_score":       l.MoodScore,
		"energy_level":     l.EnergyLevel,
		"focus_hours":      l.FocusHours,
		"notes":            l.Notes,
		"habits_completed": l.Habits,
	}
	rec, err := b.gateway.Update(ctx, entity.KindDailyLog, existing.ID, patch)
	if err != nil {
		return entity.DailyLog{}, &CommitError{Op: "update", Kind: entity.KindDailyLog, ID: existing.ID, Err: err}
	}
	saved, ok := rec.(entity.DailyLog)
	if !ok {
		saved = existing
		saved.MoodScore, saved.EnergyLevel, saved.FocusHours = l.MoodScore, l.EnergyLevel, l.FocusHours
		saved.Notes, saved.Habits = l.Notes, l.Habits
	}
	if err := b.store.Upsert(saved); err != nil {
		return entity.DailyLog{}, err
	}
	return saved, nil
}

// ToggleHabit flips one habit on the log for day.
func (b *Board) ToggleHabit(ctx context.Context, day entity.Date, habit string) (entity.DailyLog, error) {
	habit = strings.TrimSpace(habit)
	if habit == "" {
		return entity.DailyLog{}, &entity.ValidationError{Field: "habit", Reason: "habit name is required"}
	}
	l, err := b.Today(ctx, day)
	if err != nil {
		return entity.DailyLog{}, err
	}
	return b.SaveDailyLog(ctx, l.ToggleHabit(habit))
}

// DefaultTodos seeds a day's checklist the first time TodayTodos sees it empty.
var DefaultTodos = []string{
	"Review daily goals",
	"Check task progress",
	"Update sprint status",
	"Plan tomorrow's priorities",
}

// TodayTodos returns the checklist for day, seeding DefaultTodos when the day
// has none yet. A zero day means today.
func (b *Board) TodayTodos(ctx context.Context, day entity.Date) ([]entity.DailyTodo, error) {
	if day.IsZero() {
		day = entity.DateOf(b.now())
	}
	if todos := b.store.TodosOn(day); len(todos) > 0 {
		return todos, nil
	}
	for _, title := range DefaultTodos {
		if _, err := b.AddTodo(ctx, day, title); err != nil {
			return nil, err
		}
	}
	b.logger.Debug("daily todos seeded", "date", day, "count", len(DefaultTodos))
	return b.store.TodosOn(day), nil
}

func (b *Board) AddTodo(ctx context.Context, day entity.Date, title string) (entity.DailyTodo, error) {
	if day.IsZero() {
		day = entity.DateOf(b.now())
	}
	d := entity.DailyTodo{Title: strings.TrimSpace(title), Date: day}
	if err := d.Validate(); err != nil {
		return entity.DailyTodo{}, err
	}
	rec, err := b.gateway.Create(ctx, d)
	if err != nil {
		return entity.DailyTodo{}, &CommitError{Op: "create", Kind: entity.KindDailyTodo, Err: err}
	}
	created, ok := rec.(entity.DailyTodo)
	if !ok {
		return entity.DailyTodo{}, fmt.Errorf("create daily todo: gateway returned %T", rec)
	}
	if err := b.store.Upsert(created); err != nil {
		return entity.DailyTodo{}, err
	}
	return created, nil
}

// ToggleTodo flips the completion of one checklist item.
func (b *Board) ToggleTodo(ctx context.Context, id int64) (entity.DailyTodo, error) {
	current, err := b.store.DailyTodo(id)
	if err != nil {
		return entity.DailyTodo{}, err
	}
	next := current
	next.IsCompleted = !current.IsCompleted
	rec, err := b.gateway.Update(ctx, entity.KindDailyTodo, id, Patch{"is_completed": next.IsCompleted})
	if err != nil {
		return entity.DailyTodo{}, &CommitError{Op: "update", Kind: entity.KindDailyTodo, ID: id, Err: err}
	}
	if d, ok := rec.(entity.DailyTodo); ok {
		next = d
	}
	return next, b.store.Upsert(next)
}

func (b *Board) DeleteTodo(ctx context.Context, id int64) error {
	if _, err := b.store.DailyTodo(id); err != nil {
		return err
	}
	if err := b.gateway.Delete(ctx, entity.KindDailyTodo, id); err != nil {
		return &CommitError{Op: "delete", Kind: entity.KindDailyTodo, ID: id, Err: err}
	}
	return b.store.Remove(entity.KindDailyTodo, id)
}

func taskOf(rec entity.Record) (entity.Task, bool) {
	switch t := rec.(type) {
	case entity.Task:
		return t, true
	case *entity.Task:
		if t != nil {
			return *t, true
		}
	}
	return entity.Task{}, false
}
