package entity

import (
	"fmt"
	"slices"
)

// collection keeps records keyed by id in insertion order.
type collection[T Record] struct {
	order []int64
	items map[int64]T
}

func newCollection[T Record]() *collection[T] {
	return &collection[T]{items: make(map[int64]T)}
}

func (c *collection[T]) put(rec T) {
	if _, ok := c.items[rec.Key()]; !ok {
		c.order = append(c.order, rec.Key())
	}
	c.items[rec.Key()] = rec
}

func (c *collection[T]) get(id int64) (T, bool) {
	rec, ok := c.items[id]
	return rec, ok
}

func (c *collection[T]) remove(id int64) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	c.order = slices.DeleteFunc(c.order, func(v int64) bool { return v == id })
	return true
}

func (c *collection[T]) all() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

func (c *collection[T]) reset() {
	c.order = nil
	c.items = make(map[int64]T)
}

// Store holds the canonical in-memory copies of every entity.
//
// Mutations are synchronous and immediately visible. A Store is not safe for
// concurrent mutation: it belongs to the single goroutine driving the board.
type Store struct {
	tracks  *collection[Track]
	sprints *collection[Sprint]
	tasks   *collection[Task]
	logs    *collection[DailyLog]
	todos   *collection[DailyTodo]
	version uint64
}

func NewStore() *Store {
	return &Store{
		tracks:  newCollection[Track](),
		sprints: newCollection[Sprint](),
		tasks:   newCollection[Task](),
		logs:    newCollection[DailyLog](),
		todos:   newCollection[DailyTodo](),
	}
}

// Version increases with every successful mutation.
func (s *Store) Version() uint64 { return s.version }

// Upsert inserts rec or replaces the record with the same kind and id in place.
func (s *Store) Upsert(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	switch r := rec.(type) {
	case Track:
		s.tracks.put(r)
	case *Track:
		s.tracks.put(*r)
	case Sprint:
		s.sprints.put(r)
	case *Sprint:
		s.sprints.put(*r)
	case Task:
		s.tasks.put(r)
	case *Task:
		s.tasks.put(*r)
	case DailyLog:
		return s.putLog(r)
	case *DailyLog:
		return s.putLog(*r)
	case DailyTodo:
		s.todos.put(r)
	case *DailyTodo:
		s.todos.put(*r)
	default:
		return fmt.Errorf("upsert: unsupported record type %T", rec)
	}
	s.version++
	return nil
}

func (s *Store) putLog(l DailyLog) error {
	if other, ok := s.DailyLogOn(l.Date); ok && other.ID != l.ID {
		return invalid("date", "a daily log for %s already exists", l.Date)
	}
	l.Habits = slices.Clone(l.Habits)
	s.logs.put(l)
	s.version++
	return nil
}

// Remove deletes a record. Removing a track detaches it from sprints and tasks;
// removing a sprint detaches it from tasks.
func (s *Store) Remove(kind Kind, id int64) error {
	var ok bool
	switch kind {
	case KindTrack:
		if ok = s.tracks.remove(id); ok {
			s.detachTrack(id)
		}
	case KindSprint:
		if ok = s.sprints.remove(id); ok {
			s.detachSprint(id)
		}
	case KindTask:
		ok = s.tasks.remove(id)
	case KindDailyLog:
		ok = s.logs.remove(id)
	case KindDailyTodo:
		ok = s.todos.remove(id)
	default:
		return invalid("kind", "unknown entity kind %q", kind)
	}
	if !ok {
		return &NotFoundError{Kind: kind, ID: id}
	}
	s.version++
	return nil
}

func (s *Store) detachTrack(id int64) {
	for _, sp := range s.sprints.all() {
		if sp.TrackID != nil && *sp.TrackID == id {
			sp.TrackID = nil
			s.sprints.put(sp)
		}
	}
	for _, t := range s.tasks.all() {
		if t.TrackID != nil && *t.TrackID == id {
			t.TrackID = nil
			s.tasks.put(t)
		}
	}
}

func (s *Store) detachSprint(id int64) {
	for _, t := range s.tasks.all() {
		if t.SprintID != nil && *t.SprintID == id {
			t.SprintID = nil
			s.tasks.put(t)
		}
	}
}

// Get returns the record of the given kind and id.
func (s *Store) Get(kind Kind, id int64) (Record, error) {
	var (
		rec Record
		ok  bool
	)
	switch kind {
	case KindTrack:
		rec, ok = s.tracks.get(id)
	case KindSprint:
		rec, ok = s.sprints.get(id)
	case KindTask:
		rec, ok = s.tasks.get(id)
	case KindDailyLog:
		var l DailyLog
		if l, ok = s.logs.get(id); ok {
			l.Habits = slices.Clone(l.Habits)
			rec = l
		}
	case KindDailyTodo:
		rec, ok = s.todos.get(id)
	default:
		return nil, invalid("kind", "unknown entity kind %q", kind)
	}
	if !ok {
		return nil, &NotFoundError{Kind: kind, ID: id}
	}
	return rec, nil
}

// All returns every record of kind in insertion order.
func (s *Store) All(kind Kind) []Record {
	var out []Record
	switch kind {
	case KindTrack:
		for _, r := range s.tracks.all() {
			out = append(out, r)
		}
	case KindSprint:
		for _, r := range s.sprints.all() {
			out = append(out, r)
		}
	case KindTask:
		for _, r := range s.tasks.all() {
			out = append(out, r)
		}
	case KindDailyLog:
		for _, r := range s.DailyLogs() {
			out = append(out, r)
		}
	case KindDailyTodo:
		for _, r := range s.todos.all() {
			out = append(out, r)
		}
	}
	return out
}

// Replace swaps the whole collection for kind. All records are validated first;
// on error the collection is left untouched.
func (s *Store) Replace(kind Kind, recs []Record) error {
	if !kind.Valid() {
		return invalid("kind", "unknown entity kind %q", kind)
	}
	for _, r := range recs {
		if r.Kind() != kind {
			return invalid("kind", "record of kind %q in %q collection", r.Kind(), kind)
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	fresh := NewStore()
	for _, r := range recs {
		if err := fresh.Upsert(r); err != nil {
			return err
		}
	}
	switch kind {
	case KindTrack:
		s.tracks = fresh.tracks
	case KindSprint:
		s.sprints = fresh.sprints
	case KindTask:
		s.tasks = fresh.tasks
	case KindDailyLog:
		s.logs = fresh.logs
	case KindDailyTodo:
		s.todos = fresh.todos
	}
	s.version++
	return nil
}

// Clear empties every collection.
func (s *Store) Clear() {
	s.tracks.reset()
	s.sprints.reset()
	s.tasks.reset()
	s.logs.reset()
	s.todos.reset()
	s.version++
}

func (s *Store) Tasks() []Task { return s.tasks.all() }

func (s *Store) Task(id int64) (Task, error) {
	t, ok := s.tasks.get(id)
	if !ok {
		return Task{}, &NotFoundError{Kind: KindTask, ID: id}
	}
	return t, nil
}

func (s *Store) Tracks() []Track { return s.tracks.all() }

func (s *Store) Track(id int64) (Track, error) {
	t, ok := s.tracks.get(id)
	if !ok {
		return Track{}, &NotFoundError{Kind: KindTrack, ID: id}
	}
	return t, nil
}

func (s *Store) Sprints() []Sprint { return s.sprints.all() }

func (s *Store) Sprint(id int64) (Sprint, error) {
	sp, ok := s.sprints.get(id)
	if !ok {
		return Sprint{}, &NotFoundError{Kind: KindSprint, ID: id}
	}
	return sp, nil
}

func (s *Store) DailyLogs() []DailyLog {
	logs := s.logs.all()
	for i := range logs {
		logs[i].Habits = slices.Clone(logs[i].Habits)
	}
	return logs
}

func (s *Store) DailyLog(id int64) (DailyLog, error) {
	l, ok := s.logs.get(id)
	if !ok {
		return DailyLog{}, &NotFoundError{Kind: KindDailyLog, ID: id}
	}
	l.Habits = slices.Clone(l.Habits)
	return l, nil
}

// DailyLogOn finds the log for a calendar day.
func (s *Store) DailyLogOn(d Date) (DailyLog, bool) {
	for _, l := range s.logs.all() {
		if l.Date.Equal(d) {
			l.Habits = slices.Clone(l.Habits)
			return l, true
		}
	}
	return DailyLog{}, false
}

func (s *Store) DailyTodos() []DailyTodo { return s.todos.all() }

func (s *Store) DailyTodo(id int64) (DailyTodo, error) {
	d, ok := s.todos.get(id)
	if !ok {
		return DailyTodo{}, &NotFoundError{Kind: KindDailyTodo, ID: id}
	}
	return d, nil
}

// TodosOn returns the checklist of one day in store order.
func (s *Store) TodosOn(day Date) []DailyTodo {
	var out []DailyTodo
	for _, d := range s.todos.all() {
		if d.Date.Equal(day) {
			out = append(out, d)
		}
	}
	return out
}

// TasksInTrack returns the tasks linked to a track in store order.
func (s *Store) TasksInTrack(trackID int64) []Task {
	var out []Task
	for _, t := range s.tasks.all() {
		if t.TrackID != nil && *t.TrackID == trackID {
			out = append(out, t)
		}
	}
	return out
}

// TasksInSprint returns the tasks linked to a sprint in store order.
func (s *Store) TasksInSprint(sprintID int64) []Task {
	var out []Task
	for _, t := range s.tasks.all() {
		if t.SprintID != nil && *t.SprintID == sprintID {
			out = append(out, t)
		}
	}
	return out
}
