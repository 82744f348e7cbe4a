// Package board owns the three-column task workflow: moves, drag and drop,
// optimistic updates and their reconciliation with the gateway.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/filter"
)

// FailurePolicy decides what happens to an optimistic status change whose commit fails.
type FailurePolicy int

const (
	// RevertOnFailure restores the last persisted status.
	RevertOnFailure FailurePolicy = iota
	// FlagOnFailure keeps the optimistic status and marks the task unsynced.
	FlagOnFailure
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "revert":
		return RevertOnFailure, nil
	case "flag":
		return FlagOnFailure, nil
	}
	return 0, &entity.ValidationError{Field: "on_commit_failure", Reason: fmt.Sprintf("%q is not one of revert, flag", s)}
}

func (p FailurePolicy) String() string {
	if p == FlagOnFailure {
		return "flag"
	}
	return "revert"
}

const defaultSprintLength = 14

// Board is the single writer of task status.
//
// All methods except Commit must be called from the goroutine that owns the
// entity store. Commit only talks to the gateway and may run elsewhere.
type Board struct {
	store   *entity.Store
	gateway Gateway
	logger  *slog.Logger
	policy  FailurePolicy
	now     func() time.Time

	sprintLength      int
	strictSprintDates bool

	dragging *int64
	session  string
	seq      uint64
	pending  map[int64]*tracked
	unsynced map[int64]error
}

// tracked follows the in-flight status commits of one task.
type tracked struct {
	latest       uint64
	latestFailed bool
	confirmed    entity.Task // last state known to be persisted
	inflight     int
}

// Mutation describes one optimistic status change awaiting its commit.
type Mutation struct {
	TaskID int64
	From   entity.Status
	To     entity.Status
	Seq    uint64
	Key    string
	At     time.Time
	Prev   entity.Task
}

type Option func(*Board)

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(b *Board) { b.policy = p }
}

// WithClock replaces time.Now for completion timestamps and default dates.
func WithClock(now func() time.Time) Option {
	return func(b *Board) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSprintLength sets the default sprint length in days used when a sprint has no end date.
func WithSprintLength(days int) Option {
	return func(b *Board) {
		if days > 0 {
			b.sprintLength = days
		}
	}
}

// WithStrictSprintDates rejects sprints whose end date is not after their start date.
func WithStrictSprintDates(strict bool) Option {
	return func(b *Board) { b.strictSprintDates = strict }
}

func New(store *entity.Store, gw Gateway, opts ...Option) *Board {
	b := &Board{
		store:        store,
		gateway:      gw,
		logger:       slog.New(slog.DiscardHandler),
		now:          time.Now,
		sprintLength: defaultSprintLength,
		session:      uuid.NewString(),
		pending:      make(map[int64]*tracked),
		unsynced:     make(map[int64]error),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Board) Store() *entity.Store { return b.store }

func (b *Board) Policy() FailurePolicy { return b.policy }

// SetSprintLength changes the default sprint length; non-positive values are ignored.
func (b *Board) SetSprintLength(days int) {
	if days > 0 {
		b.sprintLength = days
	}
}

func (b *Board) SprintLength() int { return b.sprintLength }

// Load replaces the store contents with the gateway's collections.
// Nothing changes unless every fetch succeeds.
func (b *Board) Load(ctx context.Context) error {
	fetched := make(map[entity.Kind][]entity.Record, len(entity.Kinds))
	for _, kind := range entity.Kinds {
		recs, err := b.gateway.Fetch(ctx, kind, nil)
		if err != nil {
			return fmt.Errorf("load %s: %w", kind, err)
		}
		for _, r := range recs {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("load %s %d: %w", kind, r.Key(), err)
			}
		}
		fetched[kind] = recs
	}
	for _, kind := range entity.Kinds {
		if err := b.store.Replace(kind, fetched[kind]); err != nil {
			return fmt.Errorf("load %s: %w", kind, err)
		}
	}

	clear(b.pending)
	clear(b.unsynced)
	if id, ok := b.Dragging(); ok {
		if _, err := b.store.Task(id); err != nil {
			b.dragging = nil
		}
	}
	b.logger.Debug("board loaded",
		"tracks", len(fetched[entity.KindTrack]),
		"sprints", len(fetched[entity.KindSprint]),
		"tasks", len(fetched[entity.KindTask]),
		"daily_logs", len(fetched[entity.KindDailyLog]),
		"daily_todos", len(fetched[entity.KindDailyTodo]))
	return nil
}

// Move applies an optimistic status change to the store. It returns nil when
// the task already has the target status; no commit is needed then.
func (b *Board) Move(id int64, to entity.Status) (*Mutation, error) {
	if !to.Valid() {
		return nil, &entity.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not one of TODO, IN_PROGRESS, DONE", to)}
	}
	current, err := b.store.Task(id)
	if err != nil {
		return nil, err
	}
	if current.Status == to {
		return nil, nil
	}

	at := b.now()
	moved := current.WithStatus(to, at)
	moved.UpdatedAt = at
	if err := b.store.Upsert(moved); err != nil {
		return nil, err
	}

	b.seq++
	st, ok := b.pending[id]
	if !ok {
		st = &tracked{confirmed: current}
		b.pending[id] = st
	}
	st.latest = b.seq
	st.latestFailed = false
	st.inflight++

	m := &Mutation{
		TaskID: id,
		From:   current.Status,
		To:     to,
		Seq:    b.seq,
		Key:    uuid.NewString(),
		At:     at,
		Prev:   current,
	}
	b.logger.Debug("task moved", "task", id, "from", m.From, "to", m.To, "seq", m.Seq)
	return m, nil
}

// Commit sends a mutation to the gateway once. It does not touch the store.
// The call carries the mutation's key and its place among this board's moves,
// so a gateway can drop a replay or a move that a later one overtook.
func (b *Board) Commit(ctx context.Context, m *Mutation) (entity.Record, error) {
	ctx = WithIdempotencyKey(ctx, m.Key)
	ctx = WithCommitOrder(ctx, CommitOrder{Session: b.session, Seq: m.Seq})
	return b.gateway.Update(ctx, entity.KindTask, m.TaskID, Patch{"status": m.To})
}

// Reconcile folds a commit result back into the store. A failed commit is
// always returned as a *CommitError; what happens to the optimistic status
// depends on the failure policy. Responses to superseded mutations never
// overwrite newer local state.
func (b *Board) Reconcile(m *Mutation, rec entity.Record, err error) error {
	var cerr error
	if err != nil {
		cerr = &CommitError{Op: "move", Kind: entity.KindTask, ID: m.TaskID, Err: err}
	}

	st, ok := b.pending[m.TaskID]
	if !ok {
		if cerr != nil {
			b.logger.Warn("commit failed for untracked task", "task", m.TaskID, "err", err)
		}
		return cerr
	}
	st.inflight--
	defer func() {
		if st.inflight <= 0 {
			delete(b.pending, m.TaskID)
		}
	}()

	if err == nil {
		if t, ok := taskOf(rec); ok {
			st.confirmed = t
		} else {
			st.confirmed = st.confirmed.WithStatus(m.To, m.At)
		}
	}

	newest := m.Seq == st.latest
	switch {
	case newest && err == nil:
		delete(b.unsynced, m.TaskID)
		if t, ok := taskOf(rec); ok {
			if uerr := b.store.Upsert(t); uerr != nil {
				b.logger.Warn("discarding invalid commit response", "task", m.TaskID, "err", uerr)
			}
		}
	case newest:
		st.latestFailed = true
		if b.policy == RevertOnFailure {
			b.restore(m.TaskID, st.confirmed)
			b.logger.Warn("move reverted", "task", m.TaskID, "to", st.confirmed.Status, "err", err)
		} else {
			b.unsynced[m.TaskID] = cerr
			b.logger.Warn("move not saved", "task", m.TaskID, "status", m.To, "err", err)
		}
	case err == nil && st.latestFailed && b.policy == RevertOnFailure:
		// The newest move already failed and was reverted; this older one did land.
		b.restore(m.TaskID, st.confirmed)
	default:
		b.logger.Debug("ignoring superseded commit result", "task", m.TaskID, "seq", m.Seq, "latest", st.latest)
	}
	return cerr
}

func (b *Board) restore(id int64, confirmed entity.Task) {
	current, err := b.store.Task(id)
	if err != nil {
		return
	}
	current.Status = confirmed.Status
	current.CompletedAt = confirmed.CompletedAt
	if err := b.store.Upsert(current); err != nil {
		b.logger.Warn("restore failed", "task", id, "err", err)
	}
}

// MoveTask moves a task and commits the change synchronously.
func (b *Board) MoveTask(ctx context.Context, id int64, to entity.Status) error {
	m, err := b.Move(id, to)
	if err != nil || m == nil {
		return err
	}
	rec, cerr := b.Commit(ctx, m)
	return b.Reconcile(m, rec, cerr)
}

// Cycle advances a task one step along TODO -> IN_PROGRESS -> DONE -> TODO.
func (b *Board) Cycle(id int64) (*Mutation, error) {
	current, err := b.store.Task(id)
	if err != nil {
		return nil, err
	}
	return b.Move(id, current.Status.Next())
}

func (b *Board) CycleStatus(ctx context.Context, id int64) error {
	m, err := b.Cycle(id)
	if err != nil || m == nil {
		return err
	}
	rec, cerr := b.Commit(ctx, m)
	return b.Reconcile(m, rec, cerr)
}

// BeginDrag records the dragged task, replacing any earlier drag.
func (b *Board) BeginDrag(id int64) error {
	if _, err := b.store.Task(id); err != nil {
		return err
	}
	b.dragging = &id
	return nil
}

func (b *Board) Dragging() (int64, bool) {
	if b.dragging == nil {
		return 0, false
	}
	return *b.dragging, true
}

func (b *Board) CancelDrag() { b.dragging = nil }

// DropOnColumn ends the active drag on the target column. It is a no-op when
// nothing is being dragged or the task is already in that column.
func (b *Board) DropOnColumn(to entity.Status) (*Mutation, error) {
	if !to.Valid() {
		return nil, &entity.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not one of TODO, IN_PROGRESS, DONE", to)}
	}
	id, ok := b.Dragging()
	if !ok {
		return nil, nil
	}
	b.dragging = nil
	return b.Move(id, to)
}

// Drop is DropOnColumn followed by a synchronous commit.
func (b *Board) Drop(ctx context.Context, to entity.Status) error {
	m, err := b.DropOnColumn(to)
	if err != nil || m == nil {
		return err
	}
	rec, cerr := b.Commit(ctx, m)
	return b.Reconcile(m, rec, cerr)
}

// Unsynced reports the commit error of a task whose optimistic status was kept.
func (b *Board) Unsynced(id int64) (error, bool) {
	err, ok := b.unsynced[id]
	return err, ok
}

func (b *Board) UnsyncedIDs() []int64 {
	ids := make([]int64, 0, len(b.unsynced))
	for _, t := range b.store.Tasks() {
		if _, ok := b.unsynced[t.ID]; ok {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Pending reports whether a task has status commits in flight.
func (b *Board) Pending(id int64) bool {
	_, ok := b.pending[id]
	return ok
}

// Columns holds the filtered tasks of each workflow column in store order.
type Columns struct {
	Todo       []entity.Task
	InProgress []entity.Task
	Done       []entity.Task
}

func (c Columns) Column(s entity.Status) []entity.Task {
	switch s {
	case entity.StatusTodo:
		return c.Todo
	case entity.StatusInProgress:
		return c.InProgress
	case entity.StatusDone:
		return c.Done
	}
	return nil
}

func (c Columns) Len() int { return len(c.Todo) + len(c.InProgress) + len(c.Done) }

// Columns applies spec to the store's tasks and splits the result by status.
func (b *Board) Columns(spec filter.Spec) (Columns, error) {
	tasks, err := filter.Apply(b.store.Tasks(), spec)
	if err != nil {
		return Columns{}, err
	}
	var cols Columns
	for _, t := range tasks {
		switch t.Status {
		case entity.StatusTodo:
			cols.Todo = append(cols.Todo, t)
		case entity.StatusInProgress:
			cols.InProgress = append(cols.InProgress, t)
		case entity.StatusDone:
			cols.Done = append(cols.Done, t)
		}
	}
	return cols, nil
}
