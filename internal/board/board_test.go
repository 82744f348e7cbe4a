package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/filter"
)

var testNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

// fakeGateway keeps records in memory and counts calls.
type fakeGateway struct {
	records   map[entity.Kind][]entity.Record
	nextID    int64
	creates   int
	updates   int
	deletes   int
	keys      []string
	orders    []CommitOrder
	failWrite error
	failFetch map[entity.Kind]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{records: make(map[entity.Kind][]entity.Record), nextID: 100, failFetch: make(map[entity.Kind]error)}
}

func (g *fakeGateway) Fetch(_ context.Context, kind entity.Kind, _ Query) ([]entity.Record, error) {
	if err := g.failFetch[kind]; err != nil {
		return nil, err
	}
	return append([]entity.Record(nil), g.records[kind]...), nil
}

func (g *fakeGateway) Create(_ context.Context, rec entity.Record) (entity.Record, error) {
	g.creates++
	if g.failWrite != nil {
		return nil, g.failWrite
	}
	g.nextID++
	var out entity.Record
	switch r := rec.(type) {
	case entity.Task:
		r.ID, r.CreatedAt, r.UpdatedAt = g.nextID, testNow, testNow
		out = r
	case entity.Track:
		r.ID, r.CreatedAt = g.nextID, testNow
		out = r
	case entity.Sprint:
		r.ID, r.CreatedAt = g.nextID, testNow
		out = r
	case entity.DailyLog:
		r.ID, r.CreatedAt = g.nextID, testNow
		out = r
	case entity.DailyTodo:
		r.ID, r.CreatedAt = g.nextID, testNow
		out = r
	default:
		return nil, errors.New("unsupported record")
	}
	g.records[out.Kind()] = append(g.records[out.Kind()], out)
	return out, nil
}

func (g *fakeGateway) Update(ctx context.Context, kind entity.Kind, id int64, patch Patch) (entity.Record, error) {
	g.updates++
	if key, ok := IdempotencyKey(ctx); ok {
		g.keys = append(g.keys, key)
	}
	if o, ok := CommitOrderFrom(ctx); ok {
		g.orders = append(g.orders, o)
	}
	if g.failWrite != nil {
		return nil, g.failWrite
	}
	if kind != entity.KindTask {
		return nil, nil
	}
	for i, r := range g.records[kind] {
		t := r.(entity.Task)
		if t.ID != id {
			continue
		}
		if s, ok := patch["status"].(entity.Status); ok {
			t = t.WithStatus(s, testNow)
		}
		t, err := applyTaskPatch(t, patch)
		if err != nil {
			return nil, err
		}
		g.records[kind][i] = t
		return t, nil
	}
	return nil, &entity.NotFoundError{Kind: kind, ID: id}
}

func (g *fakeGateway) Delete(_ context.Context, kind entity.Kind, id int64) error {
	g.deletes++
	if g.failWrite != nil {
		return g.failWrite
	}
	recs := g.records[kind]
	for i, r := range recs {
		if r.Key() == id {
			g.records[kind] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return &entity.NotFoundError{Kind: kind, ID: id}
}

func newTestBoard(t *testing.T, opts ...Option) (*Board, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	gw.records[entity.KindTrack] = []entity.Record{
		entity.Track{ID: 1, Title: "Backend", IsActive: true},
	}
	gw.records[entity.KindSprint] = []entity.Record{
		entity.Sprint{ID: 1, Name: "Sprint 1", TrackID: entity.Int64Ptr(1),
			StartDate: entity.MustParseDate("2024-01-01"), EndDate: entity.MustParseDate("2024-01-15")},
	}
	gw.records[entity.KindTask] = []entity.Record{
		entity.Task{ID: 1, Title: "Write API", Status: entity.StatusTodo, Priority: entity.PriorityHigh, TrackID: entity.Int64Ptr(1), SprintID: entity.Int64Ptr(1)},
		entity.Task{ID: 2, Title: "Write docs", Status: entity.StatusTodo, Priority: entity.PriorityLow, TrackID: entity.Int64Ptr(1)},
		entity.Task{ID: 3, Title: "Deploy", Status: entity.StatusInProgress, Priority: entity.PriorityMedium},
	}

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	b := New(entity.NewStore(), gw, opts...)
	require.NoError(t, b.Load(context.Background()))
	return b, gw
}

func status(t *testing.T, b *Board, id int64) entity.Status {
	t.Helper()
	task, err := b.Store().Task(id)
	require.NoError(t, err)
	return task.Status
}

// ==================== Moves ====================

func TestMoveToSameStatusIsNoop(t *testing.T) {
	b, gw := newTestBoard(t)
	version := b.Store().Version()

	m, err := b.Move(1, entity.StatusTodo)
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, b.MoveTask(context.Background(), 1, entity.StatusTodo))
	assert.Equal(t, 0, gw.updates)
	assert.Equal(t, version, b.Store().Version())
}

func TestCycleThreeTimesReturnsToTodo(t *testing.T) {
	b, gw := newTestBoard(t)
	ctx := context.Background()

	require.NoError(t, b.CycleStatus(ctx, 1))
	assert.Equal(t, entity.StatusInProgress, status(t, b, 1))
	require.NoError(t, b.CycleStatus(ctx, 1))
	assert.Equal(t, entity.StatusDone, status(t, b, 1))
	task, _ := b.Store().Task(1)
	require.NotNil(t, task.CompletedAt)

	require.NoError(t, b.CycleStatus(ctx, 1))
	assert.Equal(t, entity.StatusTodo, status(t, b, 1))
	task, _ = b.Store().Task(1)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, 3, gw.updates)
	assert.False(t, b.Pending(1))
}

func TestMoveErrors(t *testing.T) {
	b, gw := newTestBoard(t)

	_, err := b.Move(99, entity.StatusDone)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	var nf *entity.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(99), nf.ID)

	_, err = b.Move(1, "BLOCKED")
	assert.ErrorIs(t, err, entity.ErrInvalid)
	assert.Equal(t, entity.StatusTodo, status(t, b, 1))

	_, err = b.Cycle(99)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Equal(t, 0, gw.updates)
}

func TestCommitCarriesIdempotencyKey(t *testing.T) {
	b, gw := newTestBoard(t)
	m, err := b.Move(1, entity.StatusDone)
	require.NoError(t, err)
	require.NotEmpty(t, m.Key)

	rec, cerr := b.Commit(context.Background(), m)
	require.NoError(t, b.Reconcile(m, rec, cerr))
	assert.Equal(t, []string{m.Key}, gw.keys)
}

func TestCommitCarriesOrder(t *testing.T) {
	b, gw := newTestBoard(t)
	ctx := context.Background()
	m1, err := b.Move(1, entity.StatusInProgress)
	require.NoError(t, err)
	m2, err := b.Move(1, entity.StatusDone)
	require.NoError(t, err)

	rec2, err2 := b.Commit(ctx, m2)
	rec1, err1 := b.Commit(ctx, m1)
	require.NoError(t, b.Reconcile(m2, rec2, err2))
	require.NoError(t, b.Reconcile(m1, rec1, err1))

	require.Len(t, gw.orders, 2)
	assert.Equal(t, gw.orders[0].Session, gw.orders[1].Session)
	assert.Equal(t, m2.Seq, gw.orders[0].Seq)
	assert.Equal(t, m1.Seq, gw.orders[1].Seq)
	assert.Less(t, m1.Seq, m2.Seq)

	other, _ := newTestBoard(t)
	assert.NotEqual(t, b.session, other.session)
}

// ==================== Drag and drop ====================

func TestDragTodoToDoneIsOptimistic(t *testing.T) {
	b, gw := newTestBoard(t)

	require.NoError(t, b.BeginDrag(1))
	id, ok := b.Dragging()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	m, err := b.DropOnColumn(entity.StatusDone)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, entity.StatusTodo, m.From)

	// Visible before the gateway has been called.
	assert.Equal(t, entity.StatusDone, status(t, b, 1))
	assert.Equal(t, 0, gw.updates)
	assert.True(t, b.Pending(1))
	_, dragging := b.Dragging()
	assert.False(t, dragging)

	rec, cerr := b.Commit(context.Background(), m)
	require.NoError(t, b.Reconcile(m, rec, cerr))
	assert.Equal(t, entity.StatusDone, status(t, b, 1))
	assert.Equal(t, 1, gw.updates)
	assert.False(t, b.Pending(1))
}

func TestRejectedCommitRevertsByDefault(t *testing.T) {
	b, gw := newTestBoard(t)
	gw.failWrite = errors.New("server said no")

	require.NoError(t, b.BeginDrag(1))
	err := b.Drop(context.Background(), entity.StatusDone)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitFailed)
	var ce *CommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.ID)
	assert.Contains(t, err.Error(), "server said no")

	task, _ := b.Store().Task(1)
	assert.Equal(t, entity.StatusTodo, task.Status)
	assert.Nil(t, task.CompletedAt)
	_, unsynced := b.Unsynced(1)
	assert.False(t, unsynced)
}

func TestRejectedCommitFlagPolicyKeepsStatus(t *testing.T) {
	b, gw := newTestBoard(t, WithFailurePolicy(FlagOnFailure))
	gw.failWrite = errors.New("offline")

	err := b.MoveTask(context.Background(), 1, entity.StatusDone)
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.Equal(t, entity.StatusDone, status(t, b, 1))

	uerr, ok := b.Unsynced(1)
	require.True(t, ok)
	assert.ErrorIs(t, uerr, ErrCommitFailed)
	assert.Equal(t, []int64{1}, b.UnsyncedIDs())

	gw.failWrite = nil
	require.NoError(t, b.MoveTask(context.Background(), 1, entity.StatusInProgress))
	_, ok = b.Unsynced(1)
	assert.False(t, ok)
	assert.Empty(t, b.UnsyncedIDs())
}

func TestSecondBeginDragReplacesFirst(t *testing.T) {
	b, _ := newTestBoard(t)
	require.NoError(t, b.BeginDrag(1))
	require.NoError(t, b.BeginDrag(2))

	require.NoError(t, b.Drop(context.Background(), entity.StatusDone))
	assert.Equal(t, entity.StatusTodo, status(t, b, 1))
	assert.Equal(t, entity.StatusDone, status(t, b, 2))
}

func TestDropWithoutDragIsNoop(t *testing.T) {
	b, gw := newTestBoard(t)

	m, err := b.DropOnColumn(entity.StatusDone)
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, b.BeginDrag(1))
	b.CancelDrag()
	m, err = b.DropOnColumn(entity.StatusDone)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, entity.StatusTodo, status(t, b, 1))
	assert.Equal(t, 0, gw.updates)
}

func TestDropOnSameColumnEndsDrag(t *testing.T) {
	b, gw := newTestBoard(t)
	require.NoError(t, b.BeginDrag(3))
	m, err := b.DropOnColumn(entity.StatusInProgress)
	require.NoError(t, err)
	assert.Nil(t, m)
	_, dragging := b.Dragging()
	assert.False(t, dragging)
	assert.Equal(t, 0, gw.updates)
}

func TestDragErrors(t *testing.T) {
	b, _ := newTestBoard(t)
	assert.ErrorIs(t, b.BeginDrag(42), entity.ErrNotFound)

	require.NoError(t, b.BeginDrag(1))
	_, err := b.DropOnColumn("ARCHIVED")
	assert.ErrorIs(t, err, entity.ErrInvalid)
	// An invalid target does not end the drag.
	_, dragging := b.Dragging()
	assert.True(t, dragging)
}

// ==================== Out-of-order responses ====================

func TestStaleSuccessDoesNotOverwriteNewerMove(t *testing.T) {
	b, gw := newTestBoard(t)
	ctx := context.Background()

	m1, err := b.Move(1, entity.StatusInProgress)
	require.NoError(t, err)
	m2, err := b.Move(1, entity.StatusDone)
	require.NoError(t, err)
	require.Greater(t, m2.Seq, m1.Seq)

	rec2, err2 := b.Commit(ctx, m2)
	require.NoError(t, b.Reconcile(m2, rec2, err2))

	// The older response arrives last and carries the older status.
	stale := entity.Task{ID: 1, Title: "Write API", Status: entity.StatusInProgress, Priority: entity.PriorityHigh}
	require.NoError(t, b.Reconcile(m1, stale, nil))

	assert.Equal(t, entity.StatusDone, status(t, b, 1))
	assert.False(t, b.Pending(1))
	assert.Equal(t, 1, gw.updates)
}

func TestStaleFailureIsIgnored(t *testing.T) {
	b, _ := newTestBoard(t)

	m1, _ := b.Move(1, entity.StatusInProgress)
	m2, _ := b.Move(1, entity.StatusDone)

	err := b.Reconcile(m1, nil, errors.New("timeout"))
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.Equal(t, entity.StatusDone, status(t, b, 1))

	done := entity.Task{ID: 1, Title: "Write API", Status: entity.StatusDone, Priority: entity.PriorityHigh, CompletedAt: &testNow}
	require.NoError(t, b.Reconcile(m2, done, nil))
	assert.Equal(t, entity.StatusDone, status(t, b, 1))
	_, unsynced := b.Unsynced(1)
	assert.False(t, unsynced)
}

func TestNewestFailureRevertsToLastConfirmed(t *testing.T) {
	b, _ := newTestBoard(t)

	m1, _ := b.Move(1, entity.StatusInProgress)
	m2, _ := b.Move(1, entity.StatusDone)

	require.Error(t, b.Reconcile(m2, nil, errors.New("rejected")))
	assert.Equal(t, entity.StatusTodo, status(t, b, 1))

	// The older move did persist; the board follows the persisted state.
	require.NoError(t, b.Reconcile(m1, nil, nil))
	assert.Equal(t, entity.StatusInProgress, status(t, b, 1))
	assert.False(t, b.Pending(1))
}

// ==================== Load and columns ====================

func TestLoadIsAllOrNothing(t *testing.T) {
	b, gw := newTestBoard(t)
	gw.records[entity.KindTask] = nil
	gw.failFetch[entity.KindDailyLog] = errors.New("db locked")

	err := b.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_log")
	assert.Len(t, b.Store().Tasks(), 3)
}

func TestLoadRejectsInvalidRecords(t *testing.T) {
	b, gw := newTestBoard(t)
	gw.records[entity.KindTask] = append(gw.records[entity.KindTask], entity.Task{ID: 9, Title: "", Status: entity.StatusTodo, Priority: entity.PriorityLow})

	err := b.Load(context.Background())
	assert.ErrorIs(t, err, entity.ErrInvalid)
	assert.Len(t, b.Store().Tasks(), 3)
}

func TestLoadDropsDragOfVanishedTask(t *testing.T) {
	b, gw := newTestBoard(t)
	require.NoError(t, b.BeginDrag(2))
	gw.records[entity.KindTask] = gw.records[entity.KindTask][:1]

	require.NoError(t, b.Load(context.Background()))
	_, dragging := b.Dragging()
	assert.False(t, dragging)
}

func TestColumns(t *testing.T) {
	b, _ := newTestBoard(t)

	cols, err := b.Columns(filter.Spec{})
	require.NoError(t, err)
	assert.Len(t, cols.Todo, 2)
	assert.Len(t, cols.InProgress, 1)
	assert.Empty(t, cols.Done)
	assert.Equal(t, 3, cols.Len())
	assert.Equal(t, cols.Todo, cols.Column(entity.StatusTodo))

	cols, err = b.Columns(filter.Spec{SearchText: "write", TrackID: entity.Int64Ptr(1)})
	require.NoError(t, err)
	require.Len(t, cols.Todo, 2)
	assert.Equal(t, int64(1), cols.Todo[0].ID)
	assert.Equal(t, int64(2), cols.Todo[1].ID)

	_, err = b.Columns(filter.Spec{Priority: "NOPE"})
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, RevertOnFailure, p)
	p, err = ParseFailurePolicy("flag")
	require.NoError(t, err)
	assert.Equal(t, "flag", p.String())
	_, err = ParseFailurePolicy("ignore")
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

// ==================== Edits ====================

func TestCreateTaskDefaults(t *testing.T) {
	b, gw := newTestBoard(t)

	task, err := b.CreateTask(context.Background(), entity.Task{Title: "New thing"})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, entity.StatusTodo, task.Status)
	assert.Equal(t, entity.PriorityMedium, task.Priority)
	assert.Equal(t, 1, gw.creates)

	got, err := b.Store().Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "New thing", got.Title)
	assert.Len(t, b.Store().Tasks(), 4)
}

func TestCreateTaskDoneSetsCompletedAt(t *testing.T) {
	b, _ := newTestBoard(t)
	task, err := b.CreateTask(context.Background(), entity.Task{Title: "Already done", Status: entity.StatusDone})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, testNow, *task.CompletedAt)
}

func TestCreateTaskValidation(t *testing.T) {
	b, gw := newTestBoard(t)
	_, err := b.CreateTask(context.Background(), entity.Task{Title: "  "})
	assert.ErrorIs(t, err, entity.ErrInvalid)

	_, err = b.CreateTask(context.Background(), entity.Task{Title: "x", TrackID: entity.Int64Ptr(77)})
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Equal(t, 0, gw.creates)

	gw.failWrite = errors.New("disk full")
	_, err = b.CreateTask(context.Background(), entity.Task{Title: "x"})
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.Len(t, b.Store().Tasks(), 3)
}

func TestUpdateTask(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()

	task, err := b.UpdateTask(ctx, 2, Patch{"title": "Write better docs", "due_date": "2024-02-01", "estimated_hours": 3.5})
	require.NoError(t, err)
	assert.Equal(t, "Write better docs", task.Title)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2024-02-01", task.DueDate.String())

	stored, _ := b.Store().Task(2)
	assert.Equal(t, "Write better docs", stored.Title)
	require.NotNil(t, stored.EstimatedHours)
	assert.Equal(t, 3.5, *stored.EstimatedHours)

	_, err = b.UpdateTask(ctx, 2, Patch{"status": entity.StatusDone})
	assert.ErrorIs(t, err, entity.ErrInvalid)
	assert.Equal(t, entity.StatusTodo, status(t, b, 2))

	_, err = b.UpdateTask(ctx, 2, Patch{"colour": "red"})
	assert.ErrorIs(t, err, entity.ErrInvalid)

	_, err = b.UpdateTask(ctx, 404, Patch{"title": "x"})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	task, err = b.UpdateTask(ctx, 2, Patch{"actual_hours": int64(2)})
	require.NoError(t, err)
	require.NotNil(t, task.ActualHours)
	assert.Equal(t, 2.0, *task.ActualHours)

	_, err = b.UpdateTask(ctx, 2, Patch{"actual_hours": -1.0})
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

func TestUpdateTaskKeepsUnsyncedStatus(t *testing.T) {
	b, gw := newTestBoard(t, WithFailurePolicy(FlagOnFailure))
	ctx := context.Background()
	gw.failWrite = errors.New("offline")
	require.Error(t, b.MoveTask(ctx, 1, entity.StatusDone))
	require.False(t, b.Pending(1))

	gw.failWrite = nil
	task, err := b.UpdateTask(ctx, 1, Patch{"title": "Write the API"})
	require.NoError(t, err)
	assert.Equal(t, "Write the API", task.Title)
	assert.Equal(t, entity.StatusDone, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.Equal(t, entity.StatusDone, status(t, b, 1))
	_, unsynced := b.Unsynced(1)
	assert.True(t, unsynced)
}

func TestDeleteTaskClearsDrag(t *testing.T) {
	b, gw := newTestBoard(t)
	require.NoError(t, b.BeginDrag(2))

	require.NoError(t, b.DeleteTask(context.Background(), 2))
	_, dragging := b.Dragging()
	assert.False(t, dragging)
	_, err := b.Store().Task(2)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Equal(t, 1, gw.deletes)
}

func TestDeleteTrackDetachesChildren(t *testing.T) {
	b, _ := newTestBoard(t)
	require.NoError(t, b.DeleteTrack(context.Background(), 1))

	task, _ := b.Store().Task(1)
	assert.Nil(t, task.TrackID)
	require.NotNil(t, task.SprintID)
	sprint, err := b.Store().Sprint(1)
	require.NoError(t, err)
	assert.Nil(t, sprint.TrackID)
}

func TestDeleteSprintDetachesTasks(t *testing.T) {
	b, _ := newTestBoard(t)
	require.NoError(t, b.DeleteSprint(context.Background(), 1))
	task, _ := b.Store().Task(1)
	assert.Nil(t, task.SprintID)
	assert.NotNil(t, task.TrackID)
}

func TestCreateTrackAndUpdate(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()

	tr, err := b.CreateTrack(ctx, entity.Track{Title: "Frontend", Category: "web", IsActive: true})
	require.NoError(t, err)
	assert.Len(t, b.Store().Tracks(), 2)

	tr, err = b.UpdateTrack(ctx, tr.ID, Patch{"is_active": false, "deadline": "2024-06-30"})
	require.NoError(t, err)
	assert.False(t, tr.IsActive)
	require.NotNil(t, tr.Deadline)

	_, err = b.UpdateTrack(ctx, tr.ID, Patch{"title": ""})
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

func TestCreateSprintDefaultLength(t *testing.T) {
	b, _ := newTestBoard(t)
	s, err := b.CreateSprint(context.Background(), entity.Sprint{Name: "Sprint 2", StartDate: entity.MustParseDate("2024-01-15")})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-29", s.EndDate.String())

	b2, _ := newTestBoard(t, WithSprintLength(7))
	s, err = b2.CreateSprint(context.Background(), entity.Sprint{Name: "Short"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", s.StartDate.String())
	assert.Equal(t, "2024-01-17", s.EndDate.String())

	b2.SetSprintLength(0)
	assert.Equal(t, 7, b2.SprintLength())
	b2.SetSprintLength(3)
	s, err = b2.CreateSprint(context.Background(), entity.Sprint{Name: "Tiny"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-13", s.EndDate.String())
}

func TestSprintDateOrdering(t *testing.T) {
	backwards := entity.Sprint{Name: "Backwards", StartDate: entity.MustParseDate("2024-02-01"), EndDate: entity.MustParseDate("2024-01-01")}

	lenient, _ := newTestBoard(t)
	_, err := lenient.CreateSprint(context.Background(), backwards)
	assert.NoError(t, err)

	strict, gw := newTestBoard(t, WithStrictSprintDates(true))
	_, err = strict.CreateSprint(context.Background(), backwards)
	assert.ErrorIs(t, err, entity.ErrInvalid)
	assert.Equal(t, 0, gw.creates)

	_, err = strict.UpdateSprint(context.Background(), 1, Patch{"end_date": "2023-12-31"})
	assert.ErrorIs(t, err, entity.ErrInvalid)

	s, err := strict.UpdateSprint(context.Background(), 1, Patch{"name": "Renamed", "end_date": "2024-01-20"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", s.Name)
	assert.Equal(t, "2024-01-20", s.EndDate.String())
}

func TestTodayGetOrCreate(t *testing.T) {
	b, gw := newTestBoard(t)
	ctx := context.Background()
	day := entity.MustParseDate("2024-01-10")

	l, err := b.Today(ctx, day)
	require.NoError(t, err)
	again, err := b.Today(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, l.ID, again.ID)
	assert.Equal(t, 1, gw.creates)
	assert.Len(t, b.Store().DailyLogs(), 1)
}

func TestToggleHabitAndSaveDailyLog(t *testing.T) {
	b, _ := newTestBoard(t)
	ctx := context.Background()
	day := entity.MustParseDate("2024-01-10")

	l, err := b.ToggleHabit(ctx, day, "Reading")
	require.NoError(t, err)
	assert.Equal(t, []string{"Reading"}, l.Habits)

	l, err = b.ToggleHabit(ctx, day, "Reading")
	require.NoError(t, err)
	assert.Empty(t, l.Habits)

	_, err = b.ToggleHabit(ctx, day, " ")
	assert.ErrorIs(t, err, entity.ErrInvalid)

	l.MoodScore = entity.IntPtr(8)
	l.FocusHours = entity.Float64Ptr(4.5)
	l.Habits = []string{"Coding", " Coding ", "Exercise"}
	saved, err := b.SaveDailyLog(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coding", "Exercise"}, saved.Habits)

	stored, ok := b.Store().DailyLogOn(day)
	require.True(t, ok)
	require.NotNil(t, stored.MoodScore)
	assert.Equal(t, 8, *stored.MoodScore)

	l.MoodScore = entity.IntPtr(11)
	_, err = b.SaveDailyLog(ctx, l)
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

// ==================== Daily todos ====================

func TestTodayTodosSeedsDefaultsOnce(t *testing.T) {
	b, gw := newTestBoard(t)
	ctx := context.Background()
	day := entity.MustParseDate("2024-01-10")

	todos, err := b.TodayTodos(ctx, day)
	require.NoError(t, err)
	require.Len(t, todos, len(DefaultTodos))
	assert.Equal(t, DefaultTodos[0], todos[0].Title)
	assert.Equal(t, len(DefaultTodos), gw.creates)

	again, err := b.TodayTodos(ctx, entity.Date{})
	require.NoError(t, err)
	assert.Len(t, again, len(DefaultTodos))
	assert.Equal(t, len(DefaultTodos), gw.creates)
	assert.Empty(t, b.Store().TodosOn(day.AddDays(1)))
}

func TestTodoAddToggleDelete(t *testing.T) {
	b, gw := newTestBoard(t)
	ctx := context.Background()
	day := entity.MustParseDate("2024-01-10")

	todo, err := b.AddTodo(ctx, day, "  Call the bank ")
	require.NoError(t, err)
	assert.Equal(t, "Call the bank", todo.Title)
	assert.False(t, todo.IsCompleted)

	todo, err = b.ToggleTodo(ctx, todo.ID)
	require.NoError(t, err)
	assert.True(t, todo.IsCompleted)
	stored, err := b.Store().DailyTodo(todo.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)

	_, err = b.AddTodo(ctx, day, " ")
	assert.ErrorIs(t, err, entity.ErrInvalid)

	require.NoError(t, b.DeleteTodo(ctx, todo.ID))
	assert.Empty(t, b.Store().TodosOn(day))
	assert.ErrorIs(t, b.DeleteTodo(ctx, todo.ID), entity.ErrNotFound)

	gw.failWrite = errors.New("offline")
	_, err = b.AddTodo(ctx, day, "x")
	assert.ErrorIs(t, err, ErrCommitFailed)
}

// ==================== Patch values ====================

func TestPatchDecoders(t *testing.T) {
	s := "text"
	got, err := PatchString("title", &s)
	require.NoError(t, err)
	assert.Equal(t, "text", got)
	_, err = PatchString("title", 3)
	assert.ErrorIs(t, err, entity.ErrInvalid)

	f, err := PatchFloat("estimated_hours", int64(4))
	require.NoError(t, err)
	assert.Equal(t, 4.0, *f)
	src := 1.5
	f, err = PatchFloat("estimated_hours", &src)
	require.NoError(t, err)
	*f = 9
	assert.Equal(t, 1.5, src)

	id, err := PatchID("track_id", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *id)
	id, err = PatchID("track_id", (*int64)(nil))
	require.NoError(t, err)
	assert.Nil(t, id)

	d, err := PatchDate("due_date", "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", d.String())
	_, err = PatchDate("due_date", "soon")
	assert.ErrorIs(t, err, entity.ErrInvalid)

	on, err := PatchBool("is_active", "true")
	require.NoError(t, err)
	assert.True(t, on)

	p, err := PatchPriority("high")
	require.NoError(t, err)
	assert.Equal(t, entity.PriorityHigh, p)

	habits, err := PatchStrings("habits_completed", []string{" a", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, habits)
}
