package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/entity"
)

var fixedNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory(WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustTrack(t *testing.T, s *Store, title string) *entity.Track {
	t.Helper()
	tr, err := s.CreateTrack(entity.Track{Title: title, IsActive: true})
	if err != nil {
		t.Fatalf("create track: %v", err)
	}
	return tr
}

func mustSprint(t *testing.T, s *Store, name string, trackID *int64, start, end string) *entity.Sprint {
	t.Helper()
	sp, err := s.CreateSprint(entity.Sprint{
		Name: name, TrackID: trackID, IsActive: true,
		StartDate: entity.MustParseDate(start), EndDate: entity.MustParseDate(end),
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	return sp
}

func mustTask(t *testing.T, s *Store, task entity.Task) *entity.Task {
	t.Helper()
	created, err := s.CreateTask(task)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return created
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != currentVersion {
		t.Fatalf("expected user_version %d, got %d", currentVersion, version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/sprintboard.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	mustTrack(t, s, "Persisted")
	s.Close()

	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	tracks, err := s2.ListTracks(TrackFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].Title != "Persisted" {
		t.Fatalf("expected persisted track after reopen, got %+v", tracks)
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("empty path")
	}
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)

	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Tracks
// ============================================================

func TestCreateAndGetTrack(t *testing.T) {
	s := newTestStore(t)

	deadline := entity.MustParseDate("2024-06-30")
	tr, err := s.CreateTrack(entity.Track{Title: "Go mastery", Category: "learning", Deadline: &deadline, IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if tr.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := s.GetTrack(tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Go mastery" || got.Category != "learning" || !got.IsActive {
		t.Fatalf("unexpected track: %+v", got)
	}
	if got.Deadline == nil || got.Deadline.String() != "2024-06-30" {
		t.Fatalf("expected deadline 2024-06-30, got %v", got.Deadline)
	}
	if !got.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected created_at %v, got %v", fixedNow, got.CreatedAt)
	}
}

func TestCreateTrackRequiresTitle(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateTrack(entity.Track{Title: " "})
	if !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestGetTrackNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTrack(999)
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTracksActiveFilter(t *testing.T) {
	s := newTestStore(t)
	a := mustTrack(t, s, "A")
	b := mustTrack(t, s, "B")
	b.IsActive = false
	if err := s.UpdateTrack(*b); err != nil {
		t.Fatal(err)
	}

	all, _ := s.ListTracks(TrackFilter{})
	if len(all) != 2 || all[0].ID != a.ID {
		t.Fatalf("expected 2 tracks in insertion order, got %+v", all)
	}
	active := true
	got, _ := s.ListTracks(TrackFilter{Active: &active})
	if len(got) != 1 || got[0].Title != "A" {
		t.Fatalf("expected only A, got %+v", got)
	}
}

func TestDeleteTrackDetaches(t *testing.T) {
	s := newTestStore(t)
	tr := mustTrack(t, s, "Backend")
	sp := mustSprint(t, s, "S1", &tr.ID, "2024-01-01", "2024-01-15")
	task := mustTask(t, s, entity.Task{Title: "API", TrackID: &tr.ID, SprintID: &sp.ID})

	if err := s.DeleteTrack(tr.ID); err != nil {
		t.Fatal(err)
	}
	gotTask, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotTask.TrackID != nil {
		t.Fatalf("expected task detached from track, got %d", *gotTask.TrackID)
	}
	if gotTask.SprintID == nil {
		t.Fatal("expected task to keep its sprint")
	}
	gotSprint, _ := s.GetSprint(sp.ID)
	if gotSprint.TrackID != nil {
		t.Fatal("expected sprint detached from track")
	}

	if err := s.DeleteTrack(tr.ID); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

// ============================================================
// Sprints
// ============================================================

func TestSprintRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sp := mustSprint(t, s, "Sprint 1", nil, "2024-01-01", "2024-01-15")
	if sp.StartDate.String() != "2024-01-01" || sp.EndDate.String() != "2024-01-15" {
		t.Fatalf("unexpected dates: %s..%s", sp.StartDate, sp.EndDate)
	}
	if sp.TrackID != nil {
		t.Fatal("expected no track")
	}
}

func TestListSprintsCurrent(t *testing.T) {
	s := newTestStore(t)
	tr := mustTrack(t, s, "T")
	mustSprint(t, s, "Past", &tr.ID, "2023-12-01", "2023-12-14")
	mustSprint(t, s, "Now", &tr.ID, "2024-01-01", "2024-01-15")
	mustSprint(t, s, "Other", nil, "2024-01-05", "2024-01-20")

	day := entity.MustParseDate("2024-01-10")
	got, err := s.ListSprints(SprintFilter{CurrentOn: &day})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 current sprints, got %d", len(got))
	}

	got, _ = s.ListSprints(SprintFilter{CurrentOn: &day, TrackID: &tr.ID})
	if len(got) != 1 || got[0].Name != "Now" {
		t.Fatalf("expected only Now, got %+v", got)
	}

	// Boundaries are inclusive.
	end := entity.MustParseDate("2023-12-14")
	got, _ = s.ListSprints(SprintFilter{CurrentOn: &end})
	if len(got) != 1 || got[0].Name != "Past" {
		t.Fatalf("expected Past on its end date, got %+v", got)
	}
}

func TestDeleteSprintDetachesTasks(t *testing.T) {
	s := newTestStore(t)
	sp := mustSprint(t, s, "S", nil, "2024-01-01", "2024-01-15")
	task := mustTask(t, s, entity.Task{Title: "x", SprintID: &sp.ID})

	if err := s.DeleteSprint(sp.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTask(task.ID)
	if got.SprintID != nil {
		t.Fatal("expected task detached from sprint")
	}
}

// ============================================================
// Tasks
// ============================================================

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	tr := mustTrack(t, s, "Backend")
	hours := 2.5
	due := entity.MustParseDate("2024-01-20")

	task := mustTask(t, s, entity.Task{Title: "Write API", Description: "v1", TrackID: &tr.ID, EstimatedHours: &hours, DueDate: &due})
	if task.Status != entity.StatusTodo || task.Priority != entity.PriorityMedium {
		t.Fatalf("expected defaults TODO/MEDIUM, got %s/%s", task.Status, task.Priority)
	}
	if task.CompletedAt != nil {
		t.Fatal("expected no completion time")
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Write API" || got.Description != "v1" {
		t.Fatalf("unexpected task: %+v", got)
	}
	if got.EstimatedHours == nil || *got.EstimatedHours != 2.5 {
		t.Fatalf("expected 2.5 hours, got %v", got.EstimatedHours)
	}
	if got.DueDate == nil || got.DueDate.String() != "2024-01-20" {
		t.Fatalf("expected due date, got %v", got.DueDate)
	}
	if got.TrackID == nil || *got.TrackID != tr.ID {
		t.Fatal("expected track reference")
	}
}

func TestCreateTaskDoneStampsCompletion(t *testing.T) {
	s := newTestStore(t)
	task := mustTask(t, s, entity.Task{Title: "Done already", Status: entity.StatusDone})
	if task.CompletedAt == nil || !task.CompletedAt.Equal(fixedNow) {
		t.Fatalf("expected completed_at %v, got %v", fixedNow, task.CompletedAt)
	}
}

func TestCreateTaskInvalidTrack(t *testing.T) {
	s := newTestStore(t)
	missing := int64(999)
	_, err := s.CreateTask(entity.Task{Title: "Orphan", TrackID: &missing})
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(999)
	var nf *entity.NotFoundError
	if !errors.As(err, &nf) || nf.ID != 999 {
		t.Fatalf("expected NotFoundError for 999, got %v", err)
	}
}

func TestSetTaskStatusCompletion(t *testing.T) {
	s := newTestStore(t)
	task := mustTask(t, s, entity.Task{Title: "x"})

	done, err := s.SetTaskStatus(task.ID, entity.StatusDone)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != entity.StatusDone || done.CompletedAt == nil {
		t.Fatalf("expected DONE with completion, got %+v", done)
	}

	reopened, err := s.SetTaskStatus(task.ID, entity.StatusInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.CompletedAt != nil {
		t.Fatal("expected completion cleared when leaving DONE")
	}
}

func TestListTasksFilters(t *testing.T) {
	s := newTestStore(t)
	tr := mustTrack(t, s, "T")
	sp := mustSprint(t, s, "S", &tr.ID, "2024-01-01", "2024-01-15")
	past := entity.MustParseDate("2024-01-05")

	a := mustTask(t, s, entity.Task{Title: "a", Priority: entity.PriorityHigh, TrackID: &tr.ID, SprintID: &sp.ID, DueDate: &past})
	mustTask(t, s, entity.Task{Title: "b", Priority: entity.PriorityHigh, Status: entity.StatusDone, DueDate: &past})
	mustTask(t, s, entity.Task{Title: "c", Priority: entity.PriorityLow, TrackID: &tr.ID})

	cases := []struct {
		name string
		f    TaskFilter
		want int
	}{
		{"none", TaskFilter{}, 3},
		{"priority", TaskFilter{Priority: entity.PriorityHigh}, 2},
		{"status", TaskFilter{Status: entity.StatusDone}, 1},
		{"track", TaskFilter{TrackID: &tr.ID}, 2},
		{"sprint", TaskFilter{SprintID: &sp.ID}, 1},
		{"overdue", TaskFilter{OverdueOn: entity.DatePtr(entity.MustParseDate("2024-01-10"))}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListTasks(tc.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tc.want {
				t.Fatalf("expected %d tasks, got %d", tc.want, len(got))
			}
		})
	}

	overdue, _ := s.ListTasks(TaskFilter{OverdueOn: entity.DatePtr(entity.MustParseDate("2024-01-10"))})
	if overdue[0].ID != a.ID {
		t.Fatalf("expected task a overdue, got %d", overdue[0].ID)
	}
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	task := mustTask(t, s, entity.Task{Title: "x"})
	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTask(task.ID); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================
// Daily logs
// ============================================================

func TestDailyLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	l, err := s.CreateDailyLog(entity.DailyLog{
		Date:       entity.MustParseDate("2024-01-10"),
		MoodScore:  entity.IntPtr(7),
		FocusHours: entity.Float64Ptr(3.5),
		Notes:      "good day",
		Habits:     []string{"Reading", "Coding", "Reading"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if l.MoodScore == nil || *l.MoodScore != 7 {
		t.Fatalf("expected mood 7, got %v", l.MoodScore)
	}
	if l.EnergyLevel != nil {
		t.Fatal("expected no energy level")
	}
	if len(l.Habits) != 2 || l.Habits[0] != "Reading" || l.Habits[1] != "Coding" {
		t.Fatalf("expected deduplicated habits, got %v", l.Habits)
	}

	byDate, err := s.GetDailyLogByDate(entity.MustParseDate("2024-01-10"))
	if err != nil || byDate == nil || byDate.ID != l.ID {
		t.Fatalf("expected lookup by date, got %v / %v", byDate, err)
	}
	none, err := s.GetDailyLogByDate(entity.MustParseDate("2024-01-11"))
	if err != nil || none != nil {
		t.Fatalf("expected nil, nil for empty day, got %v / %v", none, err)
	}
}

func TestDailyLogOnePerDate(t *testing.T) {
	s := newTestStore(t)
	day := entity.MustParseDate("2024-01-10")
	if _, err := s.CreateDailyLog(entity.DailyLog{Date: day}); err != nil {
		t.Fatal(err)
	}
	_, err := s.CreateDailyLog(entity.DailyLog{Date: day})
	if !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for duplicate date, got %v", err)
	}
}

func TestDailyLogRangeValidation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateDailyLog(entity.DailyLog{Date: entity.MustParseDate("2024-01-10"), EnergyLevel: entity.IntPtr(0)})
	if !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestListDailyLogsRange(t *testing.T) {
	s := newTestStore(t)
	for _, d := range []string{"2024-01-12", "2024-01-01", "2024-01-05"} {
		if _, err := s.CreateDailyLog(entity.DailyLog{Date: entity.MustParseDate(d)}); err != nil {
			t.Fatal(err)
		}
	}
	from, to := entity.MustParseDate("2024-01-02"), entity.MustParseDate("2024-01-12")
	got, err := s.ListDailyLogs(LogFilter{From: &from, To: &to})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Date.String() != "2024-01-05" || got[1].Date.String() != "2024-01-12" {
		t.Fatalf("expected 01-05 and 01-12 in date order, got %+v", got)
	}
}

// ============================================================
// Gateway
// ============================================================

func TestGatewayFetchQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tr := mustTrack(t, s, "T")
	mustTask(t, s, entity.Task{Title: "a", Priority: entity.PriorityHigh, TrackID: &tr.ID})
	mustTask(t, s, entity.Task{Title: "b", Priority: entity.PriorityLow, DueDate: entity.DatePtr(entity.MustParseDate("2024-01-01"))})

	recs, err := s.Fetch(ctx, entity.KindTask, board.Query{"priority": "high"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].(entity.Task).Title != "a" {
		t.Fatalf("expected task a, got %+v", recs)
	}

	recs, _ = s.Fetch(ctx, entity.KindTask, board.Query{"overdue": "true"})
	if len(recs) != 1 || recs[0].(entity.Task).Title != "b" {
		t.Fatalf("expected overdue task b, got %+v", recs)
	}

	recs, _ = s.Fetch(ctx, entity.KindTask, board.Query{"overdue": "true", "today": "2023-12-01"})
	if len(recs) != 0 {
		t.Fatalf("expected nothing overdue on 2023-12-01, got %d", len(recs))
	}

	if _, err := s.Fetch(ctx, entity.KindTask, board.Query{"colour": "red"}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown parameter, got %v", err)
	}
	if _, err := s.Fetch(ctx, entity.KindTask, board.Query{"track": "x"}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bad id, got %v", err)
	}
}

func TestGatewayFetchSprintsAndLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustSprint(t, s, "Now", nil, "2024-01-01", "2024-01-15")
	mustSprint(t, s, "Later", nil, "2024-02-01", "2024-02-15")
	s.CreateDailyLog(entity.DailyLog{Date: entity.MustParseDate("2024-01-03")})
	s.CreateDailyLog(entity.DailyLog{Date: entity.MustParseDate("2024-01-09")})

	recs, err := s.Fetch(ctx, entity.KindSprint, board.Query{"current": "true"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].(entity.Sprint).Name != "Now" {
		t.Fatalf("expected the current sprint, got %+v", recs)
	}

	recs, err = s.Fetch(ctx, entity.KindDailyLog, board.Query{"start_date": "2024-01-05"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(recs))
	}
}

func TestGatewayCreateUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, &entity.Task{Title: "ptr task"})
	if err != nil {
		t.Fatal(err)
	}
	task := rec.(entity.Task)

	rec, err = s.Update(ctx, entity.KindTask, task.ID, board.Patch{"status": entity.StatusDone, "due_date": "2024-02-01"})
	if err != nil {
		t.Fatal(err)
	}
	updated := rec.(entity.Task)
	if updated.Status != entity.StatusDone || updated.CompletedAt == nil {
		t.Fatalf("expected DONE with completion, got %+v", updated)
	}
	if updated.DueDate == nil || updated.DueDate.String() != "2024-02-01" {
		t.Fatalf("expected due date set, got %v", updated.DueDate)
	}

	if _, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"status": "PAUSED"}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"sprint_id": int64(42)}); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing sprint, got %v", err)
	}
	if _, err := s.Update(ctx, entity.KindTask, 999, board.Patch{"title": "x"}); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(ctx, entity.KindTask, task.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, entity.KindTask, task.ID); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGatewayDailyLogPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec, err := s.Create(ctx, entity.DailyLog{Date: entity.MustParseDate("2024-01-10")})
	if err != nil {
		t.Fatal(err)
	}
	id := rec.Key()

	rec, err = s.Update(ctx, entity.KindDailyLog, id, board.Patch{
		"mood_score":       entity.IntPtr(8),
		"focus_hours":      4.0,
		"notes":            "shipped",
		"habits_completed": []string{"Coding"},
	})
	if err != nil {
		t.Fatal(err)
	}
	l := rec.(entity.DailyLog)
	if *l.MoodScore != 8 || *l.FocusHours != 4.0 || l.Notes != "shipped" || len(l.Habits) != 1 {
		t.Fatalf("unexpected log after patch: %+v", l)
	}

	if _, err := s.Update(ctx, entity.KindDailyLog, id, board.Patch{"mood_score": 11}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for mood 11, got %v", err)
	}
}

func TestGatewayIdempotentCommit(t *testing.T) {
	s := newTestStore(t)
	task := mustTask(t, s, entity.Task{Title: "x"})
	ctx := board.WithIdempotencyKey(context.Background(), "move-1")

	if _, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"status": entity.StatusDone}); err != nil {
		t.Fatal(err)
	}
	// Another writer reopens the task; a replay of move-1 must not re-apply DONE.
	if _, err := s.SetTaskStatus(task.ID, entity.StatusTodo); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"status": entity.StatusDone})
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.(entity.Task).Status; got != entity.StatusTodo {
		t.Fatalf("expected replayed commit to be skipped, got %s", got)
	}
}

func TestGatewayCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Fetch(ctx, entity.KindTask, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGatewayDrivesBoard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, entity.Task{Title: "x"})

	b := board.New(entity.NewStore(), s)
	if err := b.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.MoveTask(ctx, task.ID, entity.StatusDone); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTask(task.ID)
	if got.Status != entity.StatusDone {
		t.Fatalf("expected DONE persisted, got %s", got.Status)
	}
	local, _ := b.Store().Task(task.ID)
	if local.CompletedAt == nil {
		t.Fatal("expected local completion time")
	}
}

func TestGatewayRefusesOvertakenStatusCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, entity.Task{Title: "x"})

	b := board.New(entity.NewStore(), s, board.WithFailurePolicy(board.FlagOnFailure))
	if err := b.Load(ctx); err != nil {
		t.Fatal(err)
	}
	m1, err := b.Move(task.ID, entity.StatusInProgress)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := b.Move(task.ID, entity.StatusDone)
	if err != nil {
		t.Fatal(err)
	}

	// The later move reaches the database first.
	rec2, err2 := b.Commit(ctx, m2)
	rec1, err1 := b.Commit(ctx, m1)
	if err := b.Reconcile(m2, rec2, err2); err != nil {
		t.Fatal(err)
	}
	if err := b.Reconcile(m1, rec1, err1); err != nil {
		t.Fatal(err)
	}

	if got := rec1.(entity.Task).Status; got != entity.StatusDone {
		t.Fatalf("overtaken commit should return the current record, got %s", got)
	}
	persisted, _ := s.GetTask(task.ID)
	local, _ := b.Store().Task(task.ID)
	if persisted.Status != entity.StatusDone || local.Status != entity.StatusDone {
		t.Fatalf("local=%s persisted=%s, want both DONE", local.Status, persisted.Status)
	}
	if _, unsynced := b.Unsynced(task.ID); unsynced {
		t.Fatal("task should not be flagged unsynced")
	}
}

func TestGatewayStatusOrderIsPerSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, entity.Task{Title: "x"})

	first := board.New(entity.NewStore(), s)
	if err := first.Load(ctx); err != nil {
		t.Fatal(err)
	}
	for _, st := range []entity.Status{entity.StatusInProgress, entity.StatusDone, entity.StatusTodo, entity.StatusDone} {
		if err := first.MoveTask(ctx, task.ID, st); err != nil {
			t.Fatal(err)
		}
	}

	// A fresh board starts counting again; its first move must still land.
	second := board.New(entity.NewStore(), s)
	if err := second.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := second.MoveTask(ctx, task.ID, entity.StatusInProgress); err != nil {
		t.Fatal(err)
	}
	persisted, _ := s.GetTask(task.ID)
	if persisted.Status != entity.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS from the new session, got %s", persisted.Status)
	}

	// An unordered status patch is applied as is.
	if _, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"status": "TODO"}); err != nil {
		t.Fatal(err)
	}
	persisted, _ = s.GetTask(task.ID)
	if persisted.Status != entity.StatusTodo {
		t.Fatalf("expected TODO, got %s", persisted.Status)
	}
}

func TestGatewayFailedPatchWritesNothing(t *testing.T) {
	s := newTestStore(t)
	task := mustTask(t, s, entity.Task{Title: "x"})
	ctx := board.WithIdempotencyKey(context.Background(), "edit-1")

	_, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"title": "renamed", "sprint_id": int64(42)})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing sprint, got %v", err)
	}
	got, _ := s.GetTask(task.ID)
	if got.Title != "x" {
		t.Fatalf("failed patch changed the title to %q", got.Title)
	}
	// The key was not consumed by the failed attempt.
	rec, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"title": "renamed"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.(entity.Task).Title != "renamed" {
		t.Fatalf("retry with the same key was skipped: %+v", rec)
	}
}

func TestCompletedAtReadBackInLocalZone(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, tokyo)
	s, err := NewMemory(WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	task := mustTask(t, s, entity.Task{Title: "x", Status: entity.StatusDone})
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("completed_at = %v, want %v", task.CompletedAt, now)
	}
	if task.CompletedAt.Location() != time.Local {
		t.Fatalf("completed_at read back in %v, want the local zone", task.CompletedAt.Location())
	}
}

func TestTaskActualHours(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, entity.Task{Title: "x", ActualHours: entity.Float64Ptr(1.5)})
	if task.ActualHours == nil || *task.ActualHours != 1.5 {
		t.Fatalf("expected 1.5 actual hours, got %v", task.ActualHours)
	}

	rec, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"actual_hours": 4})
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.(entity.Task).ActualHours; got == nil || *got != 4 {
		t.Fatalf("expected 4 actual hours, got %v", got)
	}
	if _, err := s.Update(ctx, entity.KindTask, task.ID, board.Patch{"actual_hours": -2.0}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for negative hours, got %v", err)
	}
}

// ============================================================
// Daily todos
// ============================================================

func TestGatewayDailyTodos(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := entity.MustParseDate("2024-01-10")

	var ids []int64
	for _, title := range []string{"Review daily goals", "Check task progress"} {
		rec, err := s.Create(ctx, entity.DailyTodo{Title: title, Date: day})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.Key())
	}
	if _, err := s.Create(ctx, &entity.DailyTodo{Title: "old", Date: day.AddDays(-1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, entity.DailyTodo{Title: " ", Date: day}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for blank title, got %v", err)
	}

	rec, err := s.Update(ctx, entity.KindDailyTodo, ids[0], board.Patch{"is_completed": true})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.(entity.DailyTodo).IsCompleted {
		t.Fatal("expected todo completed")
	}

	recs, err := s.Fetch(ctx, entity.KindDailyTodo, board.Query{"date": "2024-01-10"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Key() != ids[1] {
		t.Fatalf("expected open todo first for the day, got %+v", recs)
	}
	recs, err = s.Fetch(ctx, entity.KindDailyTodo, board.Query{"is_completed": "false"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 open todos, got %d", len(recs))
	}
	if _, err := s.Fetch(ctx, entity.KindDailyTodo, board.Query{"done": "1"}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown parameter, got %v", err)
	}

	if err := s.Delete(ctx, entity.KindDailyTodo, ids[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDailyTodo(ids[0]); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBoardSeedsTodosThroughGateway(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	b := board.New(entity.NewStore(), s, board.WithClock(func() time.Time { return fixedNow }))
	if err := b.Load(ctx); err != nil {
		t.Fatal(err)
	}
	todos, err := b.TodayTodos(ctx, entity.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != len(board.DefaultTodos) {
		t.Fatalf("expected %d seeded todos, got %d", len(board.DefaultTodos), len(todos))
	}
	if _, err := b.ToggleTodo(ctx, todos[0].ID); err != nil {
		t.Fatal(err)
	}

	reloaded := board.New(entity.NewStore(), s)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	got := reloaded.Store().TodosOn(entity.DateOf(fixedNow))
	if len(got) != len(board.DefaultTodos) {
		t.Fatalf("expected todos to survive a reload, got %d", len(got))
	}
	done := 0
	for _, d := range got {
		if d.IsCompleted {
			done++
		}
	}
	if done != 1 {
		t.Fatalf("expected 1 completed todo after reload, got %d", done)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsDefaults(t *testing.T) {
	s := newTestStore(t)

	if got := s.IntSetting(SettingHeatmapDays, 0); got != 30 {
		t.Fatalf("expected heatmap_days 30, got %d", got)
	}
	if got := s.IntSetting(SettingSprintLength, 0); got != 14 {
		t.Fatalf("expected sprint_length 14, got %d", got)
	}
	habits, err := s.Habits()
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 8 || habits[0] != "Exercise" {
		t.Fatalf("unexpected default habits: %v", habits)
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)

	s.SetSetting("key", "v1")
	s.SetSetting("key", "v2")
	val, _ := s.GetSetting("key")
	if val != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}
}

func TestIntSettingFallback(t *testing.T) {
	s := newTestStore(t)
	s.SetSetting(SettingHeatmapDays, "soon")
	if got := s.IntSetting(SettingHeatmapDays, 30); got != 30 {
		t.Fatalf("expected fallback 30, got %d", got)
	}
	if got := s.IntSetting("missing", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestSetHabits(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetHabits([]string{" Running ", "", "Running", "Piano"}); err != nil {
		t.Fatal(err)
	}
	habits, _ := s.Habits()
	if len(habits) != 2 || habits[0] != "Running" || habits[1] != "Piano" {
		t.Fatalf("expected [Running Piano], got %v", habits)
	}
}

func TestGetSettingNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSetting("nonexistent"); err == nil {
		t.Fatal("expected error for missing setting")
	}
}

func TestGetAllSettings(t *testing.T) {
	s := newTestStore(t)
	all, err := s.GetAllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 3 {
		t.Fatalf("expected at least 3 default settings, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("settings not sorted: %s >= %s", all[i-1].Key, all[i].Key)
		}
	}
}
