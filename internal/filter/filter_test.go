package filter

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sprintboard/internal/entity"
)

func mk(id int64, title, desc string, p entity.Priority, s entity.Status) entity.Task {
	return entity.Task{ID: id, Title: title, Description: desc, Priority: p, Status: s}
}

func ids(tasks []entity.Task) []int64 {
	var out []int64
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestApplyPriorityKeepsOrder(t *testing.T) {
	var tasks []entity.Task
	for i := int64(1); i <= 10; i++ {
		p := entity.PriorityLow
		if i%2 == 0 {
			p = entity.PriorityHigh
		}
		tasks = append(tasks, mk(i, fmt.Sprintf("task %d", i), "", p, entity.StatusTodo))
	}

	got, err := Apply(tasks, Spec{Priority: entity.PriorityHigh})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, []int64{2, 4, 6, 8, 10}, ids(got))
	for _, tk := range got {
		assert.Equal(t, entity.PriorityHigh, tk.Priority)
	}
}

func TestApplyEmptySpecPassesEverything(t *testing.T) {
	tasks := []entity.Task{
		mk(3, "c", "", entity.PriorityLow, entity.StatusDone),
		mk(1, "a", "", entity.PriorityHigh, entity.StatusTodo),
	}
	got, err := Apply(tasks, Spec{})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids(got))
}

func TestSearchMatchesTitleOrDescriptionCaseInsensitive(t *testing.T) {
	tasks := []entity.Task{
		mk(1, "Learn Django", "", entity.PriorityLow, entity.StatusTodo),
		mk(2, "Deploy", "push the DJANGO app", entity.PriorityLow, entity.StatusTodo),
		mk(3, "Groceries", "", entity.PriorityLow, entity.StatusTodo),
		mk(4, "Read", "nothing relevant", entity.PriorityLow, entity.StatusTodo),
	}
	got, err := Apply(tasks, Spec{SearchText: "  django "})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestSearchWithoutDescriptionNeedsTitleMatch(t *testing.T) {
	tasks := []entity.Task{mk(1, "Groceries", "", entity.PriorityLow, entity.StatusTodo)}
	got, err := Apply(tasks, Spec{SearchText: "milk"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSubstringNotTokenMatch(t *testing.T) {
	tasks := []entity.Task{mk(1, "Refactoring", "", entity.PriorityLow, entity.StatusTodo)}
	got, _ := Apply(tasks, Spec{SearchText: "factor"})
	assert.Len(t, got, 1)
}

func TestCriteriaAreANDed(t *testing.T) {
	track := entity.Int64Ptr(7)
	sprint := entity.Int64Ptr(3)
	a := mk(1, "api", "", entity.PriorityHigh, entity.StatusTodo)
	a.TrackID, a.SprintID = track, sprint
	b := mk(2, "api docs", "", entity.PriorityHigh, entity.StatusDone)
	b.TrackID, b.SprintID = track, sprint
	c := mk(3, "api tests", "", entity.PriorityHigh, entity.StatusTodo)
	c.TrackID = track
	d := mk(4, "api", "", entity.PriorityLow, entity.StatusTodo)
	d.TrackID, d.SprintID = track, sprint

	got, err := Apply([]entity.Task{a, b, c, d}, Spec{
		SearchText: "api",
		Priority:   entity.PriorityHigh,
		Status:     entity.StatusTodo,
		TrackID:    entity.Int64Ptr(7),
		SprintID:   entity.Int64Ptr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
}

func TestTrackFilterExcludesUnassigned(t *testing.T) {
	a := mk(1, "a", "", entity.PriorityLow, entity.StatusTodo)
	got, _ := Apply([]entity.Task{a}, Spec{TrackID: entity.Int64Ptr(1)})
	assert.Empty(t, got)
}

func TestInvalidSpecRejected(t *testing.T) {
	_, err := Apply(nil, Spec{Status: "BLOCKED"})
	assert.ErrorIs(t, err, entity.ErrInvalid)

	_, err = Spec{Priority: "URGENT"}.Compile()
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

func TestApplyIsSubsequenceProperty(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	statuses := entity.Statuses
	priorities := entity.Priorities
	for round := 0; round < 200; round++ {
		var tasks []entity.Task
		n := r.Intn(25)
		for i := 0; i < n; i++ {
			tk := mk(int64(i+1), fmt.Sprintf("t%d", r.Intn(5)), "", priorities[r.Intn(3)], statuses[r.Intn(3)])
			if r.Intn(2) == 0 {
				tk.TrackID = entity.Int64Ptr(int64(r.Intn(3)))
			}
			tasks = append(tasks, tk)
		}
		spec := Spec{}
		if r.Intn(2) == 0 {
			spec.Priority = priorities[r.Intn(3)]
		}
		if r.Intn(2) == 0 {
			spec.Status = statuses[r.Intn(3)]
		}
		if r.Intn(2) == 0 {
			spec.SearchText = fmt.Sprintf("T%d", r.Intn(5))
		}
		if r.Intn(3) == 0 {
			spec.TrackID = entity.Int64Ptr(int64(r.Intn(3)))
		}

		got, err := Apply(tasks, spec)
		require.NoError(t, err)
		require.LessOrEqual(t, len(got), len(tasks))

		// got must be a subsequence of tasks.
		j := 0
		for _, tk := range tasks {
			if j < len(got) && got[j].ID == tk.ID {
				j++
			}
		}
		require.Equal(t, len(got), j, "round %d: output is not an order-preserving subsequence", round)
	}
}

func TestParseSpec(t *testing.T) {
	s, err := ParseSpec(map[string]string{
		"search":   " docs ",
		"priority": "high",
		"status":   "in_progress",
		"track":    "4",
		"sprint":   "",
	})
	require.NoError(t, err)
	assert.Equal(t, "docs", s.SearchText)
	assert.Equal(t, entity.PriorityHigh, s.Priority)
	assert.Equal(t, entity.StatusInProgress, s.Status)
	require.NotNil(t, s.TrackID)
	assert.Equal(t, int64(4), *s.TrackID)
	assert.Nil(t, s.SprintID)
	assert.Equal(t, 4, s.ActiveCount())

	_, err = ParseSpec(map[string]string{"track": "abc"})
	assert.ErrorIs(t, err, entity.ErrInvalid)
	_, err = ParseSpec(map[string]string{"status": "waiting"})
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "no filters", Spec{}.String())
	assert.True(t, Spec{}.IsEmpty())
	s := Spec{SearchText: "x", Status: entity.StatusDone, SprintID: entity.Int64Ptr(2)}
	assert.Equal(t, `search="x" status=DONE sprint=2`, s.String())
}
