package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

const taskColumns = `id, title, description, status, priority, estimated_hours, actual_hours, due_date, track_id, sprint_id, completed_at, created_at, updated_at`

// CreateTask inserts t. A task created as DONE gets a completion time.
func (s *Store) CreateTask(t entity.Task) (*entity.Task, error) {
	if t.Status == "" {
		t.Status = entity.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = entity.PriorityMedium
	}
	t = t.WithStatus(t.Status, s.now())
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := s.stamp()
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, description, status, priority, estimated_hours, actual_hours, due_date, track_id, sprint_id, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.EstimatedHours, t.ActualHours, nullDate(t.DueDate),
		t.TrackID, t.SprintID, nullTime(t.CompletedAt), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetTask(id)
}

func (s *Store) GetTask(id int64) (*entity.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %d: %w", id, &entity.NotFoundError{Kind: entity.KindTask, ID: id})
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return &t, nil
}

func (s *Store) ListTasks(f TaskFilter) ([]entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(f.Priority))
	}
	if f.TrackID != nil {
		query += ` AND track_id = ?`
		args = append(args, *f.TrackID)
	}
	if f.SprintID != nil {
		query += ` AND sprint_id = ?`
		args = append(args, *f.SprintID)
	}
	if f.OverdueOn != nil {
		query += ` AND status != 'DONE' AND due_date IS NOT NULL AND due_date < ?`
		args = append(args, f.OverdueOn.String())
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []entity.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask writes every column of t, status and completion time included.
func (s *Store) UpdateTask(t entity.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, estimated_hours = ?, actual_hours = ?, due_date = ?,
		 track_id = ?, sprint_id = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.EstimatedHours, t.ActualHours, nullDate(t.DueDate),
		t.TrackID, t.SprintID, nullTime(t.CompletedAt), s.stamp(), t.ID,
	)
	return affected(res, err, entity.KindTask, t.ID)
}

// SetTaskStatus moves a task, stamping completed_at on DONE and clearing it otherwise.
func (s *Store) SetTaskStatus(id int64, status entity.Status) (*entity.Task, error) {
	t, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status == status {
		return t, nil
	}
	moved := t.WithStatus(status, s.now())
	if err := s.UpdateTask(moved); err != nil {
		return nil, err
	}
	return s.GetTask(id)
}

func (s *Store) DeleteTask(id int64) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return affected(res, err, entity.KindTask, id)
}

func scanTask(r scanner) (entity.Task, error) {
	var t entity.Task
	var status, priority, createdAt, updatedAt string
	var hours, actual sql.NullFloat64
	var due, completedAt sql.NullString
	var trackID, sprintID sql.NullInt64
	err := r.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &hours, &actual, &due,
		&trackID, &sprintID, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return entity.Task{}, err
	}
	t.Status = entity.Status(status)
	t.Priority = entity.Priority(priority)
	t.EstimatedHours = scanFloat(hours)
	t.ActualHours = scanFloat(actual)
	t.DueDate = scanDate(due)
	t.TrackID = scanID(trackID)
	t.SprintID = scanID(sprintID)
	t.CompletedAt = scanTime(completedAt)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return t, nil
}
