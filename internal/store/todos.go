package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

const todoColumns = `id, title, description, is_completed, date, created_at, updated_at`

// TodoFilter narrows ListDailyTodos. Nil fields impose no constraint.
type TodoFilter struct {
	Date      *entity.Date
	Completed *bool
}

func (s *Store) CreateDailyTodo(d entity.DailyTodo) (*entity.DailyTodo, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	now := s.stamp()
	res, err := s.db.Exec(
		`INSERT INTO daily_todos (title, description, is_completed, date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.Title, d.Description, boolInt(d.IsCompleted), d.Date.String(), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert daily todo: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetDailyTodo(id)
}

func (s *Store) GetDailyTodo(id int64) (*entity.DailyTodo, error) {
	d, err := scanDailyTodo(s.db.QueryRow(`SELECT `+todoColumns+` FROM daily_todos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get daily todo %d: %w", id, &entity.NotFoundError{Kind: entity.KindDailyTodo, ID: id})
	}
	if err != nil {
		return nil, fmt.Errorf("get daily todo %d: %w", id, err)
	}
	return &d, nil
}

// ListDailyTodos returns todos by day, open items first, then in creation order.
func (s *Store) ListDailyTodos(f TodoFilter) ([]entity.DailyTodo, error) {
	query := `SELECT ` + todoColumns + ` FROM daily_todos WHERE 1=1`
	var args []any
	if f.Date != nil {
		query += ` AND date = ?`
		args = append(args, f.Date.String())
	}
	if f.Completed != nil {
		query += ` AND is_completed = ?`
		args = append(args, boolInt(*f.Completed))
	}
	query += ` ORDER BY date DESC, is_completed, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily todos: %w", err)
	}
	defer rows.Close()

	var todos []entity.DailyTodo
	for rows.Next() {
		d, err := scanDailyTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, d)
	}
	return todos, rows.Err()
}

func (s *Store) UpdateDailyTodo(d entity.DailyTodo) error {
	if err := d.Validate(); err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE daily_todos SET title = ?, description = ?, is_completed = ?, date = ?, updated_at = ? WHERE id = ?`,
		d.Title, d.Description, boolInt(d.IsCompleted), d.Date.String(), s.stamp(), d.ID,
	)
	return affected(res, err, entity.KindDailyTodo, d.ID)
}

func (s *Store) DeleteDailyTodo(id int64) error {
	res, err := s.db.Exec(`DELETE FROM daily_todos WHERE id = ?`, id)
	return affected(res, err, entity.KindDailyTodo, id)
}

func scanDailyTodo(r scanner) (entity.DailyTodo, error) {
	var d entity.DailyTodo
	var done int
	var date, createdAt, updatedAt string
	if err := r.Scan(&d.ID, &d.Title, &d.Description, &done, &date, &createdAt, &updatedAt); err != nil {
		return entity.DailyTodo{}, err
	}
	d.IsCompleted = done == 1
	d.Date, _ = entity.ParseDate(date)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return d, nil
}
