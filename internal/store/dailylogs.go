package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

const logColumns = `id, date, mood_score, energy_level, focus_hours, notes, habits_completed, created_at, updated_at`

// CreateDailyLog inserts a log. There is at most one log per date.
func (s *Store) CreateDailyLog(l entity.DailyLog) (*entity.DailyLog, error) {
	l.Habits = entity.NormalizeHabits(l.Habits)
	if err := l.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.GetDailyLogByDate(l.Date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &entity.ValidationError{Field: "date", Reason: fmt.Sprintf("a daily log for %s already exists", l.Date)}
	}
	habits, err := encodeHabits(l.Habits)
	if err != nil {
		return nil, err
	}

	now := s.stamp()
	res, err := s.db.Exec(
		`INSERT INTO daily_logs (date, mood_score, energy_level, focus_hours, notes, habits_completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Date.String(), l.MoodScore, l.EnergyLevel, l.FocusHours, l.Notes, habits, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert daily log: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetDailyLog(id)
}

func (s *Store) GetDailyLog(id int64) (*entity.DailyLog, error) {
	l, err := scanDailyLog(s.db.QueryRow(`SELECT `+logColumns+` FROM daily_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get daily log %d: %w", id, &entity.NotFoundError{Kind: entity.KindDailyLog, ID: id})
	}
	if err != nil {
		return nil, fmt.Errorf("get daily log %d: %w", id, err)
	}
	return &l, nil
}

// GetDailyLogByDate returns nil, nil when no log exists for the day.
func (s *Store) GetDailyLogByDate(d entity.Date) (*entity.DailyLog, error) {
	l, err := scanDailyLog(s.db.QueryRow(`SELECT `+logColumns+` FROM daily_logs WHERE date = ?`, d.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily log for %s: %w", d, err)
	}
	return &l, nil
}

func (s *Store) ListDailyLogs(f LogFilter) ([]entity.DailyLog, error) {
	query := `SELECT ` + logColumns + ` FROM daily_logs WHERE 1=1`
	var args []any

	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += ` AND date <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY date`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	defer rows.Close()

	var logs []entity.DailyLog
	for rows.Next() {
		l, err := scanDailyLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) UpdateDailyLog(l entity.DailyLog) error {
	l.Habits = entity.NormalizeHabits(l.Habits)
	if err := l.Validate(); err != nil {
		return err
	}
	habits, err := encodeHabits(l.Habits)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE daily_logs SET mood_score = ?, energy_level = ?, focus_hours = ?, notes = ?, habits_completed = ?, updated_at = ?
		 WHERE id = ?`,
		l.MoodScore, l.EnergyLevel, l.FocusHours, l.Notes, habits, s.stamp(), l.ID,
	)
	return affected(res, err, entity.KindDailyLog, l.ID)
}

func (s *Store) DeleteDailyLog(id int64) error {
	res, err := s.db.Exec(`DELETE FROM daily_logs WHERE id = ?`, id)
	return affected(res, err, entity.KindDailyLog, id)
}

func encodeHabits(habits []string) (string, error) {
	if habits == nil {
		habits = []string{}
	}
	b, err := json.Marshal(habits)
	if err != nil {
		return "", fmt.Errorf("encode habits: %w", err)
	}
	return string(b), nil
}

func scanDailyLog(r scanner) (entity.DailyLog, error) {
	var l entity.DailyLog
	var date, habits, createdAt, updatedAt string
	var mood, energy sql.NullInt64
	var focus sql.NullFloat64
	err := r.Scan(&l.ID, &date, &mood, &energy, &focus, &l.Notes, &habits, &createdAt, &updatedAt)
	if err != nil {
		return entity.DailyLog{}, err
	}
	if l.Date, err = entity.ParseDate(date); err != nil {
		return entity.DailyLog{}, fmt.Errorf("daily log %d date: %w", l.ID, err)
	}
	l.MoodScore = scanInt(mood)
	l.EnergyLevel = scanInt(energy)
	l.FocusHours = scanFloat(focus)
	if err := json.Unmarshal([]byte(habits), &l.Habits); err != nil {
		return entity.DailyLog{}, fmt.Errorf("daily log %d habits: %w", l.ID, err)
	}
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return l, nil
}
