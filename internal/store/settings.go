package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sadopc/sprintboard/internal/entity"
)

const (
	SettingHeatmapDays  = "heatmap_days"
	SettingSprintLength = "sprint_length"
	SettingHabits       = "habits"
)

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// IntSetting reads a positive integer setting, falling back to def when it is unset or malformed.
func (s *Store) IntSetting(key string, def int) int {
	v, err := s.GetSetting(key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		s.logger.Warn("ignoring malformed setting", "key", key, "value", v)
		return def
	}
	return n
}

// Habits returns the habit checklist offered in the journal.
func (s *Store) Habits() ([]string, error) {
	v, err := s.GetSetting(SettingHabits)
	if err != nil {
		return nil, err
	}
	var habits []string
	if err := json.Unmarshal([]byte(v), &habits); err != nil {
		return nil, fmt.Errorf("decode habits setting: %w", err)
	}
	return entity.NormalizeHabits(habits), nil
}

func (s *Store) SetHabits(habits []string) error {
	v, err := encodeHabits(entity.NormalizeHabits(habits))
	if err != nil {
		return err
	}
	return s.SetSetting(SettingHabits, v)
}
