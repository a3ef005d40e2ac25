package store

import (
	"database/sql"
	"errors"
)

// Setting keys persisted across sessions.
const (
	SettingSelectedModel = "selected_model"
	SettingConfidence    = "confidence"
	SettingIoU           = "iou"
	SettingMaxDetections = "max_detections"
	SettingFacing        = "facing"
)

// SettingsRepository provides access to persisted key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value for a key. Returns ErrNotFound if the key is unset.
func (r *SettingsRepository) Get(key string) (string, error) {
	row := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores the value for a key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
