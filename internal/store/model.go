package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Model represents a cached model artifact.
type Model struct {
	ID         string
	Name       string
	Task       string
	Path       string
	SizeBytes  int64
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// ModelRepository provides CRUD operations for cached models.
type ModelRepository struct {
	db *sql.DB
}

// Models returns the model repository for this store.
func (s *Store) Models() *ModelRepository {
	return &ModelRepository{db: s.db}
}

// Upsert inserts the model or replaces the existing row with the same ID.
func (r *ModelRepository) Upsert(m *Model) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO models (id, name, task, path, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			task = excluded.task,
			path = excluded.path,
			size_bytes = excluded.size_bytes`,
		m.ID, m.Name, m.Task, m.Path, m.SizeBytes, m.CreatedAt,
	)
	return err
}

// Get returns a model by ID. Returns ErrNotFound if it does not exist.
func (r *ModelRepository) Get(id string) (*Model, error) {
	row := r.db.QueryRow(
		`SELECT id, name, task, path, size_bytes, created_at, last_used_at
		 FROM models WHERE id = ?`, id)

	var m Model
	var lastUsed sql.NullTime
	err := row.Scan(&m.ID, &m.Name, &m.Task, &m.Path, &m.SizeBytes, &m.CreatedAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.LastUsedAt = lastUsedOrCreated(lastUsed, m.CreatedAt)
	return &m, nil
}

// List returns all cached models ordered by name.
func (r *ModelRepository) List() ([]*Model, error) {
	rows, err := r.db.Query(
		`SELECT id, name, task, path, size_bytes, created_at, last_used_at
		 FROM models ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*Model
	for rows.Next() {
		var m Model
		var lastUsed sql.NullTime
		if err := rows.Scan(&m.ID, &m.Name, &m.Task, &m.Path, &m.SizeBytes, &m.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		m.LastUsedAt = lastUsedOrCreated(lastUsed, m.CreatedAt)
		models = append(models, &m)
	}
	return models, rows.Err()
}

// lastUsedOrCreated treats a never-used model as last used at creation.
func lastUsedOrCreated(lastUsed sql.NullTime, created time.Time) time.Time {
	if lastUsed.Valid {
		return lastUsed.Time
	}
	return created
}

// Touch updates the last-used timestamp of a model.
func (r *ModelRepository) Touch(id string) error {
	res, err := r.db.Exec(`UPDATE models SET last_used_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a model row.
func (r *ModelRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Download represents one model fetch attempt.
type Download struct {
	ID        string
	ModelID   string
	Status    string
	Message   string
	CreatedAt time.Time
}

// DownloadRepository records model fetch history.
type DownloadRepository struct {
	db *sql.DB
}

// Downloads returns the download repository for this store.
func (s *Store) Downloads() *DownloadRepository {
	return &DownloadRepository{db: s.db}
}

// Record inserts a download history row.
func (r *DownloadRepository) Record(d *Download) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO downloads (id, model_id, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.ModelID, d.Status, d.Message, d.CreatedAt,
	)
	return err
}

// ListByModel returns the fetch history for one model, newest first.
func (r *DownloadRepository) ListByModel(modelID string) ([]*Download, error) {
	rows, err := r.db.Query(
		`SELECT id, model_id, status, message, created_at
		 FROM downloads WHERE model_id = ? ORDER BY created_at DESC`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var downloads []*Download
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.ID, &d.ModelID, &d.Status, &d.Message, &d.CreatedAt); err != nil {
			return nil, err
		}
		downloads = append(downloads, &d)
	}
	return downloads, rows.Err()
}
