package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Alert is a finished alert episode.
type Alert struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	MinDistance float64   `json:"min_distance"`
	Mode        string    `json:"mode"`
}

// Duration returns how long the alert lasted.
func (a *Alert) Duration() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}

// AlertRepository stores alert episodes.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

// Create inserts a new alert. An empty ID is filled with a UUID.
func (r *AlertRepository) Create(ctx context.Context, a *Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.EndedAt.Before(a.StartedAt) {
		return errors.New("alert ends before it starts")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, started_at, ended_at, min_distance, mode)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.StartedAt.UTC(), a.EndedAt.UTC(), a.MinDistance, a.Mode,
	)
	return err
}

// RecordAlert stores a finished episode reported by the monitor.
func (r *AlertRepository) RecordAlert(ctx context.Context, startedAt, endedAt time.Time, minDistance float64, mode string) error {
	return r.Create(ctx, &Alert{
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		MinDistance: minDistance,
		Mode:        mode,
	})
}

// GetByID retrieves an alert by its ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	a := &Alert{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, min_distance, mode FROM alerts WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.StartedAt, &a.EndedAt, &a.MinDistance, &a.Mode)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

// List returns the most recent alerts first. A limit of zero or less returns
// all of them.
func (r *AlertRepository) List(ctx context.Context, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, min_distance, mode
		 FROM alerts ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a := &Alert{}
		if err := rows.Scan(&a.ID, &a.StartedAt, &a.EndedAt, &a.MinDistance, &a.Mode); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

// Count returns the number of stored alerts.
func (r *AlertRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n)
	return n, err
}

// Since returns the number of alerts started at or after t.
func (r *AlertRepository) Since(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE started_at >= ?`, t.UTC()).Scan(&n)
	return n, err
}

// Clear deletes all alerts and returns how many were removed.
func (r *AlertRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
