package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TrainingRun records one classifier training.
type TrainingRun struct {
	ID            string    `json:"id"`
	ModelPath     string    `json:"model_path"`
	Samples       int       `json:"samples"`
	Iterations    int       `json:"iterations"`
	TrainLoss     float64   `json:"train_loss"`
	ValLoss       float64   `json:"val_loss"`
	TrainAccuracy float64   `json:"train_accuracy"`
	ValAccuracy   float64   `json:"val_accuracy"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrainingRepository stores training runs.
type TrainingRepository struct {
	db *sql.DB
}

// TrainingRuns returns the training run repository for this store.
func (s *Store) TrainingRuns() *TrainingRepository {
	return &TrainingRepository{db: s.db}
}

// Create inserts a training run. An empty ID is filled with a UUID.
func (r *TrainingRepository) Create(ctx context.Context, run *TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, model_path, samples, iterations, train_loss, val_loss, train_accuracy, val_accuracy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelPath, run.Samples, run.Iterations,
		run.TrainLoss, run.ValLoss, run.TrainAccuracy, run.ValAccuracy, run.CreatedAt,
	)
	return err
}

const trainingColumns = `id, model_path, samples, iterations, train_loss, val_loss, train_accuracy, val_accuracy, created_at`

func scanRun(row interface{ Scan(...any) error }) (*TrainingRun, error) {
	run := &TrainingRun{}
	err := row.Scan(&run.ID, &run.ModelPath, &run.Samples, &run.Iterations,
		&run.TrainLoss, &run.ValLoss, &run.TrainAccuracy, &run.ValAccuracy, &run.CreatedAt)
	return run, err
}

// Latest returns the most recent run.
func (r *TrainingRepository) Latest(ctx context.Context) (*TrainingRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+trainingColumns+` FROM training_runs ORDER BY created_at DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns all runs, newest first.
func (r *TrainingRepository) List(ctx context.Context) ([]*TrainingRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+trainingColumns+` FROM training_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
