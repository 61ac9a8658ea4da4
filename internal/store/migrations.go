package store

import "fmt"

// migrations are applied in order; the schema version is the number applied.
// Append only.
var migrations = [][]string{
	// 1: alert episodes, one row per hand-near-face period.
	{
		`CREATE TABLE alerts (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			min_distance REAL NOT NULL DEFAULT 0,
			mode TEXT NOT NULL DEFAULT 'hand-face'
		)`,
		`CREATE INDEX idx_alerts_started_at ON alerts(started_at)`,
	},
	// 2: runtime settings changed from the web UI.
	{
		`CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
	// 3: classifier training runs.
	{
		`CREATE TABLE training_runs (
			id TEXT PRIMARY KEY,
			model_path TEXT NOT NULL,
			samples INTEGER NOT NULL DEFAULT 0,
			iterations INTEGER NOT NULL DEFAULT 0,
			train_loss REAL NOT NULL DEFAULT 0,
			val_loss REAL NOT NULL DEFAULT 0,
			train_accuracy REAL NOT NULL DEFAULT 0,
			val_accuracy REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX idx_training_runs_created_at ON training_runs(created_at)`,
	},
}

// migrate applies the migrations newer than the schema version, each in its
// own transaction.
func (s *Store) migrate() error {
	version, err := s.Version()
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range migrations[i] {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", i+1, err)
			}
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		log.Debugf("store: applied migration %d", i+1)
	}

	return nil
}
