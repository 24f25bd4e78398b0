package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// ErrNotInitialized is returned before InitDB succeeds.
var ErrNotInitialized = errors.New("database not initialized")

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	// WAL lets concurrent training runs append while the API reads.
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return err
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        dataset VARCHAR(100) NOT NULL,
        path TEXT NOT NULL,
        dimension INTEGER NOT NULL,
        points INTEGER NOT NULL,
        radius REAL NOT NULL,
        converged INTEGER NOT NULL,
        final_gamma REAL NOT NULL,
        updates INTEGER NOT NULL,
        rounds INTEGER NOT NULL,
        margin REAL,
        accuracy REAL,
        duration_ms INTEGER,
        trained_at DATETIME NOT NULL,
        UNIQUE(run_id)
    );
    CREATE INDEX IF NOT EXISTS idx_training_runs_dataset ON training_runs(dataset, trained_at);
    `
	if _, err := conn.Exec(query); err != nil {
		conn.Close()
		return err
	}
	if database != nil {
		database.Close()
	}
	database = conn
	return nil
}

// Close closes the database opened by InitDB.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// TrainingRun is the summary of one training loop. Weights are not stored.
type TrainingRun struct {
	RunID      string        `json:"run_id"`
	Dataset    string        `json:"dataset"`
	Path       string        `json:"path"`
	Dimension  int           `json:"dimension"`
	Points     int           `json:"points"`
	Radius     float64       `json:"radius"`
	Converged  bool          `json:"converged"`
	FinalGamma float64       `json:"final_gamma"`
	Updates    int           `json:"updates"`
	Rounds     int           `json:"rounds"`
	Margin     float64       `json:"margin"`
	Accuracy   float64       `json:"accuracy"`
	Duration   time.Duration `json:"duration"`
	TrainedAt  time.Time     `json:"trained_at"`
}

// SaveTrainingRun appends a run to the ledger.
func SaveTrainingRun(run TrainingRun) error {
	if database == nil {
		return ErrNotInitialized
	}
	if run.RunID == "" {
		return errors.New("run id required")
	}
	_, err := database.Exec(`
        INSERT INTO training_runs (
            run_id, dataset, path, dimension, points, radius, converged,
            final_gamma, updates, rounds, margin, accuracy, duration_ms, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		run.RunID,
		run.Dataset,
		run.Path,
		run.Dimension,
		run.Points,
		run.Radius,
		run.Converged,
		run.FinalGamma,
		run.Updates,
		run.Rounds,
		run.Margin,
		run.Accuracy,
		run.Duration.Milliseconds(),
		run.TrainedAt.UTC(),
	)
	return err
}

// LoadTrainingRuns returns the latest runs, newest first.
func LoadTrainingRuns(limit int) ([]TrainingRun, error) {
	return queryRuns(`WHERE 1 = 1`, nil, limit)
}

// LoadTrainingRunsForDataset returns the latest runs of one dataset.
func LoadTrainingRunsForDataset(dataset string, limit int) ([]TrainingRun, error) {
	return queryRuns(`WHERE dataset = ?`, []interface{}{dataset}, limit)
}

func queryRuns(where string, args []interface{}, limit int) ([]TrainingRun, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(`
        SELECT run_id, dataset, path, dimension, points, radius, converged,
               final_gamma, updates, rounds, margin, accuracy, duration_ms, trained_at
        FROM training_runs `+where+`
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		var margin, accuracy sql.NullFloat64
		var durationMs sql.NullInt64
		if err := rows.Scan(&run.RunID, &run.Dataset, &run.Path, &run.Dimension, &run.Points, &run.Radius,
			&run.Converged, &run.FinalGamma, &run.Updates, &run.Rounds, &margin, &accuracy, &durationMs, &run.TrainedAt); err != nil {
			return nil, err
		}
		if margin.Valid {
			run.Margin = margin.Float64
		}
		if accuracy.Valid {
			run.Accuracy = accuracy.Float64
		}
		if durationMs.Valid {
			run.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
