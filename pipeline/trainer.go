// Package pipeline loads datasets, trains them and records the outcome.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"marginperceptron/config"
	"marginperceptron/dataset"
	"marginperceptron/db"
	"marginperceptron/logging"
	"marginperceptron/ml"
	"marginperceptron/monitoring"
)

// TrainerConfig controls how datasets are trained.
type TrainerConfig struct {
	Parallel     bool
	Timeout      time.Duration
	TraceUpdates bool
	CacheSize    int
}

// RunStore persists run summaries.
type RunStore interface {
	SaveTrainingRun(run db.TrainingRun) error
}

// DBStore writes runs to the package-level SQLite ledger.
type DBStore struct{}

func (DBStore) SaveTrainingRun(run db.TrainingRun) error {
	return db.SaveTrainingRun(run)
}

// ObserverFactory creates the observer of one run.
type ObserverFactory func(runID, dataset string) ml.Observer

// Report is the outcome of training one dataset.
type Report struct {
	RunID     string        `json:"run_id"`
	Dataset   string        `json:"dataset"`
	Path      string        `json:"path"`
	Dimension int           `json:"dimension"`
	Points    int           `json:"points"`
	Radius    float64       `json:"radius"`
	MaxNorm   float64       `json:"max_norm"`
	Result    *ml.Result    `json:"result"`
	Metrics   ml.Metrics    `json:"metrics"`
	Duration  time.Duration `json:"duration"`
	CacheHit  bool          `json:"cache_hit"`
}

// Trainer runs the margin perceptron over dataset files.
type Trainer struct {
	config  TrainerConfig
	cache   *dataset.Cache
	store   RunStore
	observe ObserverFactory
	metrics *monitoring.MetricsCollector
	logger  *logging.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

func WithStore(store RunStore) Option {
	return func(t *Trainer) { t.store = store }
}

func WithObserverFactory(f ObserverFactory) Option {
	return func(t *Trainer) { t.observe = f }
}

func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(t *Trainer) { t.metrics = mc }
}

// NewTrainer creates a trainer with its own dataset cache.
func NewTrainer(cfg TrainerConfig, opts ...Option) (*Trainer, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 16
	}
	cache, err := dataset.NewCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	t := &Trainer{
		config: cfg,
		cache:  cache,
		logger: logging.GetLogger(logging.MODULE_TRAINER),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TrainFile trains the dataset at path. A run that stops at the margin floor
// is a successful call whose Result reports non-convergence.
func (t *Trainer) TrainFile(ctx context.Context, name, path string) (*Report, error) {
	report, err := t.trainFile(ctx, name, path)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordFailure(name)
		}
		t.logger.Errorw("training failed", "dataset", name, "path", path, "error", err)
		return nil, err
	}
	return report, nil
}

func (t *Trainer) trainFile(ctx context.Context, name, path string) (*Report, error) {
	ds, hit, err := t.cache.Get(path)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	report := &Report{
		RunID:     uuid.NewString(),
		Dataset:   name,
		Path:      path,
		Dimension: ds.Dimension,
		Points:    ds.Len(),
		Radius:    ds.Radius,
		MaxNorm:   ds.MaxNorm(),
		CacheHit:  hit,
	}
	if report.MaxNorm > ds.Radius {
		t.logger.Warnw("radius is below the largest point norm; the iteration bound may not hold",
			"dataset", name, "radius", ds.Radius, "max_norm", report.MaxNorm)
	}

	loop, err := ml.NewTrainingLoop(ds, t.observers(report.RunID, name)...)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}

	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	t.logger.Infow("training started", "run", report.RunID, "dataset", name,
		"dimension", ds.Dimension, "points", ds.Len(), "radius", ds.Radius, "cache_hit", hit)
	start := time.Now()
	result, err := loop.Run(ctx)
	report.Duration = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	report.Result = result

	metrics, err := ml.Evaluate(result.Weights, ds)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: evaluate: %w", name, err)
	}
	report.Metrics = metrics

	if result.Converged {
		t.logger.Infow("training converged", "run", report.RunID, "dataset", name,
			"gamma", result.Gamma, "updates", result.Updates, "rounds", result.Rounds,
			"margin", metrics.Margin, "weights", result.Weights, "duration", report.Duration)
	} else {
		t.logger.Warnw("training stopped without convergence", "run", report.RunID, "dataset", name,
			"gamma", result.Gamma, "updates", result.Updates, "rounds", result.Rounds, "error", result.Err())
	}

	if t.metrics != nil {
		t.metrics.RecordRun(name, result.Converged, result.Updates, result.Gamma, metrics.Margin, report.Duration)
	}
	if t.store != nil {
		if err := t.store.SaveTrainingRun(report.TrainingRun()); err != nil {
			// The run itself succeeded; a ledger failure is only logged.
			logging.GetLogger(logging.MODULE_STORAGE).Errorw("save training run failed", "run", report.RunID, "error", err)
		}
	}
	return report, nil
}

func (t *Trainer) observers(runID, name string) []ml.Option {
	var opts []ml.Option
	if t.observe != nil {
		opts = append(opts, ml.WithObserver(t.observe(runID, name)))
	}
	if t.config.TraceUpdates {
		opts = append(opts, ml.WithObserver(traceObserver(t.logger, runID)))
	}
	return opts
}

func traceObserver(logger *logging.Logger, runID string) ml.Observer {
	return ml.ObserverFunc(func(e ml.Event) {
		switch e.Kind {
		case ml.EventUpdate:
			logger.Debugw("update", "run", runID, "round", e.Round, "iteration", e.Iteration,
				"index", e.Index, "label", int(e.Label), "gamma", e.Gamma)
		case ml.EventShrink:
			logger.Infow("margin guess halved", "run", runID, "gamma", e.Gamma, "budget", e.Budget, "updates", e.Updates)
		}
	})
}

// TrainAll trains every dataset and returns reports in input order. Failed
// datasets leave a nil report and contribute to the combined error.
func (t *Trainer) TrainAll(ctx context.Context, datasets []config.DatasetConfig) ([]*Report, error) {
	reports := make([]*Report, len(datasets))
	errs := make([]error, len(datasets))

	if t.config.Parallel {
		var wg sync.WaitGroup
		for i, d := range datasets {
			wg.Add(1)
			go func(i int, d config.DatasetConfig) {
				defer wg.Done()
				reports[i], errs[i] = t.TrainFile(ctx, d.Name, d.Path)
			}(i, d)
		}
		wg.Wait()
	} else {
		for i, d := range datasets {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				continue
			}
			reports[i], errs[i] = t.TrainFile(ctx, d.Name, d.Path)
		}
	}
	return reports, multierr.Combine(errs...)
}

// TrainingRun converts the report into a ledger row.
func (r *Report) TrainingRun() db.TrainingRun {
	run := db.TrainingRun{
		RunID:     r.RunID,
		Dataset:   r.Dataset,
		Path:      r.Path,
		Dimension: r.Dimension,
		Points:    r.Points,
		Radius:    r.Radius,
		Margin:    r.Metrics.Margin,
		Accuracy:  r.Metrics.Accuracy,
		Duration:  r.Duration,
		TrainedAt: time.Now(),
	}
	if r.Result != nil {
		run.Converged = r.Result.Converged
		run.FinalGamma = r.Result.Gamma
		run.Updates = r.Result.Updates
		run.Rounds = r.Result.Rounds
	}
	return run
}
