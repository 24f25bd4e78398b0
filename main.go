package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"marginperceptron/config"
	"marginperceptron/dataset"
	"marginperceptron/db"
	phttp "marginperceptron/http"
	"marginperceptron/logging"
	"marginperceptron/monitoring"
	"marginperceptron/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func run() error {
	// Look for config in root even if run from cmd/
	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = filepath.Join("..", "config.yaml")
	}

	// 1. Load config
	cfg := config.Default()
	if _, err := os.Stat(configPath); err == nil {
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	logging.SetLogConfig(&cfg.Log)
	logger := logging.GetLogger(logging.MODULE_TRAINER)

	// 2. Initialize database
	if err := db.InitDB(cfg.Database.Path); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Infow("database initialized", "path", cfg.Database.Path)

	// 3. Monitoring and trainer
	hub := monitoring.NewHub()
	go hub.Start()
	defer hub.Stop()
	metrics := monitoring.NewMetricsCollector()

	trainer, err := pipeline.NewTrainer(pipeline.TrainerConfig{
		Parallel:     cfg.Training.Parallel,
		Timeout:      cfg.Training.Timeout,
		TraceUpdates: cfg.Training.TraceUpdates,
		CacheSize:    cfg.Training.CacheSize,
	},
		pipeline.WithStore(pipeline.DBStore{}),
		pipeline.WithObserverFactory(hub.Observer),
		pipeline.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	// 4. Start HTTP server
	server := phttp.NewServer(phttp.ServerConfig{
		Port:    cfg.HTTP.Port,
		Timeout: cfg.HTTP.Timeout,
	}, &phttp.Handlers{
		Trainer:  trainer,
		Hub:      hub,
		Metrics:  metrics,
		Datasets: cfg.Datasets,
	})
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Deferred in this order so that shutdown cancels training, waits for
	// it and only then closes the hub and the database.
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Train configured datasets
	trainConfigured(ctx, &wg, trainer, cfg.Datasets)

	// 6. Retrain datasets whose files change
	if cfg.Watch.Enabled && len(cfg.Datasets) > 0 {
		if err := watchDatasets(ctx, &wg, cfg, trainer); err != nil {
			logger.Errorw("dataset watcher disabled", "error", err)
		}
	}

	// 7. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Infow("shutting down")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}
	cancel()

	if err := server.Stop(); err != nil {
		logger.Errorw("server forced to shutdown", "error", err)
	}
	logger.Infow("exiting")
	return nil
}

// trainConfigured trains every configured dataset on a goroutine tracked
// by wg.
func trainConfigured(ctx context.Context, wg *sync.WaitGroup, trainer *pipeline.Trainer, datasets []config.DatasetConfig) {
	logger := logging.GetLogger(logging.MODULE_TRAINER)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports, err := trainer.TrainAll(ctx, datasets)
		if err != nil {
			logger.Errorw("initial training finished with errors", "error", err)
		}
		converged := 0
		for _, r := range reports {
			if r != nil && r.Result.Converged {
				converged++
			}
		}
		logger.Infow("initial training finished", "datasets", len(reports), "converged", converged)
	}()
}

// watchDatasets retrains changed files on the watcher goroutine, which wg
// tracks until ctx is done.
func watchDatasets(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, trainer *pipeline.Trainer) error {
	names := make(map[string]string, len(cfg.Datasets))
	paths := make([]string, 0, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		abs, err := filepath.Abs(d.Path)
		if err != nil {
			return err
		}
		names[abs] = d.Name
		paths = append(paths, abs)
	}

	watcher, err := dataset.NewWatcher(paths, cfg.Watch.Debounce, func(path string) {
		name := names[path]
		logging.GetLogger(logging.MODULE_DATASET).Infow("dataset changed, retraining", "dataset", name, "path", path)
		trainer.TrainFile(ctx, name, path)
	})
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer watcher.Close()
		watcher.Run(ctx)
	}()
	return nil
}
