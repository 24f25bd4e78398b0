package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"marginperceptron/config"
	"marginperceptron/db"
	"marginperceptron/logging"
	"marginperceptron/pipeline"
)

func train(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logging.SetLogConfig(&cfg.Log)

	datasets := cfg.Datasets
	if len(args) > 0 {
		datasets = make([]config.DatasetConfig, 0, len(args))
		for _, path := range args {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			datasets = append(datasets, config.DatasetConfig{Name: name, Path: path})
		}
	}
	if len(datasets) == 0 {
		return fmt.Errorf("no datasets to train")
	}

	var opts []pipeline.Option
	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, pipeline.WithStore(pipeline.DBStore{}))
	}

	trainer, err := pipeline.NewTrainer(pipeline.TrainerConfig{
		Parallel:     cfg.Training.Parallel,
		Timeout:      cfg.Training.Timeout,
		TraceUpdates: cfg.Training.TraceUpdates,
		CacheSize:    cfg.Training.CacheSize,
	}, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := trainer.TrainAll(ctx, datasets)
	printReports(cmd.OutOrStdout(), datasets, reports)
	return err
}

func printReports(out io.Writer, datasets []config.DatasetConfig, reports []*pipeline.Report) {
	for i, r := range reports {
		if r == nil {
			fmt.Fprintf(out, "%s: failed\n", datasets[i].Name)
			continue
		}
		res := r.Result
		status := "converged"
		if !res.Converged {
			status = "not converged"
		}
		fmt.Fprintf(out, "%s: %s after %d updates in %d rounds (gamma=%g) in %s\n",
			r.Dataset, status, res.Updates, res.Rounds, res.Gamma, r.Duration)
		fmt.Fprintf(out, "  weights=%v\n", res.Weights)
		fmt.Fprintf(out, "  margin=%.6f accuracy=%.4f precision=%.4f recall=%.4f\n",
			r.Metrics.Margin, r.Metrics.Accuracy, r.Metrics.Precision, r.Metrics.Recall)
	}
}

func trainCMD() *cobra.Command {
	trainCmd := &cobra.Command{
		Use:   "train [files...]",
		Short: "train datasets",
		Long:  "train the margin perceptron on the given dataset files, or on the configured datasets when none are given",
		RunE:  train,
	}
	attachFlags(trainCmd, []string{"config", "db", "parallel", "timeout", "trace"})
	return trainCmd
}
