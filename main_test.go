package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginperceptron/config"
	"marginperceptron/db"
	"marginperceptron/pipeline"
)

// slowStore records saves and flags any save made after it was closed.
type slowStore struct {
	entered chan struct{}
	once    sync.Once
	saves   atomic.Int32
	closed  atomic.Bool
	late    atomic.Bool
}

func (s *slowStore) SaveTrainingRun(db.TrainingRun) error {
	s.once.Do(func() { close(s.entered) })
	time.Sleep(50 * time.Millisecond)
	if s.closed.Load() {
		s.late.Store(true)
	}
	s.saves.Add(1)
	return nil
}

func TestShutdownWaitsForTraining(t *testing.T) {
	dir := t.TempDir()
	var datasets []config.DatasetConfig
	for _, name := range []string{"a", "b"} {
		path := filepath.Join(dir, name+".txt")
		require.NoError(t, os.WriteFile(path, []byte("2,1\n1,0,1\n-1,0,-1\n"), 0o600))
		datasets = append(datasets, config.DatasetConfig{Name: name, Path: path})
	}

	store := &slowStore{entered: make(chan struct{})}
	trainer, err := pipeline.NewTrainer(pipeline.TrainerConfig{}, pipeline.WithStore(store))
	require.NoError(t, err)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	trainConfigured(ctx, &wg, trainer, datasets)

	// Shut down the way run does while the first save is in flight.
	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("training never reached the ledger")
	}
	cancel()
	wg.Wait()
	store.closed.Store(true)

	time.Sleep(100 * time.Millisecond)
	assert.False(t, store.late.Load(), "a run was saved after shutdown completed")
	assert.Equal(t, int32(1), store.saves.Load())
}
