package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "perceptron-db")
	if err != nil {
		panic(err)
	}
	if err := InitDB(filepath.Join(dir, "test.db")); err != nil {
		panic(err)
	}

	code := m.Run()

	Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestSaveAndLoadTrainingRuns(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []TrainingRun{
		{RunID: "a", Dataset: "2d", Path: "2d.txt", Dimension: 2, Points: 10, Radius: 16, Converged: true,
			FinalGamma: 4, Updates: 30, Rounds: 3, Margin: 2.5, Accuracy: 1, Duration: 1500 * time.Millisecond, TrainedAt: base},
		{RunID: "b", Dataset: "4d", Path: "4d.txt", Dimension: 4, Points: 20, Radius: 24, Converged: false,
			FinalGamma: 5e-9, Updates: 900, Rounds: 30, Margin: -0.5, Accuracy: 0.5, TrainedAt: base.Add(time.Minute)},
		{RunID: "c", Dataset: "2d", Path: "2d.txt", Dimension: 2, Points: 10, Radius: 16, Converged: true,
			FinalGamma: 8, Updates: 12, Rounds: 2, Margin: 3, Accuracy: 1, TrainedAt: base.Add(2 * time.Minute)},
	}
	for _, run := range runs {
		require.NoError(t, SaveTrainingRun(run))
	}

	all, err := LoadTrainingRuns(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].RunID)
	assert.Equal(t, "a", all[2].RunID)
	assert.Equal(t, 1500*time.Millisecond, all[2].Duration)
	assert.True(t, all[2].TrainedAt.Equal(base))
	assert.False(t, all[1].Converged)
	assert.Equal(t, 5e-9, all[1].FinalGamma)

	twoD, err := LoadTrainingRunsForDataset("2d", 1)
	require.NoError(t, err)
	require.Len(t, twoD, 1)
	assert.Equal(t, "c", twoD[0].RunID)

	assert.Error(t, SaveTrainingRun(runs[0]), "run ids are unique")
	assert.Error(t, SaveTrainingRun(TrainingRun{}))
}
