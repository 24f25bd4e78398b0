package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietConfig discards logs and disables the ledger.
const quietConfig = "database:\n  path: \"\"\nlog:\n  level: ERROR\n  path: \"\"\n  console: false\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	root := &cobra.Command{Use: "perceptron", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(trainCMD(), historyCMD())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTrainAndHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", quietConfig)
	data := writeFile(t, dir, "toy.txt", "2,1\n1,0,1\n-1,0,-1\n")
	ledger := filepath.Join(dir, "runs.db")

	out, err := execute(t, "train", "--config", cfg, "--db", ledger, data)
	require.NoError(t, err)
	assert.Contains(t, out, "toy: converged after 1 updates in 1 rounds")
	assert.Contains(t, out, "weights=[1 0]")
	assert.Contains(t, out, "margin=1.000000 accuracy=1.0000")

	out, err = execute(t, "history", "--config", cfg, "--db", ledger, "--dataset", "toy")
	require.NoError(t, err)
	assert.Contains(t, out, "DATASET")
	assert.Contains(t, out, "toy")
	assert.Contains(t, out, "true")
}

func TestTrainReportsFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", quietConfig)
	bad := writeFile(t, dir, "bad.txt", "2,1\n1,1\n")

	out, err := execute(t, "train", "--config", cfg, bad)
	assert.Error(t, err)
	assert.Contains(t, out, "bad: failed")
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "train", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "x.txt")
	assert.Error(t, err)
}

func TestTimeoutFromEnvironment(t *testing.T) {
	t.Setenv("PERCEPTRON_TIMEOUT", "not-a-duration")
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", quietConfig)
	_, err := execute(t, "train", "--config", cfg, "x.txt")
	assert.ErrorContains(t, err, "invalid timeout")
}
