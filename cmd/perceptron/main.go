package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"marginperceptron/config"
	"marginperceptron/logging"
)

var flags *pflag.FlagSet

var (
	cfgPathFlag  string
	dbPathFlag   string
	parallelFlag bool
	timeoutFlag  string
	traceFlag    bool
	limitFlag    int
	datasetFlag  string
)

func init() {
	resetFlags()
}

// resetFlags rebuilds the shared flag set; tests call it between commands.
func resetFlags() {
	flags = &pflag.FlagSet{}

	flags.StringVarP(&cfgPathFlag, "config", "c", "config.yaml", "trainer config path")
	flags.StringVar(&dbPathFlag, "db", "", "run ledger path (overrides config)")
	flags.BoolVarP(&parallelFlag, "parallel", "p", false, "train datasets concurrently")
	flags.StringVarP(&timeoutFlag, "timeout", "t", "", "per-dataset training timeout, e.g. 30s")
	flags.BoolVar(&traceFlag, "trace", false, "log every weight update")
	flags.IntVarP(&limitFlag, "limit", "n", 20, "number of runs to list")
	flags.StringVarP(&datasetFlag, "dataset", "d", "", "only list runs of this dataset")
}

func attachFlags(cmd *cobra.Command, names []string) {
	cmdFlags := cmd.Flags()
	for _, name := range names {
		if flag := flags.Lookup(name); flag != nil {
			cmdFlags.AddFlag(flag)
		} else {
			panic(fmt.Errorf("could not find flag '%s' to attach to command '%s'", name, cmd.Name()))
		}
	}
}

// loadConfig reads the config file when present, then applies PERCEPTRON_*
// environment variables and explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("perceptron")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	cfg := config.Default()
	path := v.GetString("config")
	if _, err := os.Stat(path); err == nil {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	} else if cmd.Flags().Changed("config") {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if s := v.GetString("db"); s != "" {
		cfg.Database.Path = s
	}
	if v.GetBool("parallel") {
		cfg.Training.Parallel = true
	}
	if v.GetString("timeout") != "" {
		cfg.Training.Timeout = v.GetDuration("timeout")
		if cfg.Training.Timeout <= 0 {
			return nil, fmt.Errorf("invalid timeout %q", v.GetString("timeout"))
		}
	}
	if v.GetBool("trace") {
		cfg.Training.TraceUpdates = true
		cfg.Log.Level = "DEBUG"
	}
	return cfg, nil
}

var mainCmd = &cobra.Command{
	Use:           "perceptron",
	Short:         "margin perceptron trainer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	mainCmd.AddCommand(trainCMD())
	mainCmd.AddCommand(historyCMD())

	err := mainCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
