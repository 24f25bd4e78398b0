package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"marginperceptron/db"
)

func history(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := db.InitDB(cfg.Database.Path); err != nil {
		return err
	}
	defer db.Close()

	var runs []db.TrainingRun
	if datasetFlag != "" {
		runs, err = db.LoadTrainingRunsForDataset(datasetFlag, limitFlag)
	} else {
		runs, err = db.LoadTrainingRuns(limitFlag)
	}
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(out io.Writer, runs []db.TrainingRun) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRAINED AT\tDATASET\tCONVERGED\tGAMMA\tUPDATES\tMARGIN\tACCURACY\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%g\t%d\t%.6f\t%.4f\t%s\n",
			r.TrainedAt.Format("2006-01-02 15:04:05"), r.Dataset, r.Converged,
			r.FinalGamma, r.Updates, r.Margin, r.Accuracy, r.Duration)
	}
	tw.Flush()
}

func historyCMD() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "list recorded training runs",
		RunE:  history,
	}
	attachFlags(historyCmd, []string{"config", "db", "limit", "dataset"})
	return historyCmd
}
