package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"loglens/internal/store"
)

var (
	runsDB    string
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List analysis runs stored in a run database",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsDB, "db", "loglens.db", "path to the run database")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	st, err := store.Open(runsDB)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no stored runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  tasks=%d aux=%d controllers=%d  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.TaskCount, r.AuxCount, r.Controllers, r.Source)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	st, err := store.Open(runsDB)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := st.LoadRun(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
