package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-advisor/engine/history"
)

func newHistoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past recommendation runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := history.Open(cmd.Context(), c.cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			recs, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			renderRuns(cmd.OutOrStdout(), recs)
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := history.Open(cmd.Context(), c.cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			rec, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			renderRun(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count runs by outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := history.Open(cmd.Context(), c.cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			s, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "runs %d, no matches %d, no data %d\n", s.Runs, s.NoMatches, s.DataUnavailable)
			return nil
		},
	}

	cmd.AddCommand(list, show, stats)
	return cmd
}
