package main

import (
	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-advisor/engine/app"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/registry"
)

func newFilterCmd(c *cli) *cobra.Command {
	var qf queryFlags
	var limit int
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Apply the registry filters without calling the generator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.resolve(cmd)
			if err != nil {
				return err
			}
			if err := domain.ValidateQuery(q); err != nil {
				return err
			}
			a := app.Open(c.cfg, c.logger)
			defer a.Close()
			src, err := a.RegistrySource(cmd.Context())
			if err != nil {
				return err
			}
			records, err := registry.New(src, c.logger).Records(cmd.Context())
			if err != nil {
				return err
			}
			kept := registry.Filter(records, q)
			rejected := registry.Explain(records, q)

			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"total":    len(records),
					"kept":     kept,
					"rejected": rejected,
				})
			}
			renderExplain(cmd.OutOrStdout(), len(records), kept, rejected, limit)
			return nil
		},
	}
	qf.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", 50, "max records to print, 0 for all")
	return cmd
}
