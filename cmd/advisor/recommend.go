package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/wessley-advisor/engine/app"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
)

// queryFlags mirrors domain.UserQuery on the command line. Flags override
// values from --query.
type queryFlags struct {
	file string
	q    domain.UserQuery
}

func (f *queryFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "query", "q", "", "YAML file holding the query")
	fs.Float64Var(&f.q.BudgetMin, "budget-min", 0, "lowest price in ₪")
	fs.Float64Var(&f.q.BudgetMax, "budget-max", 0, "highest price in ₪")
	fs.IntVar(&f.q.YearMin, "year-min", 0, "oldest model year")
	fs.IntVar(&f.q.YearMax, "year-max", 0, "newest model year")
	fs.IntVar(&f.q.CCMin, "cc-min", 0, "smallest engine in cc")
	fs.IntVar(&f.q.CCMax, "cc-max", 0, "largest engine in cc")
	fs.StringVar(&f.q.Fuel, "fuel", "", "fuel preference, e.g. בנזין, diesel, hybrid")
	fs.StringVar(&f.q.Gearbox, "gearbox", "", "gearbox preference, e.g. אוטומט, manual")
	fs.StringVar(&f.q.BodyType, "body", "", "body type")
	fs.StringVar(&f.q.Usage, "usage", "", "intended usage")
}

// resolve reads the query file, if any, and lays changed flags over it.
func (f *queryFlags) resolve(cmd *cobra.Command) (domain.UserQuery, error) {
	var q domain.UserQuery
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return q, err
		}
		if err := yaml.Unmarshal(data, &q); err != nil {
			return q, fmt.Errorf("parse %s: %w", f.file, err)
		}
	}
	fs := cmd.Flags()
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("budget-min", func() { q.BudgetMin = f.q.BudgetMin })
	set("budget-max", func() { q.BudgetMax = f.q.BudgetMax })
	set("year-min", func() { q.YearMin = f.q.YearMin })
	set("year-max", func() { q.YearMax = f.q.YearMax })
	set("cc-min", func() { q.CCMin = f.q.CCMin })
	set("cc-max", func() { q.CCMax = f.q.CCMax })
	set("fuel", func() { q.Fuel = f.q.Fuel })
	set("gearbox", func() { q.Gearbox = f.q.Gearbox })
	set("body", func() { q.BodyType = f.q.BodyType })
	set("usage", func() { q.Usage = f.q.Usage })
	return q, nil
}

func newRecommendCmd(c *cli) *cobra.Command {
	var qf queryFlags
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend registry vehicles that fit a budget",
		Example: `  advisor recommend --budget-min 20000 --budget-max 40000 --year-min 2010 --year-max 2020 \
    --cc-min 1200 --cc-max 2000 --fuel בנזין --gearbox אוטומט
  advisor recommend -q query.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := qf.resolve(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := app.Build(ctx, c.cfg, c.logger, append([]app.Option{app.WithLocalHistory()}, c.appOpts...)...)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Service.Recommend(ctx, q)
			if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				if jerr := printJSON(out, rep); jerr != nil {
					return jerr
				}
			} else {
				renderReport(out, rep)
			}
			return err
		},
	}
	qf.bind(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the run")
	return cmd
}
