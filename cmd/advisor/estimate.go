package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-advisor/engine/app"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/pricing"
)

func newEstimateCmd(c *cli) *cobra.Command {
	var (
		brand   string
		segment string
		year    int
		base    float64
		kml     float64
	)
	cmd := &cobra.Command{
		Use:     "estimate",
		Short:   "Estimate the current market price of one vehicle",
		Example: `  advisor estimate --brand Toyota --year 2016 --base-price 100000 --kml 16`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if base <= 0 || year <= 0 {
				return errors.New("--base-price and --year are required")
			}
			policy, ref := app.PricingPolicy(c.cfg)
			est, err := pricing.New(policy, ref)
			if err != nil {
				return err
			}
			profile := domain.DefaultBrands().Lookup(brand)
			in := pricing.Input{BasePrice: base, Year: year, Brand: profile, FuelEfficiency: kml}
			if segment != "" {
				in.Segment = domain.ParseSegment(segment)
			}
			pe := est.Estimate(in)
			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"estimate": pe, "brand": profile})
			}
			renderEstimate(cmd.OutOrStdout(), pe, profile)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&brand, "brand", "", "manufacturer")
	fs.StringVar(&segment, "segment", "", "market segment, defaults to the brand's")
	fs.IntVar(&year, "year", 0, "model year")
	fs.Float64Var(&base, "base-price", 0, "new-vehicle price in ₪")
	fs.Float64Var(&kml, "kml", 0, "fuel efficiency in km/l")
	return cmd
}
