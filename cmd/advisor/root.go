package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-advisor/engine/app"
	"github.com/WessleyAI/wessley-advisor/pkg/config"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	verbose bool
	noColor bool
	asJSON  bool

	cfg     *config.Config
	logger  *slog.Logger
	appOpts []app.Option
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "advisor",
		Short: "Used-vehicle recommendations for the Israeli market",
		Long: `advisor filters the official vehicle registry against a buyer's
constraints, prices the survivors and summarises the ones that fit the budget.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(
		newRecommendCmd(c),
		newFilterCmd(c),
		newEstimateCmd(c),
		newSeedCmd(c),
		newHistoryCmd(c),
	)
	return root
}

func (c *cli) init(stderr io.Writer) error {
	_ = godotenv.Load()
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if c.noColor || c.asJSON {
		color.NoColor = true
	}
	return nil
}
