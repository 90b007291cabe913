package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/wessley-advisor/engine/app"
	"github.com/WessleyAI/wessley-advisor/engine/domain"
	"github.com/WessleyAI/wessley-advisor/engine/registry"
	"github.com/WessleyAI/wessley-advisor/pkg/cache"
	"github.com/WessleyAI/wessley-advisor/pkg/fn"
)

func newSeedCmd(c *cli) *cobra.Command {
	var (
		path    string
		graph   bool
		vectors bool
		batch   int
		reset   bool
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a registry CSV into Neo4j and the Qdrant model index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !graph && !vectors {
				return errors.New("nothing to do: pass --graph and/or --vectors")
			}
			if path == "" {
				path = c.cfg.Registry.Path
			}
			ctx := cmd.Context()
			src := &registry.CSVSource{Path: path, Logger: c.logger}
			records, rep, err := src.LoadWithReport(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "read %d rows, kept %d, skipped %d\n", rep.Rows, rep.Kept, rep.Skipped)
			for reason, n := range rep.Reasons {
				dimColor.Fprintf(out, "  %s: %d\n", reason, n)
			}

			a := app.Open(c.cfg, c.logger)
			defer a.Close()

			if graph {
				g, err := a.OpenGraph(ctx)
				if err != nil {
					return err
				}
				n, err := g.Save(ctx, records)
				if err != nil {
					return fmt.Errorf("save graph: %w", err)
				}
				matchColor.Fprintf(out, "neo4j: %d vehicles written\n", n)
			}

			if vectors {
				if c.cfg.Qdrant.Addr == "" {
					return errors.New("qdrant.addr is not configured")
				}
				if err := a.OpenIndex(cache.NewMemory(0)); err != nil {
					return err
				}
				if reset {
					if err := a.Vectors.DeleteCollection(ctx); err != nil {
						c.logger.Warn("delete collection", "err", err)
					}
				}
				if err := a.Vectors.EnsureCollection(ctx, c.cfg.Qdrant.Dims); err != nil {
					return err
				}
				if replace && !reset {
					brands := fn.UniqueBy(fn.Map(records, func(r domain.VehicleRecord) string {
						return domain.CanonicalKey(r.Brand)
					}), func(b string) string { return b })
					for _, b := range brands {
						if err := a.Vectors.DeleteByBrand(ctx, b); err != nil {
							return err
						}
					}
					dimColor.Fprintf(out, "qdrant: cleared %d brands\n", len(brands))
				}
				n, err := a.Index.Index(ctx, records, batch)
				if err != nil {
					return fmt.Errorf("index models: %w", err)
				}
				matchColor.Fprintf(out, "qdrant: %d model names indexed\n", n)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&path, "csv", "", "registry CSV, defaults to registry.path")
	fs.BoolVar(&graph, "graph", false, "write vehicles to Neo4j")
	fs.BoolVar(&vectors, "vectors", false, "index model names in Qdrant")
	fs.IntVar(&batch, "batch", 64, "embedding batch size")
	fs.BoolVar(&reset, "reset", false, "drop the Qdrant collection first")
	fs.BoolVar(&replace, "replace-brands", false, "remove indexed models of every brand in the CSV before indexing")
	return cmd
}
