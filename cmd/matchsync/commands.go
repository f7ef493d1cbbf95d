package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/timmy/matchsync/internal/app"
	"github.com/timmy/matchsync/internal/config"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/mapping"
	"github.com/timmy/matchsync/internal/repository"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
	log        *logger.Logger
}

func newRootCmd(log *logger.Logger) *cobra.Command {
	opts := &rootOptions{log: log}

	root := &cobra.Command{
		Use:           "matchsync",
		Short:         "Incrementally enrich stored football fixtures from the Sportmonks API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = os.Getenv("CONFIG_PATH")
			}
			cfg, err := config.Load(path)
			if err != nil {
				return &exitError{code: exitAborted, err: fmt.Errorf("load config: %w", err)}
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default ./configs/config.yaml)")

	root.AddCommand(
		newRunCmd(opts),
		newCatalogCmd(opts),
		newCoverageCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		targets   []string
		limit     int
		batchSize int
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich final fixtures with the selected entity kinds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if len(targets) == 0 {
				targets = cfg.Enrich.Targets
			}
			selected, err := mapping.Lookup(targets)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			if cmd.Flags().Changed("limit") {
				cfg.Enrich.MaxParents = limit
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.Enrich.BatchSize = batchSize
			}
			if cmd.Flags().Changed("workers") {
				cfg.Enrich.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return &exitError{code: exitAborted, err: err}
			}

			a, err := app.New(cmd.Context(), cfg, opts.log)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			defer a.Close()

			return runResult(a.Enrich.Run(cmd.Context(), selected))
		},
	}
	cmd.Flags().StringSliceVar(&targets, "targets", nil, fmt.Sprintf("entity kinds to enrich %v", mapping.TargetNames()))
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many parents (0 = all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "parents per batch")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent store workers (1-8)")
	return cmd
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var collections []string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Sync paginated catalog collections (teams, players, ...)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(collections) == 0 {
				collections = opts.cfg.Enrich.Collections
			}
			selected, err := mapping.LookupCollections(collections)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}

			a, err := app.New(cmd.Context(), opts.cfg, opts.log)
			if err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			defer a.Close()

			return runResult(a.Catalog.Sync(cmd.Context(), selected))
		},
	}
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "collections to sync")
	return cmd
}

func newCoverageCmd(opts *rootOptions) *cobra.Command {
	var targets []string

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Report how many final fixtures have rows per entity kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(targets) == 0 {
				targets = mapping.TargetNames()
			}
			selected, err := mapping.Lookup(targets)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Coverage.Report(cmd.Context(), selected)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENTITY\tTABLE\tCOVERED\tTOTAL\tPERCENT")
			for _, c := range report {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f%%\n", c.Entity, c.Table, c.Covered, c.Total, c.Percent)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&targets, "targets", nil, "entity kinds to report")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the fixture, run and target tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := repository.InitDB(&opts.cfg.Database)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			opts.log.Info("Schema migrated")
			return nil
		},
	}
}
