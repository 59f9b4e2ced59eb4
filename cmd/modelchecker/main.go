// Package main is the entry point for the modelchecker binary.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/floodtools/modelchecker/internal/checker"
	"github.com/floodtools/modelchecker/internal/checks"
	"github.com/floodtools/modelchecker/internal/config"
	"github.com/floodtools/modelchecker/internal/db"
	"github.com/floodtools/modelchecker/internal/raster"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "modelchecker",
		Short:         "Hydraulic model database checker",
		Long:          "Validates hydraulic model SQLite files against the model schema and domain rules.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(newCheckCmd(&configFile))
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newListChecksCmd(&configFile))
	return rootCmd
}

// loadConfig resolves the run configuration: .env, then the YAML file,
// then environment overrides.
func loadConfig(configFile string) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	return cfg, log, nil
}

func selectBackend(cfg *config.Config) raster.Backend {
	switch cfg.RasterBackend {
	case config.BackendGDAL:
		return raster.GDAL()
	case config.BackendTIFF:
		return raster.TIFF()
	default:
		if gdal := raster.GDAL(); gdal.Available() {
			return gdal
		}
		return raster.TIFF()
	}
}

func rasterContext(cfg *config.Config, modelPath string) checks.RasterContext {
	backend := selectBackend(cfg)
	if cfg.Context == config.ContextServer {
		return checks.ServerContext{
			AvailableRasters: cfg.AvailableRasters,
			Rasters:          backend,
		}
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = filepath.Dir(modelPath)
	}
	return checks.LocalContext{BasePath: basePath, Rasters: backend}
}

func newCheckCmd(configFile *string) *cobra.Command {
	var (
		level      string
		allowBeta  bool
		ignore     []string
		rasterCtx  string
		basePath   string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "check <sqlite-file>",
		Short: "Run all checks against a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			// Flags given on the command line win over file and env.
			cmd.Flags().Visit(func(f *pflag.Flag) {
				switch f.Name {
				case "level":
					cfg.Level = level
				case "beta":
					cfg.AllowBeta = allowBeta
				case "ignore":
					cfg.Ignore = ignore
				case "context":
					cfg.Context = rasterCtx
				case "base-path":
					cfg.BasePath = basePath
				}
			})
			if err := cfg.Validate(); err != nil {
				return err
			}
			severity, err := checks.ParseSeverity(cfg.Level)
			if err != nil {
				return err
			}

			modelPath := args[0]
			modelDB, err := db.Open(modelPath)
			if err != nil {
				return err
			}
			defer modelDB.Close() //nolint:errcheck

			registry := checker.NewConfig(checker.Options{
				AllowBeta: cfg.AllowBeta,
				Ignore:    cfg.Ignore,
			})
			chk, err := checker.New(modelDB, registry, rasterContext(cfg, modelPath), log)
			if err != nil {
				return err
			}

			results, err := chk.Errors(cmd.Context(), severity)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close() //nolint:errcheck
				out = f
			}
			for _, r := range results {
				fmt.Fprintln(out, checker.FormatResult(r))
			}
			log.Info("report written", "violations", len(results))
			return nil
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", "info", "Minimum severity to report (info, warning, error)")
	cmd.Flags().BoolVar(&allowBeta, "beta", false, "Include checks on beta features")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Error-code glob patterns to skip (e.g. 02*)")
	cmd.Flags().StringVar(&rasterCtx, "context", config.ContextLocal, "Raster resolution: local or server")
	cmd.Flags().StringVar(&basePath, "base-path", "", "Directory raster paths resolve against (local context)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <sqlite-file>",
		Short: "Migrate a model file to the latest schema version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelDB, err := db.Open(args[0])
			if err != nil {
				return err
			}
			defer modelDB.Close() //nolint:errcheck

			if err := db.RunMigrations(modelDB); err != nil {
				return err
			}
			version, err := db.SchemaVersion(modelDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func newListChecksCmd(configFile *string) *cobra.Command {
	var allowBeta bool

	cmd := &cobra.Command{
		Use:   "list-checks",
		Short: "List all registered checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("beta") {
				cfg.AllowBeta = allowBeta
			}
			registry := checker.NewConfig(checker.Options{
				AllowBeta: cfg.AllowBeta,
				Ignore:    cfg.Ignore,
			})
			for _, chk := range registry.IterChecks(checks.Info) {
				fmt.Fprintf(cmd.OutOrStdout(), "%04d\t%s\t%s\n",
					chk.Code(), chk.Level(), chk.Description())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowBeta, "beta", false, "Include checks on beta features")
	return cmd
}
