package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cognicore/foodsignal/internal/logger"
	"github.com/cognicore/foodsignal/pkg/foodsignal/config"
)

// app carries what every subcommand shares: the viper instance flags are
// bound to and the --config path.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "foodsignal",
		Short: "Food-insecurity risk signals from multilingual news",
		Long: `foodsignal resolves place names in news articles against an administrative
taxonomy, counts food-insecurity risk phrases, and ranks regions by a
weighted composite score per time window and language scope.

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (FOODSIGNAL_*)
  3. Config file (--config)
  4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	flags.String("log-level", logger.DefaultLevel, "log level: debug, info, warn, error")
	flags.String("policy", "", "ambiguity policy: all-candidates, lowest-level, best-rank, skip")
	flags.String("window", "", "time window: all, year, month, week, day")
	flags.String("normalization", "", "cohort normalization: minmax, max")
	flags.StringSlice("scopes", nil, "scoring scopes: all and/or language codes")
	flags.Int("workers", 0, "concurrent shard workers")
	flags.String("out", "", "output directory for TSV tables")

	bind := map[string]string{
		"log.level":             "log-level",
		"taxonomy.policy":       "policy",
		"scoring.window":        "window",
		"scoring.normalization": "normalization",
		"scoring.scopes":        "scopes",
		"pipeline.workers":      "workers",
		"output.dir":            "out",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newRunCmd(a),
		newTaxonomyCmd(a),
		newRunsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads and validates the configuration.
func (a *app) load() (*config.Config, error) {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger builds the run logger from cfg.
func (a *app) logger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "foodsignal %s\n", version)
		},
	}
}

// partialError marks a run that produced output but had scoped failures.
type partialError struct {
	err error
}

func (e *partialError) Error() string { return "run finished with errors: " + e.err.Error() }

func (e *partialError) Unwrap() error { return e.err }
