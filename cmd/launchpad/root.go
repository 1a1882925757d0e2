package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lobbi/launchpad/internal/recipe"
)

var (
	recipeFile string
	logLevel   string

	// rec and logger are populated by PersistentPreRunE and shared with
	// all subcommands.
	rec    *recipe.Recipe
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "launchpad",
	Short: "Build-then-run bootstrapper for a containerized HTTP service",
	Long: `Launchpad reads a deploy recipe, builds a runtime image from the
declared dependency manifest and source tree, and starts exactly one
container serving HTTP on the advertised port. Build or startup failure
exits non-zero; restart policy belongs to the hosting platform.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&recipeFile, "recipe", "launchpad.yml", "path to the deploy recipe (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger = newLogger(logLevel)

		var err error
		rec, err = recipe.Load(recipeFile)
		if err != nil {
			return fmt.Errorf("loading recipe: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(upCmd)
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Str("component", "launchpad").Logger()
}
