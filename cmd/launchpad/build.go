package main

import (
	"github.com/spf13/cobra"

	"github.com/lobbi/launchpad/internal/adapters/builder"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the runtime image without starting it",
	Long: `Build fetches the recipe's source, validates the dependency
manifest, and builds the runtime image. A manifest entry that cannot be
resolved fails the build and no image is tagged.`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	b, err := builder.NewBuilderAdapter(logger)
	if err != nil {
		return err
	}

	img, err := b.BuildImage(cmd.Context(), rec)
	if err != nil {
		return err
	}

	logger.Info().Str("tag", img.Tag).Str("build_id", img.BuildID).Msg("build complete")
	return nil
}
