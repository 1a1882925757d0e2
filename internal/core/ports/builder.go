package ports

import (
	"context"

	"github.com/lobbi/launchpad/internal/core/domain"
	"github.com/lobbi/launchpad/internal/recipe"
)

// BuilderService defines operations for building runtime images from a
// recipe: fetch the source tree, install the declared dependencies, and
// produce a tagged image. A build either completes fully or fails; no
// partial image is ever tagged.
type BuilderService interface {
	// BuildImage fetches the recipe's source, renders the build recipe
	// into a Dockerfile and builds the image. It returns the built image
	// or an error if any dependency cannot be resolved or any build step
	// fails.
	BuildImage(ctx context.Context, rec *recipe.Recipe) (domain.Image, error)
}
