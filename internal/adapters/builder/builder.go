package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lobbi/launchpad/internal/core/domain"
	"github.com/lobbi/launchpad/internal/manifest"
	"github.com/lobbi/launchpad/internal/recipe"
)

// Adapter builds runtime images from a recipe: stage the source, validate
// the dependency manifest, render the Dockerfile, and drive a Docker build.
type Adapter struct {
	cli *client.Client
	log zerolog.Logger
}

func NewBuilderAdapter(log zerolog.Logger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, log: log}, nil
}

// BuildImage produces the tagged runtime image for the recipe. Any failure
// along the way is fatal to the build: no partially-built image is tagged.
func (a *Adapter) BuildImage(ctx context.Context, rec *recipe.Recipe) (domain.Image, error) {
	buildID := uuid.NewString()
	tag := rec.Tag()
	log := a.log.With().Str("build_id", buildID).Str("tag", tag).Logger()

	buildCtx, err := a.prepareContext(ctx, rec, log)
	if err != nil {
		return domain.Image{}, err
	}
	defer buildCtx.Close()

	log.Info().Msg("building image")
	resp, err := a.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true, // Remove intermediate containers
	})
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	if err := drainBuildStream(resp.Body); err != nil {
		return domain.Image{}, fmt.Errorf("build failed: %w", err)
	}

	log.Info().Msg("image built")
	return domain.Image{Tag: tag, BuildID: buildID}, nil
}

// prepareContext stages the source into a temp dir, validates the manifest,
// writes the rendered Dockerfile, and tars the result as a build context.
func (a *Adapter) prepareContext(ctx context.Context, rec *recipe.Recipe, log zerolog.Logger) (io.ReadCloser, error) {
	tmpDir, err := os.MkdirTemp("", "launchpad-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	if err := stageSource(ctx, rec.Build.Source, tmpDir, log); err != nil {
		cleanup()
		return nil, err
	}

	// The manifest must parse before any installer sees it: a manifest
	// that cannot be resolved never produces an image.
	manifestPath := filepath.Join(tmpDir, rec.Build.Manifest)
	m, err := manifest.ParseFile(manifestPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("invalid dependency manifest: %w", err)
	}
	log.Info().Int("requirements", len(m.Requirements)).Msg("manifest validated")

	dockerfile, err := rec.RenderDockerfile()
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write dockerfile: %w", err)
	}

	tar, err := archive.TarWithOptions(tmpDir, &archive.TarOptions{})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}

	return &cleanupReadCloser{ReadCloser: tar, cleanup: cleanup}, nil
}

// stageSource puts a copy of the source tree at dst: a shallow git clone
// for repository URLs, a file copy for local directories.
func stageSource(ctx context.Context, source, dst string, log zerolog.Logger) error {
	if isGitSource(source) {
		log.Info().Str("repo", source).Msg("cloning source")
		_, err := git.PlainCloneContext(ctx, dst, false, &git.CloneOptions{
			URL:   source,
			Depth: 1, // Shallow clone for speed
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo: %w", err)
		}
		return nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("source %s: %w", source, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", source)
	}
	log.Info().Str("dir", source).Msg("copying source tree")
	return copyTree(source, dst)
}

func isGitSource(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "ssh://")
}

// copyTree copies src into dst, skipping version control metadata.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}

		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}

// drainBuildStream consumes the Docker build output and surfaces the first
// error frame. The stream must be read fully for the build to finish.
func drainBuildStream(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg struct {
			Stream      string `json:"stream"`
			Error       string `json:"error"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
		}
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading build output: %w", err)
		}
		if msg.Error != "" {
			return fmt.Errorf("%s", msg.Error)
		}
		if msg.ErrorDetail.Message != "" {
			return fmt.Errorf("%s", msg.ErrorDetail.Message)
		}
	}
}

// cleanupReadCloser removes the staged build directory once the build
// context has been consumed.
type cleanupReadCloser struct {
	io.ReadCloser
	cleanup func()
}

func (c *cleanupReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cleanup()
	return err
}
