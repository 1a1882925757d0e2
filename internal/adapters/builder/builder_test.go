package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGitSource(t *testing.T) {
	assert.True(t, isGitSource("https://github.com/lobbi/bridge.git"))
	assert.True(t, isGitSource("http://git.internal/repo"))
	assert.True(t, isGitSource("git@github.com:lobbi/bridge.git"))
	assert.True(t, isGitSource("ssh://git@github.com/lobbi/bridge.git"))
	assert.False(t, isGitSource("."))
	assert.False(t, isGitSource("/srv/app"))
	assert.False(t, isGitSource("./relative/dir"))
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, "pkg", ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.py"), []byte("app"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pkg", "util.py"), []byte("util"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref"), 0o644))

	require.NoError(t, copyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "app", string(data))

	data, err = os.ReadFile(filepath.Join(dst, "pkg", "util.py"))
	require.NoError(t, err)
	assert.Equal(t, "util", string(data))

	_, err = os.Stat(filepath.Join(dst, ".git"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dst, "pkg", ".git"))
	assert.True(t, os.IsNotExist(err))
}

func TestStageSourceRejectsMissingDir(t *testing.T) {
	err := stageSource(context.Background(), "/does/not/exist", t.TempDir(), zerolog.Nop())
	require.Error(t, err)
}

func TestStageSourceRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	err := stageSource(context.Background(), f, t.TempDir(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestDrainBuildStreamSuccess(t *testing.T) {
	stream := `{"stream":"Step 1/7 : FROM python:3.12-slim"}
{"stream":" ---> abc123"}
{"stream":"Successfully built abc123"}
`
	assert.NoError(t, drainBuildStream(strings.NewReader(stream)))
}

func TestDrainBuildStreamSurfacesError(t *testing.T) {
	stream := `{"stream":"Step 4/7 : RUN pip install --no-cache-dir -r requirements.txt"}
{"errorDetail":{"message":"no matching distribution found for no-such-package==9.9.9"},"error":"no matching distribution found for no-such-package==9.9.9"}
`
	err := drainBuildStream(strings.NewReader(stream))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching distribution")
}

func TestDrainBuildStreamRejectsGarbage(t *testing.T) {
	err := drainBuildStream(strings.NewReader("not json at all"))
	require.Error(t, err)
}
