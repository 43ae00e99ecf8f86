package modelrepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hayride-dev/hayride/ai/modelrepo"
	"github.com/hayride-dev/hayride/herr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	written string
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, name modelrepo.Name, destPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, []byte("gguf-bytes"), 0o644)
}

func TestParseNameSplitsRepoAndFile(t *testing.T) {
	n, err := modelrepo.ParseName("TheBloke/Llama-2-7B-GGUF/llama-2-7b.Q4_K_M.gguf")
	require.NoError(t, err)
	assert.Equal(t, "TheBloke/Llama-2-7B-GGUF", n.Repo)
	assert.Equal(t, "llama-2-7b.Q4_K_M.gguf", n.File)
}

func TestParseNameRejectsSingleSegment(t *testing.T) {
	_, err := modelrepo.ParseName("justafile.gguf")
	assert.Error(t, err)
}

func TestDownloadThenGetReturnsCachedPath(t *testing.T) {
	dir := t.TempDir()
	repo, err := modelrepo.New(dir, &fakeFetcher{})
	require.NoError(t, err)

	path, err := repo.Download(context.Background(), "owner/repo/model.gguf")
	require.NoError(t, err)
	assert.FileExists(t, path)

	again, err := repo.Get("owner/repo/model.gguf")
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestGetMissingModelReturnsModelNotFound(t *testing.T) {
	dir := t.TempDir()
	repo, err := modelrepo.New(dir, &fakeFetcher{})
	require.NoError(t, err)

	_, err = repo.Get("owner/repo/missing.gguf")
	require.Error(t, err)
	herrErr, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, herr.KindModelNotFound, herrErr.Kind())
}

func TestDeleteReturnsModelNotFoundAfterSuccessfulDelete(t *testing.T) {
	dir := t.TempDir()
	repo, err := modelrepo.New(dir, &fakeFetcher{})
	require.NoError(t, err)

	path, err := repo.Download(context.Background(), "owner/repo/model.gguf")
	require.NoError(t, err)

	err = repo.Delete("owner/repo/model.gguf")
	require.Error(t, err)
	herrErr, ok := herr.As(err)
	require.True(t, ok)
	assert.Equal(t, herr.KindModelNotFound, herrErr.Kind())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestListReturnsOnlyModelExtensionFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := modelrepo.New(dir, &fakeFetcher{})
	require.NoError(t, err)

	_, err = repo.Download(context.Background(), "owner/repo/model.gguf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owner", "repo", "README.md"), []byte("x"), 0o644))

	entries, err := repo.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"owner/repo/model.gguf"}, entries)
}
