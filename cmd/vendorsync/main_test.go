package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power-atlas/vendorsync"
)

func stubGitlink(t *testing.T, sha string, err error) {
	t.Helper()
	orig := gitlinkSHA
	gitlinkSHA = func(ctx context.Context, repoRoot, submodulePath string) (string, error) {
		assert.Equal(t, vendorsync.DefaultSubmodulePath, submodulePath)
		return sha, err
	}
	t.Cleanup(func() { gitlinkSHA = orig })
}

func writeRepoVersionFile(t *testing.T, content string) (string, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, vendorsync.DefaultVersionFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return root, path
}

func TestSyncVendorCheckReportsDrift(t *testing.T) {
	content := `{"pinned_commit_sha": "old"}`
	root, path := writeRepoVersionFile(t, content)
	stubGitlink(t, "new", nil)

	code, err := syncVendor(context.Background(), root, vendorsync.DefaultSubmodulePath, vendorsync.DefaultVersionFile, true, nil)
	require.NoError(t, err)
	assert.Equal(t, vendorsync.ExitOutOfSync, code)

	got, _ := os.ReadFile(path)
	assert.Equal(t, content, string(got))
}

func TestSyncVendorCheckInSync(t *testing.T) {
	root, _ := writeRepoVersionFile(t, `{"pinned_commit_sha": "abc"}`)
	stubGitlink(t, "abc", nil)

	code, err := syncVendor(context.Background(), root, vendorsync.DefaultSubmodulePath, vendorsync.DefaultVersionFile, true, nil)
	require.NoError(t, err)
	assert.Equal(t, vendorsync.ExitInSync, code)
}

func TestSyncVendorRewritesWithoutCheck(t *testing.T) {
	root, path := writeRepoVersionFile(t, `{"pinned_commit_sha": "old"}`)
	stubGitlink(t, "new", nil)

	code, err := syncVendor(context.Background(), root, vendorsync.DefaultSubmodulePath, vendorsync.DefaultVersionFile, false, nil)
	require.NoError(t, err)
	assert.Equal(t, vendorsync.ExitInSync, code)

	got, _ := os.ReadFile(path)
	assert.Equal(t, "{\n  \"pinned_commit_sha\": \"new\"\n}\n", string(got))
}

func TestSyncVendorGitFailure(t *testing.T) {
	root, _ := writeRepoVersionFile(t, `{"pinned_commit_sha": "old"}`)
	stubGitlink(t, "", errors.New("not a git repository"))

	code, err := syncVendor(context.Background(), root, vendorsync.DefaultSubmodulePath, vendorsync.DefaultVersionFile, true, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, code)
}
