package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
)

// initRepo creates a repository with one commit on master and a main branch.
func initRepo(t *testing.T, dir string) plumbing.Hash {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM nginx\n"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Dockerfile")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("main"), Create: true}))
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("master")}))
	return hash
}

func TestFetchExistingCopyWithoutOriginIsStale(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	hash := initRepo(t, dir)

	res, err := (&Fetcher{}).Fetch(context.Background(), Request{
		RepoURL: "https://git.example/app.git",
		Token:   "secret",
		Branch:  "main",
		WorkDir: dir,
	})
	require.NoError(t, err)
	assert.False(t, res.Cloned)
	assert.True(t, res.Stale)
	require.Error(t, res.UpdateErr)
	assert.Equal(t, hash.String(), res.Commit)

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, plumbing.NewBranchReferenceName("main"), head.Name())
}

func TestFetchExistingCopyUnknownBranch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	initRepo(t, dir)

	_, err := (&Fetcher{}).Fetch(context.Background(), Request{Branch: "release", WorkDir: dir})
	require.Error(t, err)
	assert.True(t, hermes_err.IsKind(err, hermes_err.SourceFetchFailed))
}

func TestFetchCloneFailureRemovesPartialCopy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := (&Fetcher{}).Fetch(ctx, Request{
		RepoURL: "http://127.0.0.1:1/app.git",
		Token:   "secret",
		Branch:  "main",
		WorkDir: dir,
	})
	require.Error(t, err)
	assert.True(t, hermes_err.IsKind(err, hermes_err.SourceFetchFailed))
	assert.NotContains(t, err.Error(), "secret")

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchCloneLeavesExistingFilesAlone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(dir, 0755))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("keep me\n"), 0644))

	_, err := (&Fetcher{}).Fetch(context.Background(), Request{
		RepoURL: "http://127.0.0.1:1/app.git",
		Token:   "secret",
		Branch:  "main",
		WorkDir: dir,
	})
	require.Error(t, err)
	assert.True(t, hermes_err.IsKind(err, hermes_err.SourceFetchFailed))
	assert.Contains(t, err.Error(), "not empty")

	data, err := os.ReadFile(notes)
	require.NoError(t, err)
	assert.Equal(t, "keep me\n", string(data))
}

func TestFetchCloneFailureKeepsEmptyWorkDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(dir, 0755))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := (&Fetcher{}).Fetch(ctx, Request{
		RepoURL: "http://127.0.0.1:1/app.git",
		Token:   "secret",
		Branch:  "main",
		WorkDir: dir,
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchClonesThenUpdates(t *testing.T) {
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	first := initRepo(t, upstream)
	dir := filepath.Join(root, "work", "app")

	req := Request{RepoURL: upstream, Token: "ghp_s3cret", Branch: "main", WorkDir: dir}
	res, err := (&Fetcher{}).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Cloned)
	assert.False(t, res.Stale)
	assert.Equal(t, first.String(), res.Commit)
	assert.FileExists(t, filepath.Join(dir, "Dockerfile"))

	gitConfig, err := os.ReadFile(filepath.Join(dir, ".git", "config"))
	require.NoError(t, err)
	assert.NotContains(t, string(gitConfig), "ghp_s3cret")

	// New commit upstream on main.
	repo, err := git.PlainOpen(upstream)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("main")}))
	require.NoError(t, os.WriteFile(filepath.Join(upstream, "compose.yaml"), []byte("services: {}\n"), 0644))
	_, err = wt.Add("compose.yaml")
	require.NoError(t, err)
	second, err := wt.Commit("add compose", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	res, err = (&Fetcher{}).Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Cloned)
	assert.False(t, res.Stale)
	assert.NoError(t, res.UpdateErr)
	assert.Equal(t, second.String(), res.Commit)
	assert.FileExists(t, filepath.Join(dir, "compose.yaml"))
}

func TestFetchRejectsNonRepositoryDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git"), []byte("garbage"), 0644))

	_, err := (&Fetcher{}).Fetch(context.Background(), Request{Branch: "main", WorkDir: dir})
	require.Error(t, err)
	assert.True(t, hermes_err.IsKind(err, hermes_err.SourceFetchFailed))
}
