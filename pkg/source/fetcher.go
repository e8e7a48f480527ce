// pkg/source/fetcher.go

package source

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	cerr "github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/hermes_err"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/telemetry"
)

// TokenUser is the basic-auth user name sent with the access token.
// GitHub, GitLab and Gitea accept any non-empty name for token auth.
const TokenUser = "oauth2"

const originRemote = "origin"

// Request names what to fetch and where to put it.
type Request struct {
	RepoURL string
	Token   string
	Branch  string
	WorkDir string
}

// Result describes the working copy after a fetch.
type Result struct {
	WorkDir string
	Cloned  bool
	// Stale is set when an existing copy could not be updated and is used as is.
	Stale     bool
	UpdateErr error
	Commit    string
	Branch    string
}

// Fetcher produces an up-to-date working copy of a branch.
type Fetcher struct {
	// Progress receives git transfer progress. Nil discards it.
	Progress io.Writer
}

// Fetch clones req.RepoURL into req.WorkDir, or updates the copy already there,
// then checks out req.Branch. A failed update of an existing copy is tolerated
// and reported in Result.UpdateErr.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	ctx, span := telemetry.Start(ctx, "source.Fetch", attribute.String("branch", req.Branch))
	defer span.End()
	logger := otelzap.Ctx(ctx)

	auth := &http.BasicAuth{Username: TokenUser, Password: req.Token}
	res := &Result{WorkDir: req.WorkDir, Branch: req.Branch}

	// ASSESS
	repo, err := git.PlainOpen(req.WorkDir)
	switch {
	case err == nil:
		logger.Info("Updating existing working copy", zap.String("work_dir", req.WorkDir), zap.String("branch", req.Branch))
		if uerr := f.update(ctx, repo, req, auth); uerr != nil {
			span.RecordError(uerr)
			logger.Warn("Could not update working copy, using it as is",
				zap.String("work_dir", req.WorkDir), zap.Error(uerr))
			res.Stale = true
			res.UpdateErr = uerr
		}
	case cerr.Is(err, git.ErrRepositoryNotExists):
		// INTERVENE
		logger.Info("Cloning repository", zap.String("repo", req.RepoURL), zap.String("work_dir", req.WorkDir))
		repo, err = f.clone(ctx, req, auth)
		if err != nil {
			return nil, err
		}
		res.Cloned = true
	default:
		return nil, hermes_err.New(hermes_err.SourceFetchFailed, "fetch-source",
			"cannot open working copy at "+req.WorkDir, err,
			"Remove "+req.WorkDir+" or choose another --workspace")
	}

	if err := checkout(repo, req.Branch); err != nil {
		return nil, hermes_err.New(hermes_err.SourceFetchFailed, "fetch-source",
			"cannot check out branch "+req.Branch, err,
			"Check that branch "+req.Branch+" exists in "+req.RepoURL)
	}

	// EVALUATE
	head, err := repo.Head()
	if err != nil {
		return nil, hermes_err.New(hermes_err.SourceFetchFailed, "fetch-source", "cannot resolve HEAD", err)
	}
	res.Commit = head.Hash().String()
	logger.Info("Working copy ready",
		zap.String("commit", res.Commit),
		zap.Bool("cloned", res.Cloned),
		zap.Bool("stale", res.Stale))
	return res, nil
}

func (f *Fetcher) clone(ctx context.Context, req Request, auth *http.BasicAuth) (*git.Repository, error) {
	existed, err := emptyOrMissing(req.WorkDir)
	if err != nil {
		return nil, hermes_err.New(hermes_err.SourceFetchFailed, "fetch-source",
			"cannot clone into "+req.WorkDir, err,
			"Move the files out of "+req.WorkDir+" or choose another --workspace")
	}

	repo, err := git.PlainCloneContext(ctx, req.WorkDir, false, &git.CloneOptions{
		URL:        req.RepoURL,
		Auth:       auth,
		RemoteName: originRemote,
		Progress:   f.Progress,
	})
	if err != nil {
		// A partial clone would be mistaken for a working copy next time.
		// The directory was empty or absent before, so nothing else is lost.
		if existed {
			clearDir(req.WorkDir)
		} else {
			_ = os.RemoveAll(req.WorkDir)
		}
		return nil, hermes_err.New(hermes_err.SourceFetchFailed, "fetch-source",
			"failed to clone "+req.RepoURL, err,
			"Check the repository URL and that the token can read it")
	}
	return repo, nil
}

// emptyOrMissing reports whether dir exists. It fails when dir holds files or
// is not a directory, since a clone must never land on top of them.
func emptyOrMissing(dir string) (existed bool, err error) {
	entries, err := os.ReadDir(dir)
	switch {
	case cerr.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return true, err
	case len(entries) > 0:
		return true, cerr.Newf("%s is not empty and is not a git repository", dir)
	}
	return true, nil
}

func clearDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = os.RemoveAll(filepath.Join(dir, e.Name()))
	}
}

// update fetches origin, switches to the branch and fast-forwards it.
func (f *Fetcher) update(ctx context.Context, repo *git.Repository, req Request, auth *http.BasicAuth) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: originRemote,
		Auth:       auth,
		Progress:   f.Progress,
	})
	if err != nil && !cerr.Is(err, git.NoErrAlreadyUpToDate) {
		return cerr.Wrap(err, "fetch origin")
	}
	if err := checkout(repo, req.Branch); err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return cerr.Wrap(err, "open worktree")
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    originRemote,
		ReferenceName: plumbing.NewBranchReferenceName(req.Branch),
		SingleBranch:  true,
		Auth:          auth,
		Progress:      f.Progress,
	})
	if err != nil && !cerr.Is(err, git.NoErrAlreadyUpToDate) {
		return cerr.Wrapf(err, "pull %s", req.Branch)
	}
	return nil
}

// checkout switches to the local branch, creating it from origin/<branch> when missing.
func checkout(repo *git.Repository, branch string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return cerr.Wrap(err, "open worktree")
	}
	local := plumbing.NewBranchReferenceName(branch)
	if _, err := repo.Reference(local, true); err == nil {
		return wt.Checkout(&git.CheckoutOptions{Branch: local})
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(originRemote, branch), true)
	if err != nil {
		return cerr.Wrapf(err, "branch %s not found locally or on %s", branch, originRemote)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: local, Hash: remoteRef.Hash(), Create: true}); err != nil {
		return err
	}
	err = repo.CreateBranch(&gitconfig.Branch{Name: branch, Remote: originRemote, Merge: local})
	if err != nil && !cerr.Is(err, git.ErrBranchExists) {
		return cerr.Wrapf(err, "track %s/%s", originRemote, branch)
	}
	return nil
}
