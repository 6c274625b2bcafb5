// Package workspace owns the clone a run works in: it creates it fresh,
// checks out the fix branch, and commits and pushes the result.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ErrNothingToCommit is returned by CommitAll when the tree has no changes
// outside the excluded artifacts.
var ErrNothingToCommit = errors.New("nothing to commit")

// Options describe the workspace to prepare.
type Options struct {
	Dir     string
	RepoURL string
	Branch  string
	Token   string

	// InsteadOf rewrites RepoURL prefixes before cloning.
	InsteadOf map[string]string

	AuthorName  string
	AuthorEmail string

	// Exclude lists slash-separated glob patterns, matched against the
	// workspace-relative path and the base name, that are never committed.
	Exclude []string
}

// Workspace is a fresh clone checked out on the fix branch.
type Workspace struct {
	Dir    string
	Branch string

	repo    *git.Repository
	auth    transport.AuthMethod
	exclude []string
	author  string
	email   string
}

// Prepare removes anything at opts.Dir, clones the repository into it and
// checks out a new branch at the default branch head. For http(s) remotes
// with a token, origin is rewritten to carry the credential.
func Prepare(ctx context.Context, opts Options) (*Workspace, error) {
	if opts.Dir == "" {
		return nil, errors.New("workspace directory is required")
	}
	if opts.Branch == "" {
		return nil, errors.New("branch name is required")
	}
	log := clog.FromContext(ctx)

	remote := RewriteURL(opts.RepoURL, opts.InsteadOf)
	auth := authFor(remote, opts.Token)

	if err := os.RemoveAll(opts.Dir); err != nil {
		return nil, fmt.Errorf("removing old workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Dir), 0755); err != nil {
		return nil, fmt.Errorf("creating workspace parent: %w", err)
	}

	log.Info("cloning repository", "repo", opts.RepoURL, "dir", opts.Dir)
	repo, err := git.PlainCloneContext(ctx, opts.Dir, false, &git.CloneOptions{
		URL:  remote,
		Auth: auth,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", opts.RepoURL, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(opts.Branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
		return nil, fmt.Errorf("creating branch %s: %w", opts.Branch, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: refName}); err != nil {
		return nil, fmt.Errorf("checking out %s: %w", opts.Branch, err)
	}
	log.Info("checked out fix branch", "branch", opts.Branch, "base", head.Name().Short())

	if auth != nil {
		authURL, err := AuthenticatedURL(remote, opts.Token)
		if err != nil {
			return nil, err
		}
		if err := setOrigin(repo, authURL); err != nil {
			return nil, err
		}
	}

	return &Workspace{
		Dir:     opts.Dir,
		Branch:  opts.Branch,
		repo:    repo,
		auth:    auth,
		exclude: opts.Exclude,
		author:  opts.AuthorName,
		email:   opts.AuthorEmail,
	}, nil
}

// Changes returns the workspace-relative paths that differ from HEAD,
// excluding artifacts, sorted.
func (w *Workspace) Changes() ([]string, error) {
	wt, err := w.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	_, paths, err := w.changes(wt)
	return paths, err
}

func (w *Workspace) changes(wt *git.Worktree) (git.Status, []string, error) {
	status, err := wt.Status()
	if err != nil {
		return nil, nil, fmt.Errorf("reading status: %w", err)
	}

	var paths []string
	for p, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		if w.excluded(p) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return status, paths, nil
}

// CommitAll stages every change except excluded artifacts and commits it.
func (w *Workspace) CommitAll(ctx context.Context, message string) (string, error) {
	wt, err := w.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	status, paths, err := w.changes(wt)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", ErrNothingToCommit
	}

	for _, p := range paths {
		if status[p].Worktree == git.Deleted {
			_, err = wt.Remove(p)
		} else {
			_, err = wt.Add(p)
		}
		if err != nil {
			return "", fmt.Errorf("staging %s: %w", p, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  w.author,
			Email: w.email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	clog.FromContext(ctx).Info("committed changes", "commit", hash.String()[:7], "files", len(paths))
	return hash.String(), nil
}

// ForcePush pushes the fix branch to origin, replacing any previous attempt.
func (w *Workspace) ForcePush(ctx context.Context) error {
	ref := plumbing.NewBranchReferenceName(w.Branch)
	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref.String(), ref.String()))

	log := clog.FromContext(ctx)
	log.Info("force pushing", "branch", w.Branch)

	if err := w.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       w.auth,
		Force:      true,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			log.Info("branch already up to date")
			return nil
		}
		return fmt.Errorf("force pushing %s: %w", w.Branch, err)
	}
	return nil
}

func (w *Workspace) excluded(p string) bool {
	base := path.Base(p)
	for _, pattern := range w.exclude {
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// RewriteURL applies the longest matching insteadOf prefix to raw.
func RewriteURL(raw string, insteadOf map[string]string) string {
	best := ""
	for prefix := range insteadOf {
		if strings.HasPrefix(raw, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return raw
	}
	return insteadOf[best] + strings.TrimPrefix(raw, best)
}

// AuthenticatedURL returns raw with token embedded as the userinfo.
// The result is a secret and must not be logged.
func AuthenticatedURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing remote URL: %w", err)
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String(), nil
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func authFor(remote, token string) transport.AuthMethod {
	if token == "" || !isHTTP(remote) {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

func setOrigin(repo *git.Repository, remoteURL string) error {
	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("reading repository config: %w", err)
	}
	origin, ok := cfg.Remotes["origin"]
	if !ok {
		return errors.New("clone has no origin remote")
	}
	origin.URLs = []string{remoteURL}
	if err := repo.Storer.SetConfig(cfg); err != nil {
		return fmt.Errorf("updating origin: %w", err)
	}
	return nil
}
