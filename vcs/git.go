// Package vcs records index changes in a git repository.
package vcs

import (
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
)

// Repo is a git working tree that commits one index file at a time.
type Repo struct {
	dir  string
	repo *git.Repository
}

// Init creates a new repository in dir.
func Init(dir string) (*Repo, error) {
	r, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, wrapGitError(dir, "failed to initialize repository", err)
	}
	return &Repo{dir: dir, repo: r}, nil
}

// Open opens the repository at dir.
func Open(dir string) (*Repo, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		return nil, wrapGitError(dir, "failed to open repository", err)
	}
	return &Repo{dir: dir, repo: r}, nil
}

// Commit stages relPath and commits it with message.
func (r *Repo) Commit(relPath, message string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return wrapGitError(r.dir, "failed to open worktree", err)
	}
	if err := stageFiles(wt, relPath); err != nil {
		return wrapGitError(r.dir, "failed to stage changes", err)
	}
	author, err := r.getGitAuthor()
	if err != nil {
		return err
	}
	// A forced re-publish of an identical record leaves nothing staged.
	opts := &git.CommitOptions{Author: author, AllowEmptyCommits: true}
	if _, err := wt.Commit(message, opts); err != nil {
		return wrapGitError(r.dir, "failed to commit changes", err)
	}
	return nil
}

// Head returns the message of the latest commit.
func (r *Repo) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", wrapGitError(r.dir, "failed to resolve HEAD", err)
	}
	c, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", wrapGitError(r.dir, "failed to read HEAD commit", err)
	}
	return c.Message, nil
}

func stageFiles(wt *git.Worktree, paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no paths provided to stage")
	}
	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return errors.Wrapf(err, "git add %s", p)
		}
	}
	return nil
}

// getGitAuthor takes the identity from the merged local, global and system
// config, then from the GIT_AUTHOR_* and GIT_COMMITTER_* environment.
func (r *Repo) getGitAuthor() (*object.Signature, error) {
	cfg, err := r.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return nil, wrapGitError(r.dir, "failed to read git config", err)
	}
	if cfg.User.Name != "" && cfg.User.Email != "" {
		return &object.Signature{Name: cfg.User.Name, Email: cfg.User.Email, When: time.Now()}, nil
	}
	for _, prefix := range []string{"GIT_AUTHOR", "GIT_COMMITTER"} {
		name, email := os.Getenv(prefix+"_NAME"), os.Getenv(prefix+"_EMAIL")
		if name != "" && email != "" {
			return &object.Signature{Name: name, Email: email, When: time.Now()}, nil
		}
	}
	return nil, errors.Errorf("could not retrieve git user.name or user.email for %s", r.dir)
}

func wrapGitError(dir, msg string, err error) error {
	return errors.Wrapf(err, "%s in %s", msg, dir)
}
