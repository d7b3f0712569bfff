// Copyright 2025 The relimport Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gitutil runs git commands in a local repository.
package gitutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"k8s.io/klog/v2"

	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/types"
)

// NewLocalGitRunner returns a new GitLocalRunner for a local repository.
func NewLocalGitRunner(dir string) (*GitLocalRunner, error) {
	const op errors.Op = "gitutil.NewLocalGitRunner"
	p, err := exec.LookPath("git")
	if err != nil {
		return nil, errors.E(op, errors.Git,
			&GitExecError{
				Type: GitExecutableNotFound,
				Err:  fmt.Errorf("no 'git' program on path: %w", err),
			})
	}

	return &GitLocalRunner{
		gitPath: p,
		Dir:     dir,
	}, nil
}

// GitLocalRunner runs git commands in a local git repo.
type GitLocalRunner struct {
	// Path to the git executable.
	gitPath string

	// Dir is the directory the commands are run in.
	Dir string
}

type RunResult struct {
	Stdout string
	Stderr string
}

// Run runs a git command.
// Omit the 'git' part of the command.
// The first return value contains the output to Stdout and Stderr when
// running the command.
func (g *GitLocalRunner) Run(ctx context.Context, command string, args ...string) (RunResult, error) {
	const op errors.Op = "gitutil.Run"

	cmd := exec.CommandContext(ctx, g.gitPath, append([]string{command}, args...)...)
	cmd.Dir = g.Dir
	cmd.Env = os.Environ()

	cmdStdout := &bytes.Buffer{}
	cmdStderr := &bytes.Buffer{}
	cmd.Stdout = cmdStdout
	cmd.Stderr = cmdStderr

	klog.V(4).Infof("running `git %s %s` in %q", command, strings.Join(args, " "), g.Dir)
	err := cmd.Run()
	if err != nil {
		gitErr := &GitExecError{
			Command: command,
			Args:    args,
			Err:     err,
			StdOut:  cmdStdout.String(),
			StdErr:  cmdStderr.String(),
		}
		gitErr.Type = determineErrorType(command, gitErr.StdOut, gitErr.StdErr)
		return RunResult{}, errors.E(op, errors.Git, gitErr)
	}
	return RunResult{
		Stdout: cmdStdout.String(),
		Stderr: cmdStderr.String(),
	}, nil
}

// Repo provides the repository operations used by the importer on top of a
// GitLocalRunner. All operations run against the repository worktree the
// Repo was opened with.
type Repo struct {
	// Path is the absolute path to the repository worktree.
	Path types.UniquePath

	runner *GitLocalRunner
}

// Open returns a Repo for the worktree at dir. It fails if dir is not inside
// a git worktree.
func Open(ctx context.Context, dir string) (*Repo, error) {
	const op errors.Op = "gitutil.Open"
	runner, err := NewLocalGitRunner(dir)
	if err != nil {
		return nil, errors.E(op, types.UniquePath(dir), err)
	}
	if _, err := runner.Run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return nil, errors.E(op, types.UniquePath(dir), err)
	}
	return &Repo{
		Path:   types.UniquePath(dir),
		runner: runner,
	}, nil
}

// CurrentBranch returns the name of the currently checked out branch. The
// name is empty if HEAD is detached.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	const op errors.Op = "gitutil.CurrentBranch"
	rr, err := r.runner.Run(ctx, "branch", "--show-current")
	if err != nil {
		return "", errors.E(op, r.Path, err)
	}
	return strings.TrimSpace(rr.Stdout), nil
}

// ListBranches returns the names of all local branches. The result is
// recomputed on every call since branches may be created externally between
// invocations.
func (r *Repo) ListBranches(ctx context.Context) ([]string, error) {
	const op errors.Op = "gitutil.ListBranches"
	rr, err := r.runner.Run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, errors.E(op, r.Path, err)
	}

	var branches []string
	scanner := bufio.NewScanner(strings.NewReader(rr.Stdout))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			branches = append(branches, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(op, r.Path, errors.Git,
			fmt.Errorf("error parsing response from git: %w", err))
	}
	return branches, nil
}

// HasBranch returns true if a local branch with the provided name exists.
func (r *Repo) HasBranch(ctx context.Context, name string) (bool, error) {
	const op errors.Op = "gitutil.HasBranch"
	branches, err := r.ListBranches(ctx)
	if err != nil {
		return false, errors.E(op, r.Path, err)
	}
	for _, b := range branches {
		if b == name {
			return true, nil
		}
	}
	return false, nil
}

// IsClean returns true if the worktree has no uncommitted or untracked
// changes.
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	const op errors.Op = "gitutil.IsClean"
	rr, err := r.runner.Run(ctx, "status", "--porcelain")
	if err != nil {
		return false, errors.E(op, r.Path, err)
	}
	return strings.TrimSpace(rr.Stdout) == "", nil
}

// ResolveRef resolves a ref to a full commit SHA.
func (r *Repo) ResolveRef(ctx context.Context, ref string) (string, error) {
	const op errors.Op = "gitutil.ResolveRef"
	rr, err := r.runner.Run(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		AmendGitExecError(err, func(e *GitExecError) {
			e.Ref = ref
		})
		return "", errors.E(op, r.Path, err)
	}
	return strings.TrimSpace(rr.Stdout), nil
}

// CreateBranch creates a new branch with the provided name pointing at the
// start ref. The current branch is left unchanged.
func (r *Repo) CreateBranch(ctx context.Context, name, start string) error {
	const op errors.Op = "gitutil.CreateBranch"
	if _, err := r.runner.Run(ctx, "branch", name, start); err != nil {
		AmendGitExecError(err, func(e *GitExecError) {
			e.Ref = name
		})
		return errors.E(op, r.Path, err)
	}
	return nil
}

// Checkout switches the worktree to the provided ref.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	const op errors.Op = "gitutil.Checkout"
	if _, err := r.runner.Run(ctx, "checkout", ref); err != nil {
		AmendGitExecError(err, func(e *GitExecError) {
			e.Ref = ref
		})
		return errors.E(op, r.Path, err)
	}
	return nil
}

// AddAll stages all changes in the worktree, including deletions and
// untracked files.
func (r *Repo) AddAll(ctx context.Context) error {
	const op errors.Op = "gitutil.AddAll"
	if _, err := r.runner.Run(ctx, "add", "-A"); err != nil {
		return errors.E(op, r.Path, err)
	}
	return nil
}

// HasStagedChanges returns true if the index differs from HEAD.
func (r *Repo) HasStagedChanges(ctx context.Context) (bool, error) {
	const op errors.Op = "gitutil.HasStagedChanges"
	rr, err := r.runner.Run(ctx, "status", "--porcelain")
	if err != nil {
		return false, errors.E(op, r.Path, err)
	}
	return strings.TrimSpace(rr.Stdout) != "", nil
}

// ResetHard resets the index and worktree to the provided ref, discarding
// any local changes.
func (r *Repo) ResetHard(ctx context.Context, ref string) error {
	const op errors.Op = "gitutil.ResetHard"
	if _, err := r.runner.Run(ctx, "reset", "--hard", ref); err != nil {
		AmendGitExecError(err, func(e *GitExecError) {
			e.Ref = ref
		})
		return errors.E(op, r.Path, err)
	}
	return nil
}

// Clean removes untracked files and directories from the worktree.
func (r *Repo) Clean(ctx context.Context) error {
	const op errors.Op = "gitutil.Clean"
	if _, err := r.runner.Run(ctx, "clean", "-fd"); err != nil {
		return errors.E(op, r.Path, err)
	}
	return nil
}

// Commit records the staged changes with the provided message.
func (r *Repo) Commit(ctx context.Context, message string) error {
	const op errors.Op = "gitutil.Commit"
	if _, err := r.runner.Run(ctx, "commit", "-m", message); err != nil {
		return errors.E(op, r.Path, err)
	}
	return nil
}

// Rebase replays the commits of the current branch onto the provided ref.
// If the replay hits a conflict, the rebase is aborted so the worktree is
// returned to its pre-rebase state, and an error with type RebaseConflict
// is returned.
func (r *Repo) Rebase(ctx context.Context, onto string) error {
	const op errors.Op = "gitutil.Rebase"
	if _, err := r.runner.Run(ctx, "rebase", onto); err != nil {
		AmendGitExecError(err, func(e *GitExecError) {
			e.Ref = onto
		})
		if IsConflict(err) {
			// Restore the worktree before reporting the conflict.
			if _, abortErr := r.runner.Run(ctx, "rebase", "--abort"); abortErr != nil {
				return errors.E(op, r.Path, abortErr)
			}
		}
		return errors.E(op, r.Path, err)
	}
	return nil
}

// MergeNoFF merges the provided branch into the current branch, always
// recording a merge commit even when a fast-forward would be possible. If
// the merge hits a conflict, it is aborted so the worktree is returned to
// its pre-merge state, and an error with type MergeConflict is returned.
func (r *Repo) MergeNoFF(ctx context.Context, branch, message string) error {
	const op errors.Op = "gitutil.MergeNoFF"
	if _, err := r.runner.Run(ctx, "merge", "--no-ff", "-m", message, branch); err != nil {
		AmendGitExecError(err, func(e *GitExecError) {
			e.Ref = branch
		})
		if IsConflict(err) {
			if _, abortErr := r.runner.Run(ctx, "merge", "--abort"); abortErr != nil {
				return errors.E(op, r.Path, abortErr)
			}
		}
		return errors.E(op, r.Path, err)
	}
	return nil
}

// IsAncestor returns true if ref is an ancestor of the provided tip, i.e.
// the commits of ref are already part of tip's history.
func (r *Repo) IsAncestor(ctx context.Context, ref, tip string) (bool, error) {
	const op errors.Op = "gitutil.IsAncestor"
	_, err := r.runner.Run(ctx, "merge-base", "--is-ancestor", ref, tip)
	if err == nil {
		return true, nil
	}
	var gitErr *GitExecError
	if errors.As(err, &gitErr) {
		if exitErr, ok := gitErr.Err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
	}
	return false, errors.E(op, r.Path, err)
}
