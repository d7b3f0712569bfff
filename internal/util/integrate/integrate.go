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

// Package integrate materializes one release on its own branch and merges
// the branch into the mainline.
package integrate

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/releasetools/relimport/internal/catalog"
	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/util/materialize"
)

// Stage identifies how far the integration of one release got. On failure
// the release is left at its last successful stage; nothing is rolled back.
type Stage int

const (
	// StageNone means no repository state was created for the release.
	StageNone Stage = iota
	// StageBranchCreated means the release branch exists.
	StageBranchCreated
	// StageSnapshotCommitted means the snapshot commit is on the branch.
	StageSnapshotCommitted
	// StageRebased means the branch was replayed onto the mainline tip.
	StageRebased
	// StageMerged is the terminal stage: the branch is merged into mainline.
	StageMerged
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageBranchCreated:
		return "branch created"
	case StageSnapshotCommitted:
		return "snapshot committed"
	case StageRebased:
		return "rebased onto mainline"
	case StageMerged:
		return "merged to mainline"
	}
	return "unknown stage"
}

// Command integrates one release into the mainline: it creates the release
// branch at the mainline tip, commits the materialized snapshot on it,
// replays it onto the current mainline tip and merges it back with an
// explicit merge commit.
type Command struct {
	// Entry is the release to integrate.
	Entry catalog.Entry

	// Repo is the local repository.
	Repo *gitutil.Repo

	// Mainline is the name of the branch accumulating merged releases.
	Mainline string
}

// Run runs the Command. The returned Stage reports the last stage that
// completed; it is StageMerged exactly when the error is nil. On a rebase
// or merge conflict the branch is left unmerged as an inspectable marker
// and the worktree is restored to the mainline.
func (c Command) Run(ctx context.Context) (Stage, error) {
	const op errors.Op = "integrate.Run"
	branch := c.Entry.BranchName()

	if err := c.Repo.CreateBranch(ctx, branch, c.Mainline); err != nil {
		return StageNone, errors.E(op, c.Repo.Path, err)
	}
	if err := c.Repo.Checkout(ctx, branch); err != nil {
		return StageBranchCreated, errors.E(op, c.Repo.Path, err)
	}
	klog.V(2).Infof("Created branch %q at %q", branch, c.Mainline)

	if err := (materialize.Command{Entry: c.Entry, Repo: c.Repo}).Run(ctx); err != nil {
		return StageBranchCreated, errors.E(op, c.Repo.Path, c.discard(ctx, err))
	}
	message := fmt.Sprintf("Import release %s from %s", c.Entry.Ident, c.Entry.URL)
	if err := c.Repo.Commit(ctx, message); err != nil {
		return StageBranchCreated, errors.E(op, c.Repo.Path, c.discard(ctx, err))
	}

	// Replay the snapshot commit onto the mainline tip so the branch stays
	// attached to history accumulated by earlier releases in this run.
	if err := c.Repo.Rebase(ctx, c.Mainline); err != nil {
		return StageSnapshotCommitted, errors.E(op, c.Repo.Path, c.abandon(ctx, err))
	}

	if err := c.Repo.Checkout(ctx, c.Mainline); err != nil {
		return StageRebased, errors.E(op, c.Repo.Path, err)
	}
	mergeMessage := fmt.Sprintf("Merge release %s", c.Entry.Ident)
	if err := c.Repo.MergeNoFF(ctx, branch, mergeMessage); err != nil {
		return StageRebased, errors.E(op, c.Repo.Path, c.abandon(ctx, err))
	}
	if tip, err := c.Repo.ResolveRef(ctx, c.Mainline); err == nil {
		klog.V(2).Infof("Merged branch %q into %q at %s", branch, c.Mainline, tip)
	}
	return StageMerged, nil
}

// discard drops any half-materialized worktree content and returns to the
// mainline so the next release starts from the last committed state.
func (c Command) discard(ctx context.Context, cause error) error {
	if err := c.Repo.ResetHard(ctx, "HEAD"); err != nil {
		return fmt.Errorf("restoring worktree after failure: %w (failure: %v)", err, cause)
	}
	if err := c.Repo.Clean(ctx); err != nil {
		return fmt.Errorf("restoring worktree after failure: %w (failure: %v)", err, cause)
	}
	if err := c.Repo.Checkout(ctx, c.Mainline); err != nil {
		return fmt.Errorf("restoring mainline after failure: %w (failure: %v)", err, cause)
	}
	return cause
}

// abandon returns the worktree to the mainline after a conflict so the next
// release starts from a clean committed state. The conflicted branch is
// kept.
func (c Command) abandon(ctx context.Context, cause error) error {
	if !gitutil.IsConflict(cause) {
		return cause
	}
	if err := c.Repo.Checkout(ctx, c.Mainline); err != nil {
		return fmt.Errorf("restoring mainline after conflict: %w (conflict: %v)", err, cause)
	}
	return cause
}
