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

package gitutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/releasetools/relimport/internal/errors"
	. "github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/printer/fake"
	"github.com/releasetools/relimport/internal/testutil"
)

func TestLocalGitRunner(t *testing.T) {
	testCases := map[string]struct {
		command        string
		args           []string
		expectedStdout string
		expectedErr    *GitExecError
	}{
		"successful command with output to stdout": {
			command:        "branch",
			args:           []string{"--show-current"},
			expectedStdout: "main",
		},
		"failed command with output to stderr": {
			command: "checkout",
			args:    []string{"does-not-exist"},
			expectedErr: &GitExecError{
				StdOut: "",
				StdErr: "error: pathspec 'does-not-exist' did not match any file(s) known to git",
			},
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			dir := t.TempDir()

			runner, err := NewLocalGitRunner(dir)
			if !assert.NoError(t, err) {
				t.FailNow()
			}
			_, err = runner.Run(fake.CtxWithDefaultPrinter(), "init", "--initial-branch=main")
			if !assert.NoError(t, err) {
				t.FailNow()
			}

			rr, err := runner.Run(fake.CtxWithDefaultPrinter(), tc.command, tc.args...)
			if tc.expectedErr != nil {
				var gitExecError *GitExecError
				if !errors.As(err, &gitExecError) {
					t.Error("expected error of type *GitExecError")
					t.FailNow()
				}
				assert.Equal(t, tc.expectedErr.StdOut, strings.TrimSpace(gitExecError.StdOut))
				assert.Equal(t, tc.expectedErr.StdErr, strings.TrimSpace(gitExecError.StdErr))
				return
			}

			if !assert.NoError(t, err) {
				t.FailNow()
			}

			assert.Equal(t, tc.expectedStdout, strings.TrimSpace(rr.Stdout))
		})
	}
}

func TestOpen_notARepository(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(fake.CtxWithDefaultPrinter(), dir)
	if !assert.Error(t, err) {
		t.FailNow()
	}
	var gitExecError *GitExecError
	if !assert.True(t, errors.As(err, &gitExecError)) {
		t.FailNow()
	}
	assert.Equal(t, NotARepository, gitExecError.Type)
}

func TestRepo_branches(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	repo, err := Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	branches, err := repo.ListBranches(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches)

	if !assert.NoError(t, repo.CreateBranch(ctx, "release-5.1.0", "main")) {
		t.FailNow()
	}

	// the current branch is unchanged by branch creation
	current, err := repo.CurrentBranch(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "main", current)

	branches, err = repo.ListBranches(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"main", "release-5.1.0"}, branches)

	has, err := repo.HasBranch(ctx, "release-5.1.0")
	assert.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasBranch(ctx, "release-5.2.0")
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestRepo_resolveRef(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	repo, err := Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	sha, err := repo.ResolveRef(ctx, "main")
	assert.NoError(t, err)
	assert.Len(t, sha, 40)

	_, err = repo.ResolveRef(ctx, "no-such-ref")
	assert.Error(t, err)
}

func TestRepo_stageAndCommit(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	repo, err := Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	clean, err := repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)

	staged, err := repo.HasStagedChanges(ctx)
	assert.NoError(t, err)
	assert.False(t, staged)

	testutil.WriteFile(t, dir, "file.txt", "content\n")
	if !assert.NoError(t, repo.AddAll(ctx)) {
		t.FailNow()
	}

	staged, err = repo.HasStagedChanges(ctx)
	assert.NoError(t, err)
	assert.True(t, staged)

	if !assert.NoError(t, repo.Commit(ctx, "add file")) {
		t.FailNow()
	}

	clean, err = repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)
}

func TestRepo_resetHardAndClean(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	repo, err := Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	testutil.WriteFile(t, dir, "README", "modified\n")
	testutil.WriteFile(t, dir, "untracked.txt", "leftover\n")

	if !assert.NoError(t, repo.ResetHard(ctx, "HEAD")) {
		t.FailNow()
	}
	if !assert.NoError(t, repo.Clean(ctx)) {
		t.FailNow()
	}

	clean, err := repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)

	_, err = os.Stat(filepath.Join(dir, "untracked.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRepo_mergeNoFF(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	repo, err := Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	if !assert.NoError(t, repo.CreateBranch(ctx, "feature", "main")) {
		t.FailNow()
	}
	if !assert.NoError(t, repo.Checkout(ctx, "feature")) {
		t.FailNow()
	}
	testutil.Commit(t, dir, "feature work", map[string]string{"feature.txt": "work\n"})

	if !assert.NoError(t, repo.Checkout(ctx, "main")) {
		t.FailNow()
	}
	if !assert.NoError(t, repo.MergeNoFF(ctx, "feature", "merge feature")) {
		t.FailNow()
	}

	// a merge commit must be recorded even though a fast-forward was
	// possible
	out := testutil.RunGit(t, dir, "log", "--merges", "--format=%s", "main")
	assert.Contains(t, out, "merge feature")

	merged, err := repo.IsAncestor(ctx, "feature", "main")
	assert.NoError(t, err)
	assert.True(t, merged)
}

func TestRepo_mergeConflict(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	repo, err := Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	if !assert.NoError(t, repo.CreateBranch(ctx, "conflicting", "main")) {
		t.FailNow()
	}
	if !assert.NoError(t, repo.Checkout(ctx, "conflicting")) {
		t.FailNow()
	}
	testutil.Commit(t, dir, "branch change", map[string]string{"README": "branch version\n"})

	if !assert.NoError(t, repo.Checkout(ctx, "main")) {
		t.FailNow()
	}
	testutil.Commit(t, dir, "mainline change", map[string]string{"README": "mainline version\n"})

	err = repo.MergeNoFF(ctx, "conflicting", "merge conflicting")
	if !assert.Error(t, err) {
		t.FailNow()
	}
	assert.True(t, IsConflict(err))
	var gitExecError *GitExecError
	if assert.True(t, errors.As(err, &gitExecError)) {
		assert.Equal(t, MergeConflict, gitExecError.Type)
	}

	// the merge was aborted, leaving the worktree clean on main
	clean, err := repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)

	merged, err := repo.IsAncestor(ctx, "conflicting", "main")
	assert.NoError(t, err)
	assert.False(t, merged)
}

func TestRepo_rebaseConflict(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	repo, err := Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	if !assert.NoError(t, repo.CreateBranch(ctx, "diverged", "main")) {
		t.FailNow()
	}
	if !assert.NoError(t, repo.Checkout(ctx, "diverged")) {
		t.FailNow()
	}
	testutil.Commit(t, dir, "branch change", map[string]string{"README": "branch version\n"})

	if !assert.NoError(t, repo.Checkout(ctx, "main")) {
		t.FailNow()
	}
	testutil.Commit(t, dir, "mainline change", map[string]string{"README": "mainline version\n"})

	if !assert.NoError(t, repo.Checkout(ctx, "diverged")) {
		t.FailNow()
	}
	err = repo.Rebase(ctx, "main")
	if !assert.Error(t, err) {
		t.FailNow()
	}
	assert.True(t, IsConflict(err))
	var gitExecError *GitExecError
	if assert.True(t, errors.As(err, &gitExecError)) {
		assert.Equal(t, RebaseConflict, gitExecError.Type)
	}

	// the rebase was aborted, leaving the branch at its pre-rebase state
	clean, err := repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)
	current, err := repo.CurrentBranch(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "diverged", current)
}
