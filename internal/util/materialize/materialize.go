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

// Package materialize turns one release archive into staged changes in the
// repository worktree.
package materialize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"

	"github.com/releasetools/relimport/internal/catalog"
	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/printer"
	"github.com/releasetools/relimport/internal/util/archive"
	"github.com/releasetools/relimport/internal/util/httputil"
)

// EmptySnapshotError is returned when the extracted archive is identical to
// the current worktree content, so there is nothing to commit.
type EmptySnapshotError struct {
	Ident string
}

func (e *EmptySnapshotError) Error() string {
	return fmt.Sprintf("release %s: archive content identical to current tree, nothing to commit", e.Ident)
}

// Command downloads the archive for one catalog entry and replaces the
// worktree content with it, leaving the result staged for commit.
type Command struct {
	// Entry is the release to materialize.
	Entry catalog.Entry

	// Repo is the repository whose worktree receives the snapshot.
	Repo *gitutil.Repo
}

// Run runs the Command. On success the worktree matches exactly the freshly
// extracted archive content (a full replace, not an overlay) and all
// resulting changes are staged. The worktree is only touched after the
// archive has been downloaded and extracted into scratch space, so a failed
// download or extraction leaves the worktree at the last committed state.
func (c Command) Run(ctx context.Context) error {
	const op errors.Op = "materialize.Run"
	pr := printer.FromContextOrDie(ctx)

	scratch, err := os.MkdirTemp("", "relimport-")
	if err != nil {
		return errors.E(op, errors.Internal, fmt.Errorf("error creating scratch directory: %w", err))
	}
	defer os.RemoveAll(scratch)

	archivePath := filepath.Join(scratch, filepath.Base(c.Entry.URL))
	if err := httputil.FetchFile(ctx, c.Entry.URL, archivePath); err != nil {
		return errors.E(op, errors.Download, c.Repo.Path, err)
	}

	treeDir := filepath.Join(scratch, "tree")
	if err := os.Mkdir(treeDir, 0700); err != nil {
		return errors.E(op, errors.Internal, err)
	}
	if err := archive.ExtractStripped(archivePath, treeDir); err != nil {
		return errors.E(op, errors.Archive, c.Repo.Path, err)
	}

	if err := replaceWorktree(ctx, treeDir, c.Repo.Path.String()); err != nil {
		return errors.E(op, errors.IO, c.Repo.Path, err)
	}

	if err := c.Repo.AddAll(ctx); err != nil {
		return errors.E(op, c.Repo.Path, err)
	}

	staged, err := c.Repo.HasStagedChanges(ctx)
	if err != nil {
		return errors.E(op, c.Repo.Path, err)
	}
	if !staged {
		return errors.E(op, c.Repo.Path, &EmptySnapshotError{Ident: c.Entry.Ident})
	}
	pr.Printf("Materialized release %s from %q.\n", c.Entry.Ident, c.Entry.URL)
	return nil
}

// replaceWorktree makes the worktree at dest contain exactly the tree at
// src. Files present before that are absent from src are removed; only the
// .git directory is preserved.
func replaceWorktree(ctx context.Context, src, dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dest, entry.Name())); err != nil {
			return err
		}
	}
	return copyDir(ctx, src, dest)
}

// copyDir copies a src directory to a dst directory, ignoring symlinks.
func copyDir(ctx context.Context, srcDir string, dstDir string) error {
	pr := printer.FromContextOrDie(ctx)
	opts := copy.Options{
		OnSymlink: func(src string) copy.SymlinkAction {
			// try to print relative path of symlink
			// if we can, else absolute path which is not
			// pretty because it contains path to the scratch dir
			displayPath, err := filepath.Rel(srcDir, src)
			if err != nil {
				displayPath = src
			}
			pr.Printf("[Warn] Ignoring symlink %q \n", displayPath)
			return copy.Skip
		},
	}
	return copy.Copy(srcDir, dstDir, opts)
}
