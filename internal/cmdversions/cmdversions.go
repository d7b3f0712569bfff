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

// Package cmdversions contains the versions command.
package cmdversions

import (
	"context"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/releasetools/relimport/internal/catalog"
	"github.com/releasetools/relimport/internal/config"
	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/printer"
	"github.com/releasetools/relimport/internal/types"
	"github.com/releasetools/relimport/internal/util/runner"
)

// Release statuses shown in the listing.
const (
	statusImported  = "imported"
	statusAbandoned = "abandoned"
	statusMissing   = "missing"
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{
		ctx: ctx,
	}
	c := &cobra.Command{
		Use:   "versions [REPO_DIR]",
		Short: "List catalog releases and their local import status",
		Long: `Versions reads the remote release catalog and reports, for each release, whether
it has been imported into the local repository. A release whose branch exists
but is not merged into the mainline was abandoned by a previous run and needs
manual attention before it can be retried.`,
		Example: `  # list all pypy releases and their status
  relimport versions --source https://downloads.python.org/pypy/ --project pypy`,
		Args:       cobra.MaximumNArgs(1),
		RunE:       r.runE,
		PreRunE:    r.preRunE,
		SuggestFor: []string{"list", "ls", "status"},
	}
	r.Command = c
	c.Flags().StringVar(&r.source, "source", "",
		"URL of the index resource listing the release archives.")
	c.Flags().StringVar(&r.project, "project", "",
		"archive name prefix identifying the project.")
	c.Flags().StringVar(&r.suffix, "suffix", "",
		"fixed archive name suffix. Defaults to "+defaultSuffix+".")
	c.Flags().StringVar(&r.mainline, "mainline", "",
		"branch accumulating merged releases. Defaults to "+defaultMainline+".")
	return r
}

// NewCommand returns the cobra command for versions.
func NewCommand(ctx context.Context) *cobra.Command {
	return NewRunner(ctx).Command
}

const (
	defaultSuffix   = "-src.tar.bz2"
	defaultMainline = "main"
)

// Runner contains the run function.
type Runner struct {
	ctx      context.Context
	Command  *cobra.Command
	Reader   catalog.Reader
	repoPath string
	source   string
	project  string
	suffix   string
	mainline string
}

func (r *Runner) preRunE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdversions.preRunE"
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return errors.E(op, err)
	}
	r.repoPath = absPath

	cfg, err := config.Read(absPath)
	if err != nil {
		return errors.E(op, types.UniquePath(absPath), err)
	}
	r.Reader = catalog.Reader{
		Source:  resolve(r.source, cfg.Source, ""),
		Project: resolve(r.project, cfg.Project, ""),
		Suffix:  resolve(r.suffix, cfg.Suffix, defaultSuffix),
	}
	r.mainline = resolve(r.mainline, cfg.Mainline, defaultMainline)
	if r.Reader.Source == "" {
		return errors.E(op, errors.MissingParam, "must specify --source or set source in "+config.FileName)
	}
	if r.Reader.Project == "" {
		return errors.E(op, errors.MissingParam, "must specify --project or set project in "+config.FileName)
	}
	return nil
}

func (r *Runner) runE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdversions.runE"
	pr := printer.FromContextOrDie(r.ctx)

	repo, err := gitutil.Open(r.ctx, r.repoPath)
	if err != nil {
		return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath), err))
	}

	entries, err := r.Reader.Read(r.ctx)
	if err != nil {
		return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath), err))
	}
	catalog.SortAscending(entries)

	branches, err := repo.ListBranches(r.ctx)
	if err != nil {
		return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath), err))
	}
	existing := make(map[string]bool, len(branches))
	for _, b := range branches {
		existing[b] = true
	}

	t := table.NewWriter()
	t.SetOutputMirror(pr.OutStream())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"VERSION", "BRANCH", "STATUS"})
	listed := make(map[string]bool, len(entries))
	for _, entry := range entries {
		branch := entry.BranchName()
		listed[branch] = true
		status := statusMissing
		if existing[branch] {
			status = statusAbandoned
			merged, err := repo.IsAncestor(r.ctx, branch, r.mainline)
			if err != nil {
				return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath), err))
			}
			if merged {
				status = statusImported
			}
		}
		t.AppendRow(table.Row{entry.Ident, branch, status})
	}

	// Release branches the catalog no longer lists (e.g. archives pruned
	// upstream) are still part of the local history.
	for _, branch := range branches {
		ident, ok := catalog.IdentFromBranch(branch)
		if !ok || listed[branch] {
			continue
		}
		status := statusAbandoned
		merged, err := repo.IsAncestor(r.ctx, branch, r.mainline)
		if err != nil {
			return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath), err))
		}
		if merged {
			status = statusImported
		}
		t.AppendRow(table.Row{ident, branch, status})
	}
	t.Render()
	return nil
}

// resolve returns the first non-empty value of flag, config and default.
func resolve(flagValue, cfgValue, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfgValue != "" {
		return cfgValue
	}
	return defaultValue
}
