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

// Package cmdimport contains the import command.
package cmdimport

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/releasetools/relimport/internal/config"
	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/printer"
	"github.com/releasetools/relimport/internal/types"
	"github.com/releasetools/relimport/internal/util/importer"
	"github.com/releasetools/relimport/internal/util/runner"
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{
		ctx: ctx,
	}
	c := &cobra.Command{
		Use:   "import [REPO_DIR]",
		Short: "Import missing upstream releases into the local history",
		Long: `Import reads the remote release catalog, determines which releases are not
yet represented as local branches, and imports each missing release: the
archive content becomes a commit on its own branch, which is then merged
into the mainline in increasing version order.

A release whose branch already exists is skipped, so re-running the command
is safe. A release that fails (download, extraction, rebase or merge) is
abandoned with its branch left unmerged and the run continues; the command
exits nonzero if any release was abandoned.`,
		Example: `  # import all missing pypy releases into the repository in the current directory
  relimport import --source https://downloads.python.org/pypy/ --project pypy

  # import into another repository, merging into a differently named mainline
  relimport import ~/src/pypy-history --source https://example.com/releases/ \
    --project pypy --mainline trunk`,
		Args:       cobra.MaximumNArgs(1),
		RunE:       r.runE,
		PreRunE:    r.preRunE,
		SuggestFor: []string{"fetch", "pull", "sync"},
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

// NewCommand returns the cobra command for import.
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
	Import   importer.Command
	repoPath string
	source   string
	project  string
	suffix   string
	mainline string
}

func (r *Runner) preRunE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdimport.preRunE"
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return errors.E(op, err)
	}
	r.repoPath = absPath

	// Flags take precedence over the repository configuration file.
	cfg, err := config.Read(absPath)
	if err != nil {
		return errors.E(op, types.UniquePath(absPath), err)
	}
	r.Import = importer.Command{
		Source:   resolve(r.source, cfg.Source, ""),
		Project:  resolve(r.project, cfg.Project, ""),
		Suffix:   resolve(r.suffix, cfg.Suffix, defaultSuffix),
		Mainline: resolve(r.mainline, cfg.Mainline, defaultMainline),
	}
	if r.Import.Source == "" {
		return errors.E(op, errors.MissingParam, "must specify --source or set source in "+config.FileName)
	}
	if r.Import.Project == "" {
		return errors.E(op, errors.MissingParam, "must specify --project or set project in "+config.FileName)
	}
	return nil
}

func (r *Runner) runE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdimport.runE"
	pr := printer.FromContextOrDie(r.ctx)

	repo, err := gitutil.Open(r.ctx, r.repoPath)
	if err != nil {
		return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath), err))
	}
	r.Import.Repo = repo

	summary, err := r.Import.Run(r.ctx)
	if err != nil {
		return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath), err))
	}

	failed := summary.Failed()
	pr.Printf("Imported %d release(s), skipped %d, abandoned %d.\n",
		summary.Imported, summary.Skipped, len(failed))
	if len(failed) > 0 {
		for _, res := range failed {
			pr.OptPrintf(printer.NewOpt().Stderr().Indent(2), "%s: failed after %q: %v\n",
				res.Ident, res.Stage, res.Err)
		}
		return runner.HandleError(c, errors.E(op, types.UniquePath(r.repoPath),
			&importer.AbandonedError{Failed: failed}))
	}
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
