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

// Package importer drives the release import: it discovers releases in the
// remote catalog, skips the ones already present as local branches and
// integrates the missing ones into the mainline in version order.
package importer

import (
	"context"
	"fmt"

	"github.com/releasetools/relimport/internal/catalog"
	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/printer"
	"github.com/releasetools/relimport/internal/util/integrate"
)

// Result records the outcome for one release identifier.
type Result struct {
	// Ident is the release identifier.
	Ident string

	// Branch is the local branch derived from Ident.
	Branch string

	// Stage is the last integration stage that completed.
	Stage integrate.Stage

	// Err is nil exactly when Stage is StageMerged.
	Err error
}

// Summary is the outcome of one import run.
type Summary struct {
	// Imported is the number of releases merged into the mainline.
	Imported int

	// Skipped is the number of releases whose branch already existed.
	Skipped int

	// Results holds one entry per release that was attempted, in
	// processing order.
	Results []Result
}

// Failed returns the results for releases that were abandoned.
func (s *Summary) Failed() []Result {
	var failed []Result
	for _, res := range s.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// AbandonedError reports that one or more releases could not be merged. The
// offending branches are left in the repository unmerged as inspectable
// markers; an operator must resolve them manually before the releases can be
// retried.
type AbandonedError struct {
	Failed []Result
}

func (e *AbandonedError) Error() string {
	return fmt.Sprintf("%d release(s) abandoned", len(e.Failed))
}

// Command imports all releases listed in the remote catalog that are not yet
// represented as local branches.
type Command struct {
	// Source is the URL of the catalog index resource.
	Source string

	// Project is the archive name prefix.
	Project string

	// Suffix is the fixed archive name suffix.
	Suffix string

	// Repo is the local repository. It must have the Mainline branch.
	Repo *gitutil.Repo

	// Mainline is the branch accumulating merged releases.
	Mainline string
}

// Run runs the Command. Releases are processed strictly sequentially in
// increasing version order: each iteration reads and mutates the mainline
// tip left by the previous one. A failed release is recorded and abandoned;
// the loop continues with the next one. Only a catalog read failure aborts
// the run.
func (c Command) Run(ctx context.Context) (*Summary, error) {
	const op errors.Op = "importer.Run"
	pr := printer.FromContextOrDie(ctx)

	entries, err := catalog.Reader{
		Source:  c.Source,
		Project: c.Project,
		Suffix:  c.Suffix,
	}.Read(ctx)
	if err != nil {
		return nil, errors.E(op, c.Repo.Path, err)
	}

	hasMainline, err := c.Repo.HasBranch(ctx, c.Mainline)
	if err != nil {
		return nil, errors.E(op, c.Repo.Path, err)
	}
	if !hasMainline {
		return nil, errors.E(op, c.Repo.Path, errors.MissingParam,
			"mainline branch "+c.Mainline+" does not exist")
	}

	// The branch list is taken once per run: a branch that exists at this
	// point was imported by a previous run (or created externally) and is
	// skipped, and within the run each identifier is processed at most once.
	branches, err := c.Repo.ListBranches(ctx)
	if err != nil {
		return nil, errors.E(op, c.Repo.Path, err)
	}
	existing := make(map[string]bool, len(branches))
	for _, b := range branches {
		existing[b] = true
	}

	summary := &Summary{}
	var missing []catalog.Entry
	for _, entry := range entries {
		if existing[entry.BranchName()] {
			pr.Printf("Release %s already imported, skipping.\n", entry.Ident)
			summary.Skipped++
			continue
		}
		missing = append(missing, entry)
	}
	catalog.SortAscending(missing)

	for _, entry := range missing {
		// Each release starts from the committed mainline state.
		if err := c.Repo.Checkout(ctx, c.Mainline); err != nil {
			return summary, errors.E(op, c.Repo.Path, err)
		}

		pr.Printf("Importing release %s.\n", entry.Ident)
		stage, err := integrate.Command{
			Entry:    entry,
			Repo:     c.Repo,
			Mainline: c.Mainline,
		}.Run(ctx)
		summary.Results = append(summary.Results, Result{
			Ident:  entry.Ident,
			Branch: entry.BranchName(),
			Stage:  stage,
			Err:    err,
		})
		if err != nil {
			pr.OptPrintf(printer.NewOpt().Stderr().Repo(c.Repo.Path),
				"abandoning release %s at stage %q: %v\n", entry.Ident, stage, err)
			continue
		}
		summary.Imported++
	}

	if err := c.Repo.Checkout(ctx, c.Mainline); err != nil {
		return summary, errors.E(op, c.Repo.Path, err)
	}
	return summary, nil
}
