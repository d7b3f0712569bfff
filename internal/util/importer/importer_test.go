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

package importer_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/releasetools/relimport/internal/catalog"
	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/printer/fake"
	"github.com/releasetools/relimport/internal/testutil"
	"github.com/releasetools/relimport/internal/util/importer"
	"github.com/releasetools/relimport/internal/util/integrate"
)

func TestRun_importsInVersionOrder(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	// 5.10.0 sorts after 5.2.0 numerically even though it sorts before it
	// lexicographically
	server := testutil.CatalogServer(t, map[string][]byte{
		"pypy-5.1.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.1.0", map[string]string{
			"version.txt": "5.1.0\n",
		}),
		"pypy-5.2.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.2.0", map[string]string{
			"version.txt": "5.2.0\n",
		}),
		"pypy-5.10.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.10.0", map[string]string{
			"version.txt": "5.10.0\n",
			"new.txt":     "added in 5.10.0\n",
		}),
	})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	cmd := importer.Command{
		Source:   server.URL,
		Project:  "pypy",
		Suffix:   "-src.tar.gz",
		Repo:     repo,
		Mainline: "main",
	}
	summary, err := cmd.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, 3, summary.Imported)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Failed())

	var order []string
	for _, res := range summary.Results {
		order = append(order, res.Ident)
		assert.Equal(t, integrate.StageMerged, res.Stage)
	}
	assert.Equal(t, []string{"5.1.0", "5.2.0", "5.10.0"}, order)

	want := []string{"main", "release-5.1.0", "release-5.10.0", "release-5.2.0"}
	if diff := cmp.Diff(want, testutil.Branches(t, dir)); diff != "" {
		t.Errorf("unexpected branches (-want +got):\n%s", diff)
	}

	// the mainline worktree holds the newest release
	assert.Equal(t, []string{"new.txt", "version.txt"}, testutil.TreeFiles(t, dir))

	// a second run finds every release already imported
	summary, err = cmd.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 3, summary.Skipped)
	assert.Empty(t, summary.Results)
}

func TestRun_skipsExistingBranches(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)
	testutil.RunGit(t, dir, "checkout", "-b", "release-5.0.0", "main")
	testutil.Commit(t, dir, "previous import attempt", map[string]string{"version.txt": "5.0.0\n"})
	testutil.RunGit(t, dir, "checkout", "main")

	server := testutil.CatalogServer(t, map[string][]byte{
		"pypy-5.0.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.0.0", map[string]string{
			"version.txt": "5.0.0\n",
		}),
		"pypy-5.1.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.1.0", map[string]string{
			"version.txt": "5.1.0\n",
		}),
	})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	summary, err := importer.Command{
		Source:   server.URL,
		Project:  "pypy",
		Suffix:   "-src.tar.gz",
		Repo:     repo,
		Mainline: "main",
	}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	if assert.Len(t, summary.Results, 1) {
		assert.Equal(t, "5.1.0", summary.Results[0].Ident)
	}

	// exactly one new branch and one merge commit
	assert.Equal(t, []string{"main", "release-5.0.0", "release-5.1.0"},
		testutil.Branches(t, dir))
	mergeLog := testutil.RunGit(t, dir, "log", "--merges", "--format=%s", "main")
	assert.Equal(t, "Merge release 5.1.0", strings.TrimSpace(mergeLog))

	// the pre-existing branch was not touched and never merged
	merged, err := repo.IsAncestor(ctx, "release-5.0.0", "main")
	assert.NoError(t, err)
	assert.False(t, merged)
}

func TestRun_abandonsFailedReleaseAndContinues(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	// the 5.2.0 archive is malformed; its neighbors must still import
	server := testutil.CatalogServer(t, map[string][]byte{
		"pypy-5.1.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.1.0", map[string]string{
			"version.txt": "5.1.0\n",
		}),
		"pypy-5.2.0-src.tar.gz": testutil.BuildTarGz(t, []testutil.TarEntry{
			{Name: "loose-file.txt", Content: "no wrapper directory\n"},
		}),
		"pypy-5.3.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.3.0", map[string]string{
			"version.txt": "5.3.0\n",
		}),
	})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	summary, err := importer.Command{
		Source:   server.URL,
		Project:  "pypy",
		Suffix:   "-src.tar.gz",
		Repo:     repo,
		Mainline: "main",
	}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	assert.Equal(t, 2, summary.Imported)
	failed := summary.Failed()
	if assert.Len(t, failed, 1) {
		assert.Equal(t, "5.2.0", failed[0].Ident)
		assert.Equal(t, "release-5.2.0", failed[0].Branch)
		assert.Error(t, failed[0].Err)
		assert.NotEqual(t, integrate.StageMerged, failed[0].Stage)
	}

	// the run ends back on a clean mainline holding the newest release
	current, err := repo.CurrentBranch(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "main", current)
	clean, err := repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)
	assert.Equal(t, []string{"version.txt"}, testutil.TreeFiles(t, dir))
}

func TestRun_unreachableCatalog(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	server := testutil.CatalogServer(t, map[string][]byte{})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	summary, err := importer.Command{
		Source:   server.URL + "/no-such-index",
		Project:  "pypy",
		Suffix:   "-src.tar.gz",
		Repo:     repo,
		Mainline: "main",
	}.Run(ctx)
	if !assert.Error(t, err) {
		t.FailNow()
	}
	assert.Nil(t, summary)
	var unreachableErr *catalog.UnreachableError
	assert.True(t, errors.As(err, &unreachableErr))
}

func TestRun_missingMainline(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	server := testutil.CatalogServer(t, map[string][]byte{})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	_, err = importer.Command{
		Source:   server.URL,
		Project:  "pypy",
		Suffix:   "-src.tar.gz",
		Repo:     repo,
		Mainline: "trunk",
	}.Run(ctx)
	if !assert.Error(t, err) {
		t.FailNow()
	}
	var relimportErr *errors.Error
	if assert.True(t, errors.As(err, &relimportErr)) {
		assert.Equal(t, errors.MissingParam, relimportErr.Kind)
	}
}
