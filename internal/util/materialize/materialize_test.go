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

package materialize_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/releasetools/relimport/internal/catalog"
	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/gitutil"
	"github.com/releasetools/relimport/internal/printer/fake"
	"github.com/releasetools/relimport/internal/testutil"
	"github.com/releasetools/relimport/internal/util/httputil"
	. "github.com/releasetools/relimport/internal/util/materialize"
)

func TestRun_replacesWorktree(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)
	testutil.Commit(t, dir, "old content", map[string]string{
		"removed.txt":     "this file is not part of the release\n",
		"lib/removed.py":  "gone\n",
		"lib/kept/mod.py": "old version\n",
	})

	server := testutil.CatalogServer(t, map[string][]byte{
		"pypy-5.1.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.1.0", map[string]string{
			"setup.py":        "setup\n",
			"lib/kept/mod.py": "new version\n",
		}),
	})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	err = Command{
		Entry: catalog.Entry{
			Ident: "5.1.0",
			URL:   server.URL + "/pypy-5.1.0-src.tar.gz",
		},
		Repo: repo,
	}.Run(ctx)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	// the worktree holds exactly the archive content; files absent from
	// the release are gone
	want := []string{"lib/kept/mod.py", "setup.py"}
	if diff := cmp.Diff(want, testutil.TreeFiles(t, dir)); diff != "" {
		t.Errorf("unexpected worktree content (-want +got):\n%s", diff)
	}

	staged, err := repo.HasStagedChanges(ctx)
	assert.NoError(t, err)
	assert.True(t, staged)
}

func TestRun_emptySnapshot(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	// an archive containing exactly the committed tree stages nothing
	server := testutil.CatalogServer(t, map[string][]byte{
		"pypy-5.1.0-src.tar.gz": testutil.ReleaseArchive(t, "pypy", "5.1.0", map[string]string{
			"README": "scratch repository\n",
		}),
	})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	err = Command{
		Entry: catalog.Entry{
			Ident: "5.1.0",
			URL:   server.URL + "/pypy-5.1.0-src.tar.gz",
		},
		Repo: repo,
	}.Run(ctx)
	if !assert.Error(t, err) {
		t.FailNow()
	}
	var emptyErr *EmptySnapshotError
	if assert.True(t, errors.As(err, &emptyErr)) {
		assert.Equal(t, "5.1.0", emptyErr.Ident)
	}
}

func TestRun_downloadFailureLeavesWorktreeUntouched(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	server := testutil.CatalogServer(t, map[string][]byte{})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	err = Command{
		Entry: catalog.Entry{
			Ident: "5.1.0",
			URL:   server.URL + "/pypy-5.1.0-src.tar.gz",
		},
		Repo: repo,
	}.Run(ctx)
	if !assert.Error(t, err) {
		t.FailNow()
	}
	var downloadErr *httputil.DownloadError
	if assert.True(t, errors.As(err, &downloadErr)) {
		assert.Equal(t, 404, downloadErr.StatusCode)
	}

	// the worktree is only touched once the archive has been extracted
	assert.Equal(t, []string{"README"}, testutil.TreeFiles(t, dir))
	clean, err := repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)
}

func TestRun_malformedArchiveLeavesWorktreeUntouched(t *testing.T) {
	ctx := fake.CtxWithDefaultPrinter()
	dir := testutil.InitRepo(t)

	// a top-level file without a wrapper directory is rejected before the
	// worktree is modified
	server := testutil.CatalogServer(t, map[string][]byte{
		"pypy-5.1.0-src.tar.gz": testutil.BuildTarGz(t, []testutil.TarEntry{
			{Name: "loose-file.txt", Content: "no wrapper directory\n"},
		}),
	})

	repo, err := gitutil.Open(ctx, dir)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	err = Command{
		Entry: catalog.Entry{
			Ident: "5.1.0",
			URL:   server.URL + "/pypy-5.1.0-src.tar.gz",
		},
		Repo: repo,
	}.Run(ctx)
	if !assert.Error(t, err) {
		t.FailNow()
	}

	assert.Equal(t, []string{"README"}, testutil.TreeFiles(t, dir))
	clean, err := repo.IsClean(ctx)
	assert.NoError(t, err)
	assert.True(t, clean)
}
