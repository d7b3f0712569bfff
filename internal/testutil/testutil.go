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

// Package testutil contains helpers for setting up scratch repositories and
// release archive fixtures in tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// RunGit runs a git command in dir and fails the test on error.
func RunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return string(out)
}

// InitRepo creates a scratch repository with a single commit on the main
// branch and returns its path.
func InitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	RunGit(t, dir, "init", "--initial-branch=main")
	RunGit(t, dir, "config", "user.name", "relimport test")
	RunGit(t, dir, "config", "user.email", "relimport@example.com")
	WriteFile(t, dir, "README", "scratch repository\n")
	RunGit(t, dir, "add", "-A")
	// Backdate the initial commit so commits made during the test are
	// strictly newer; git log's date ordering is ambiguous for commits
	// created within the same second.
	cmd := exec.Command("git", "commit", "-m", "initial commit")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE=2000-01-01T00:00:00Z",
		"GIT_COMMITTER_DATE=2000-01-01T00:00:00Z",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v\n%s", err, out)
	}
	return dir
}

// WriteFile writes content to name inside dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// Commit writes the provided files into dir and commits them.
func Commit(t *testing.T, dir, message string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	RunGit(t, dir, "add", "-A")
	RunGit(t, dir, "commit", "-m", message)
}

// Branches returns the names of all local branches in dir.
func Branches(t *testing.T, dir string) []string {
	t.Helper()
	out := RunGit(t, dir, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			branches = append(branches, name)
		}
	}
	return branches
}

// TreeFiles returns the sorted relative paths of all files in dir,
// excluding the .git directory.
func TreeFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	return files
}

// TarEntry describes one entry of an archive fixture.
type TarEntry struct {
	// Name is the full path of the entry inside the archive, including
	// the top-level wrapper directory.
	Name string

	// Content is the file content. Ignored for directory entries.
	Content string

	// Dir marks the entry as a directory.
	Dir bool
}

// BuildTarGz builds a gzip-compressed tar archive from the provided entries.
func BuildTarGz(t *testing.T, entries []TarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, entry := range entries {
		hdr := &tar.Header{
			Name: entry.Name,
			Mode: 0644,
			Size: int64(len(entry.Content)),
		}
		if entry.Dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if !entry.Dir {
			if _, err := tw.Write([]byte(entry.Content)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// ReleaseArchive builds a release archive fixture: the provided files are
// wrapped in a single top-level directory named after the project and
// identifier, matching the layout of published source archives.
func ReleaseArchive(t *testing.T, project, ident string, files map[string]string) []byte {
	t.Helper()
	wrapper := fmt.Sprintf("%s-%s", project, ident)
	entries := []TarEntry{{Name: wrapper + "/", Dir: true}}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entries = append(entries, TarEntry{
			Name:    wrapper + "/" + name,
			Content: files[name],
		})
	}
	return BuildTarGz(t, entries)
}

// CatalogServer serves a directory-listing-like index of release archives
// plus the archive files themselves. The archives map is keyed by archive
// file name, e.g. "pypy-5.1.0-src.tar.gz".
func CatalogServer(t *testing.T, archives map[string][]byte) *httptest.Server {
	t.Helper()
	names := make([]string, 0, len(archives))
	for name := range archives {
		names = append(names, name)
	}
	sort.Strings(names)

	var index strings.Builder
	index.WriteString("<html><body><ul>\n")
	for _, name := range names {
		fmt.Fprintf(&index, "<li><a href=%q>%s</a></li>\n", name, name)
	}
	index.WriteString("<li><a href=\"README.txt\">README.txt</a></li>\n")
	index.WriteString("</ul></body></html>\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" {
			fmt.Fprint(w, index.String())
			return
		}
		body, found := archives[name]
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}
