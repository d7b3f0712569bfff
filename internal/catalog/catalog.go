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

// Package catalog reads the set of published release archives from a remote
// index resource.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"k8s.io/klog/v2"

	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/util/httputil"
	"github.com/releasetools/relimport/internal/util/versions"
)

// BranchPrefix is prepended to a release identifier to form the name of the
// local branch holding the imported snapshot for that release.
const BranchPrefix = "release-"

// Entry pairs a release identifier with the retrieval locator of its source
// archive. Entries are read-only once produced by Read.
type Entry struct {
	// Ident is the dotted numeric identifier as it appeared in the index,
	// e.g. "5.1.0".
	Ident string

	// Version is the parsed form of Ident, used for ordering.
	Version *versions.Version

	// URL locates the archive, resolved against the index URL.
	URL string
}

// BranchName returns the name of the local branch that holds the imported
// snapshot for this entry. The mapping is one-to-one with the identifier.
func (e Entry) BranchName() string {
	return BranchPrefix + e.Ident
}

// IdentFromBranch reverses Entry.BranchName. The second return value is
// false if the branch name was not derived from a release identifier.
func IdentFromBranch(branch string) (string, bool) {
	if !strings.HasPrefix(branch, BranchPrefix) {
		return "", false
	}
	return strings.TrimPrefix(branch, BranchPrefix), true
}

// UnreachableError is returned when the index resource could not be
// retrieved at all. It is fatal to an import run since no releases can be
// discovered.
type UnreachableError struct {
	Source string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("catalog %q unreachable: %v", e.Source, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Reader extracts release entries from an index resource.
type Reader struct {
	// Source is the URL of the index resource.
	Source string

	// Project is the archive name prefix, e.g. "pypy" for
	// pypy-5.1.0-src.tar.bz2.
	Project string

	// Suffix is the fixed archive name suffix, e.g. "-src.tar.bz2".
	Suffix string
}

// Read retrieves the index resource and returns one entry per release
// archive whose name matches the expected pattern. Anything else in the
// index is ignored. A reachable index with zero matching entries yields an
// empty result, not an error.
func (r Reader) Read(ctx context.Context) ([]Entry, error) {
	const op errors.Op = "catalog.Read"

	body, err := httputil.FetchContent(ctx, r.Source)
	if err != nil {
		return nil, errors.E(op, errors.Catalog, errors.Repo(r.Source),
			&UnreachableError{Source: r.Source, Err: err})
	}

	base, err := url.Parse(r.Source)
	if err != nil {
		return nil, errors.E(op, errors.InvalidParam,
			fmt.Errorf("invalid catalog source %q: %w", r.Source, err))
	}

	re, err := r.pattern()
	if err != nil {
		return nil, errors.E(op, errors.InvalidParam, err)
	}

	seen := make(map[string]bool)
	var entries []Entry
	for _, match := range re.FindAllStringSubmatch(body, -1) {
		name, ident := match[1], match[2]
		if seen[ident] {
			continue
		}
		seen[ident] = true

		version, err := versions.Parse(ident)
		if err != nil {
			klog.V(3).Infof("Skipping index entry %q: %v", name, err)
			continue
		}

		ref, err := url.Parse(name)
		if err != nil {
			klog.V(3).Infof("Skipping index entry %q: %v", name, err)
			continue
		}

		entries = append(entries, Entry{
			Ident:   ident,
			Version: version,
			URL:     base.ResolveReference(ref).String(),
		})
	}
	klog.V(2).Infof("Catalog %q lists %d release archives", r.Source, len(entries))
	return entries, nil
}

// pattern returns the regexp recognizing archive names for the configured
// project: the project name, a dotted numeric version token and the fixed
// suffix. Word boundaries keep e.g. "notpypy-1.0-src.tar.bz2" from matching
// project "pypy".
func (r Reader) pattern() (*regexp.Regexp, error) {
	if r.Project == "" {
		return nil, fmt.Errorf("must specify project")
	}
	if r.Suffix == "" {
		return nil, fmt.Errorf("must specify archive suffix")
	}
	expr := fmt.Sprintf(`\b(%s-([0-9]+(?:\.[0-9]+)*)%s)\b`,
		regexp.QuoteMeta(r.Project), regexp.QuoteMeta(r.Suffix))
	return regexp.Compile(expr)
}

// SortAscending orders entries in increasing version order. The order is
// total: identifiers are compared component-wise as integers, never as
// strings.
func SortAscending(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return versions.Compare(a.Version, b.Version)
	})
}
