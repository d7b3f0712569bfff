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

// Package versions orders release identifiers by version-sort rules.
package versions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed dotted numeric release identifier. Identifiers are
// not capped at three components: "5.1.0.1" is a valid identifier and
// orders after "5.1.0". The first three components are held as a semver
// value, any further components are kept for component-wise comparison.
type Version struct {
	base  *semver.Version
	extra []uint64
}

// Parse parses a dotted numeric release identifier such as "5.1.0", "2.6"
// or "5.1.0.1". Missing trailing components are treated as zero, so "2.6"
// and "2.6.0" compare as equal.
func Parse(ident string) (*Version, error) {
	head, tail := ident, []string(nil)
	if parts := strings.Split(ident, "."); len(parts) > 3 {
		head = strings.Join(parts[:3], ".")
		tail = parts[3:]
	}
	base, err := semver.NewVersion(head)
	if err != nil {
		return nil, fmt.Errorf("invalid release identifier %q: %w", ident, err)
	}
	extra := make([]uint64, len(tail))
	for i, part := range tail {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid release identifier %q: %w", ident, err)
		}
		extra[i] = n
	}
	return &Version{base: base, extra: extra}, nil
}

// Compare compares two parsed identifiers component-wise as integers,
// treating missing trailing components as zero. It returns -1, 0 or 1 if a
// is less than, equal to, or greater than b.
func Compare(a, b *Version) int {
	if c := a.base.Compare(b.base); c != 0 {
		return c
	}
	for i := 0; i < len(a.extra) || i < len(b.extra); i++ {
		var av, bv uint64
		if i < len(a.extra) {
			av = a.extra[i]
		}
		if i < len(b.extra) {
			bv = b.extra[i]
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}
