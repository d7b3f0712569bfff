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

package resolver

import (
	goerrors "errors"
	"fmt"
	"strings"

	"github.com/releasetools/relimport/internal/util/importer"
)

//nolint:gochecknoinits
func init() {
	AddErrorResolver(&abandonedErrorResolver{})
}

// abandonedErrorResolver summarizes the releases that could not be merged
// during an import run.
type abandonedErrorResolver struct{}

func (*abandonedErrorResolver) Resolve(err error) (ResolvedResult, bool) {
	var abandonedErr *importer.AbandonedError
	if !goerrors.As(err, &abandonedErr) {
		return ResolvedResult{}, false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %d release(s) could not be merged:\n", len(abandonedErr.Failed))
	for _, res := range abandonedErr.Failed {
		fmt.Fprintf(&sb, "  %s: failed after %q (branch %s left unmerged)\n",
			res.Ident, res.Stage, res.Branch)
	}
	sb.WriteString("Resolve the unmerged branches manually before retrying these releases.")
	return ResolvedResult{
		Message: sb.String(),
	}, true
}
