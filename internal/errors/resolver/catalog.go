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

	"github.com/releasetools/relimport/internal/catalog"
	"github.com/releasetools/relimport/internal/util/archive"
	"github.com/releasetools/relimport/internal/util/httputil"
	"github.com/releasetools/relimport/internal/util/materialize"
)

//nolint:gochecknoinits
func init() {
	AddErrorResolver(&catalogErrorResolver{})
}

// catalogErrorResolver produces error messages for the errors raised while
// discovering and retrieving release archives.
type catalogErrorResolver struct{}

func (*catalogErrorResolver) Resolve(err error) (ResolvedResult, bool) {
	var unreachableErr *catalog.UnreachableError
	if goerrors.As(err, &unreachableErr) {
		return ResolvedResult{
			Message: fmt.Sprintf("Error: The release catalog %q could not be retrieved, no releases can be discovered: %v",
				unreachableErr.Source, unreachableErr.Err),
		}, true
	}

	var downloadErr *httputil.DownloadError
	if goerrors.As(err, &downloadErr) {
		return ResolvedResult{
			Message: fmt.Sprintf("Error: %v", downloadErr),
		}, true
	}

	var malformedErr *archive.MalformedArchiveError
	if goerrors.As(err, &malformedErr) {
		return ResolvedResult{
			Message: fmt.Sprintf("Error: %v. The release archive does not have the expected layout.", malformedErr),
		}, true
	}

	var emptyErr *materialize.EmptySnapshotError
	if goerrors.As(err, &emptyErr) {
		return ResolvedResult{
			Message: fmt.Sprintf("Error: %v", emptyErr),
		}, true
	}

	return ResolvedResult{}, false
}
