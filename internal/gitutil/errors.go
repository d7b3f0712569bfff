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

package gitutil

import (
	"regexp"
	"strings"

	"github.com/releasetools/relimport/internal/errors"
)

type GitExecErrorType int

const (
	Unknown GitExecErrorType = iota
	GitExecutableNotFound
	UnknownReference
	NotARepository
	RebaseConflict
	MergeConflict
)

type GitExecError struct {
	Type    GitExecErrorType
	Args    []string
	Err     error
	Command string
	Repo    string
	Ref     string
	StdErr  string
	StdOut  string
}

func (e *GitExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString(e.Err.Error())
	b.WriteString(": ")
	b.WriteString(e.StdErr)
	return b.String()
}

func AmendGitExecError(err error, f func(e *GitExecError)) {
	var gitExecErr *GitExecError
	if errors.As(err, &gitExecErr) {
		f(gitExecErr)
	}
}

// IsConflict returns true if the error is a git error caused by a rebase or
// merge that could not be applied cleanly.
func IsConflict(err error) bool {
	var gitExecErr *GitExecError
	if !errors.As(err, &gitExecErr) {
		return false
	}
	return gitExecErr.Type == RebaseConflict || gitExecErr.Type == MergeConflict
}

func determineErrorType(command, stdOut, stdErr string) GitExecErrorType {
	switch {
	case strings.Contains(stdErr, "unknown revision or path not in the working tree"):
		return UnknownReference
	case strings.Contains(stdErr, "not a git repository"):
		return NotARepository
	case command == "rebase" && isConflictOutput(stdOut, stdErr):
		return RebaseConflict
	case command == "merge" && isConflictOutput(stdOut, stdErr):
		return MergeConflict
	}
	return Unknown
}

// isConflictOutput recognizes the output git prints when a rebase or merge
// stops on a conflict.
func isConflictOutput(stdOut, stdErr string) bool {
	out := stdOut + "\n" + stdErr
	return strings.Contains(out, "CONFLICT") ||
		strings.Contains(out, "Automatic merge failed") ||
		matches(`error: could not apply [0-9a-f]+`, out)
}

func matches(pattern, s string) bool {
	matched, err := regexp.Match(pattern, []byte(s))
	if err != nil {
		// This should only return an error if the pattern is invalid, so
		// we just panic if that happens.
		panic(err)
	}
	return matched
}
