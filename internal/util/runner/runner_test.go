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

package runner_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/releasetools/relimport/internal/errors"
	"github.com/releasetools/relimport/internal/util/runner"
)

func TestHandleError_printsStackWhenEnabled(t *testing.T) {
	runner.StackOnError = true
	defer func() { runner.StackOnError = false }()

	cmd := &cobra.Command{}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	cause := errors.E(errors.Op("cmdimport.runE"), errors.Git,
		fmt.Errorf("exit status 128"))
	err := runner.HandleError(cmd, cause)
	assert.Equal(t, cause, err)
	// the trace starts at the command that surfaced the failure
	assert.Contains(t, stderr.String(), "runner_test.go")
}

func TestHandleError_silentByDefault(t *testing.T) {
	cmd := &cobra.Command{}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	err := runner.HandleError(cmd, fmt.Errorf("catalog unreachable"))
	assert.Error(t, err)
	assert.Empty(t, stderr.String())
}

func TestHandleError_nil(t *testing.T) {
	assert.NoError(t, runner.HandleError(&cobra.Command{}, nil))
}
