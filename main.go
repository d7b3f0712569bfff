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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/releasetools/relimport/internal/errors/resolver"
	"github.com/releasetools/relimport/run"
)

func main() {
	os.Exit(runMain())
}

// runMain does the real work of the program. It is separated from main so
// that deferred functions run before os.Exit.
func runMain() int {
	ctx := context.Background()
	cmd := run.GetMain(ctx)

	if err := cmd.Execute(); err != nil {
		return handleErr(cmd, err)
	}
	return 0
}

// handleErr takes care of printing an error message for a given error.
func handleErr(cmd *cobra.Command, err error) int {
	// Check if the error is a known type and resolve it into a message
	// suitable for the end user.
	rr, found := resolver.ResolveError(err)
	if found {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", rr.Message)
		return rr.ExitCode
	}

	// If the error isn't a known type, just print the error message.
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return 1
}
