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

// Package config reads the optional per-repository relimport configuration.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file, looked up at the root of
// the repository worktree.
const FileName = "relimport.yaml"

// Config holds the per-repository import settings. Command line flags
// override any value set here.
type Config struct {
	// Source is the URL of the catalog index resource.
	Source string `yaml:"source,omitempty"`

	// Project is the archive name prefix.
	Project string `yaml:"project,omitempty"`

	// Suffix is the fixed archive name suffix.
	Suffix string `yaml:"suffix,omitempty"`

	// Mainline is the branch accumulating merged releases.
	Mainline string `yaml:"mainline,omitempty"`
}

// Read returns the configuration stored in the repository at repoPath. A
// missing file is not an error and yields an empty Config.
func Read(repoPath string) (*Config, error) {
	path := filepath.Join(repoPath, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("error reading %s: %w", FileName, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error parsing %s: %w", FileName, err)
	}
	return &cfg, nil
}
