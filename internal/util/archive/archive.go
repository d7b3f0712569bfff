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

// Package archive extracts compressed tar release archives.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// MalformedArchiveError is returned when an archive entry does not have the
// expected single top-level wrapper directory, or when extracting it would
// write outside the destination directory.
type MalformedArchiveError struct {
	Path   string
	Reason string
}

func (e *MalformedArchiveError) Error() string {
	return fmt.Sprintf("malformed archive entry %q: %s", e.Path, e.Reason)
}

// ExtractStripped extracts the compressed tar archive at src into dest,
// discarding exactly one leading path component from every entry (the
// archive's synthetic top-level directory). The compression is chosen from
// the file name: ".tar.gz"/".tgz" for gzip and ".tar.bz2" for bzip2.
//
// An entry that lacks the leading component, or whose stripped path escapes
// dest, fails the extraction with MalformedArchiveError before anything is
// written for that entry. Symlink entries are skipped with a warning.
func ExtractStripped(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	reader, err := decompress(src, f)
	if err != nil {
		return err
	}

	tarReader := tar.NewReader(reader)
	for {
		hdr, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &MalformedArchiveError{Path: src, Reason: err.Error()}
		}

		if strings.HasPrefix(hdr.Name, "/") {
			return &MalformedArchiveError{Path: hdr.Name, Reason: "absolute entry path"}
		}
		entryName := strings.TrimSuffix(hdr.Name, "/")
		if entryName == "" {
			return &MalformedArchiveError{Path: hdr.Name, Reason: "entry has no path"}
		}
		i := strings.Index(entryName, "/")
		wrapper := entryName
		if i >= 0 {
			wrapper = entryName[:i]
		}
		if wrapper == "." || wrapper == ".." {
			return &MalformedArchiveError{Path: hdr.Name,
				Reason: "entry lacks the top-level wrapper directory"}
		}
		if i < 0 {
			if hdr.FileInfo().IsDir() {
				// the wrapper directory itself
				continue
			}
			return &MalformedArchiveError{Path: hdr.Name,
				Reason: "entry lacks the top-level wrapper directory"}
		}
		name := entryName[i+1:]

		path, err := securePath(dest, name)
		if err != nil {
			return err
		}

		switch {
		case hdr.FileInfo().IsDir():
			if err := os.MkdirAll(path, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		case hdr.Linkname != "":
			klog.V(2).Infof("Skipping link entry %q", hdr.Name)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			file, err := os.OpenFile(path,
				os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
				os.FileMode(hdr.Mode),
			)
			if err != nil {
				return err
			}
			if _, err := io.Copy(file, tarReader); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

// decompress wraps r with the decompressor matching the archive file name.
func decompress(name string, r io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(name, ".tar.bz2"):
		return bzip2.NewReader(r), nil
	case strings.HasSuffix(name, ".tar"):
		return r, nil
	}
	return nil, &MalformedArchiveError{Path: name, Reason: "unrecognized archive format"}
}

// securePath joins name to dest and verifies the result stays inside dest.
func securePath(dest, name string) (string, error) {
	path := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", &MalformedArchiveError{Path: name, Reason: "entry escapes the extraction root"}
	}
	return path, nil
}
