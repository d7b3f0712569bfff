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

// Package httputil retrieves content from the remote archive source.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DownloadError is returned when a resource could not be retrieved from the
// archive source.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %q: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %q: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// FetchContent fetches the content from the input url.
func FetchContent(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &DownloadError{URL: url, StatusCode: res.StatusCode}
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	return string(body), nil
}

// FetchFile downloads the resource at url to the file at path, creating or
// truncating it.
func FetchFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &DownloadError{URL: url, StatusCode: res.StatusCode}
	}

	f, err := os.Create(path)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	return nil
}
