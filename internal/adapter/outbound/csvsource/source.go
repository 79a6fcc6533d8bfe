// Package csvsource reads the student table from a CSV document, either a
// published spreadsheet export URL or a local file.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gaepo/sheetlogin/internal/domain/table"
	"github.com/gaepo/sheetlogin/internal/port/outbound"
)

// DefaultTimeout bounds a single HTTP fetch.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a remote document is read.
const maxBodySize = 32 << 20

// Source fetches a CSV table. Every cell is a string.
type Source struct {
	location string
	client   *http.Client
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient replaces the HTTP client used for remote locations.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// New creates a Source for an http(s) URL or a file path.
func New(location string, opts ...Option) (*Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("csvsource: location is required")
	}
	s := &Source{
		location: location,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements outbound.TableSource.
func (s *Source) Name() string {
	return "csv"
}

// Location returns the configured URL or path.
func (s *Source) Location() string {
	return s.location
}

// IsRemote reports whether the location is an http(s) URL.
func (s *Source) IsRemote() bool {
	return isRemote(s.location)
}

func isRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Fetch implements outbound.TableSource.
func (s *Source) Fetch(ctx context.Context) (*table.Table, error) {
	if s.IsRemote() {
		return s.fetchRemote(ctx)
	}

	f, err := os.Open(s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrConnection, err)
	}
	defer f.Close()

	return Parse(f)
}

func (s *Source) fetchRemote(ctx context.Context) (*table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrConnection, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: GET returned %s", table.ErrConnection, resp.Status)
	}

	// A private sheet redirects to the Google sign-in page.
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		return nil, fmt.Errorf("%w: expected CSV, got %s", table.ErrFormat, ct)
	}

	return Parse(io.LimitReader(resp.Body, maxBodySize))
}

// Parse reads a CSV document whose first record is the header. A UTF-8 byte
// order mark before the header is dropped.
func Parse(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrFormat, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: document is empty", table.ErrFormat)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := make([][]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		rows = append(rows, row)
	}

	return table.New(header, rows)
}

var _ outbound.TableSource = (*Source)(nil)
