// Package sheets reads the student table through the Google Sheets API v4.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/gaepo/sheetlogin/internal/domain/table"
	"github.com/gaepo/sheetlogin/internal/port/outbound"
)

// DefaultRange reads every populated cell of the first sheet.
const DefaultRange = "A:ZZ"

// DefaultTimeout bounds a single Values.Get call.
const DefaultTimeout = 30 * time.Second

var spreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// Config configures a Sheets source.
type Config struct {
	// Spreadsheet is a spreadsheet ID or a full docs.google.com URL.
	Spreadsheet string
	// Range in A1 notation, e.g. "Sheet1!A:F". Defaults to DefaultRange.
	Range string
	// CredentialsFile is a path to a service-account JSON key.
	CredentialsFile string
	// CredentialsJSON is an inline service-account JSON key.
	CredentialsJSON string
	// APIKey works for sheets shared with "anyone with the link".
	APIKey string
	// Timeout for each fetch. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Endpoint overrides the API base URL. Used by tests.
	Endpoint string
}

// Source fetches the table with Spreadsheets.Values.Get.
type Source struct {
	svc           *sheets.Service
	spreadsheetID string
	rng           string
	timeout       time.Duration
}

// New builds a Source. When no credentials are configured it falls back to
// Application Default Credentials.
func New(ctx context.Context, cfg Config) (*Source, error) {
	id := SpreadsheetID(cfg.Spreadsheet)
	if id == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %v", table.ErrConnection, err)
	}

	rng := cfg.Range
	if rng == "" {
		rng = DefaultRange
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Source{
		svc:           svc,
		spreadsheetID: id,
		rng:           rng,
		timeout:       timeout,
	}, nil
}

// SpreadsheetID extracts the ID from a spreadsheet URL. Anything that is not
// a URL is returned trimmed.
func SpreadsheetID(s string) string {
	s = strings.TrimSpace(s)
	if m := spreadsheetURL.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// Name implements outbound.TableSource.
func (s *Source) Name() string {
	return "sheets"
}

// Fetch implements outbound.TableSource.
func (s *Source) Fetch(ctx context.Context) (*table.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, fmt.Errorf("%w: sheets api returned %d: %s", table.ErrConnection, gerr.Code, gerr.Message)
		}
		return nil, fmt.Errorf("%w: %v", table.ErrConnection, err)
	}

	return toTable(resp.Values)
}

func toTable(values [][]interface{}) (*table.Table, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", table.ErrFormat)
	}

	header := make([]string, len(values[0]))
	for i, v := range values[0] {
		header[i] = table.CellText(v)
	}

	rows := make([][]any, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make([]any, len(raw))
		for i, v := range raw {
			row[i] = table.SanitizeCell(v)
		}
		rows = append(rows, row)
	}

	return table.New(header, rows)
}

var _ outbound.TableSource = (*Source)(nil)
