// Package ingest fetches the receivables and sales ledgers from files, HTTP
// endpoints or Postgres and caches the raw tables in Redis.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

// ErrNoHeader is returned when a CSV source has no header record.
var ErrNoHeader = errors.New("ingest: missing header record")

// DefaultDelimiter separates fields in ledger exports.
const DefaultDelimiter = ';'

// Source yields one raw ledger table.
type Source interface {
	Fetch(ctx context.Context) (analytics.RawTable, error)
	String() string
}

// FileSource reads a delimited text file from disk.
type FileSource struct {
	Path      string
	Name      string
	Delimiter rune
}

// NewFileSource returns a FileSource for path using delimiter.
func NewFileSource(path, name string, delimiter rune) *FileSource {
	return &FileSource{Path: path, Name: name, Delimiter: delimiter}
}

// Fetch opens and parses the file.
func (s *FileSource) Fetch(ctx context.Context) (analytics.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return analytics.RawTable{}, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("ingest: open %s: %w", s.Path, err)
	}
	defer f.Close()
	return ParseCSV(f, s.tableName(), s.Delimiter)
}

func (s *FileSource) tableName() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
}

func (s *FileSource) String() string { return "file:" + s.Path }

// ParseCSV reads a header record followed by data records. Blank records are
// skipped and a UTF-8 byte order mark on the first label is dropped.
func ParseCSV(r io.Reader, name string, delimiter rune) (analytics.RawTable, error) {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return analytics.RawTable{}, fmt.Errorf("%w: %s", ErrNoHeader, name)
	}
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("ingest: read %s header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := analytics.RawTable{Name: name, Header: header, Rows: make([][]string, 0)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return analytics.RawTable{}, fmt.Errorf("ingest: read %s: %w", name, err)
		}
		if blank(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// PostgresLocation selects the Postgres source in configuration.
const PostgresLocation = "postgres"

// ErrNoDatabase is returned when a Postgres source is configured without a pool.
var ErrNoDatabase = errors.New("ingest: postgres source requires a database")

// NewSource picks a source for location: "postgres", an http(s) URL, or a file path.
func NewSource(location, name string, delimiter rune, db Querier, relation string, schema analytics.Schema) (Source, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("ingest: empty location for %s", name)
	case location == PostgresLocation:
		if db == nil {
			return nil, ErrNoDatabase
		}
		return NewPostgresSource(db, relation, schema), nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, name, delimiter), nil
	default:
		return NewFileSource(location, name, delimiter), nil
	}
}
