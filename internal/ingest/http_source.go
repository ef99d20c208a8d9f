package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/odyssey-erp/odyssey-receivables/internal/analytics"
)

// HTTPSource downloads a delimited export over HTTP.
type HTTPSource struct {
	URL       string
	Name      string
	Delimiter rune
	Client    *http.Client
}

// NewHTTPSource returns an HTTPSource with a bounded client timeout.
func NewHTTPSource(url, name string, delimiter rune) *HTTPSource {
	return &HTTPSource{
		URL:       url,
		Name:      name,
		Delimiter: delimiter,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch issues a GET request and parses the body.
func (s *HTTPSource) Fetch(ctx context.Context) (analytics.RawTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("ingest: build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("ingest: download %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return analytics.RawTable{}, fmt.Errorf("ingest: download %s: status %d", s.URL, resp.StatusCode)
	}
	return ParseCSV(resp.Body, s.Name, s.Delimiter)
}

func (s *HTTPSource) String() string { return s.URL }
