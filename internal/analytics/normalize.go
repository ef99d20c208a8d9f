package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RawTable is a parsed but untyped table. Rows are positional.
type RawTable struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Cell holds the coerced value of one canonical column; only the member matching
// the column Kind is populated.
type Cell struct {
	Text   string
	Date   Date
	Amount Amount
}

// Table is a normalized table whose columns are exactly the schema labels.
type Table struct {
	Schema  Schema
	Columns []string
	Rows    [][]Cell
}

// NormalizeOptions tunes Normalize.
type NormalizeOptions struct {
	// RequireHeaders checks that every Required schema label appears in the raw
	// header, compared case- and accent-insensitively.
	RequireHeaders bool
}

// Normalize maps raw onto schema by position and coerces typed columns.
func Normalize(raw RawTable, schema Schema) (*Table, error) {
	return NormalizeWithOptions(raw, schema, NormalizeOptions{})
}

// NormalizeWithOptions is Normalize with explicit options.
func NormalizeWithOptions(raw RawTable, schema Schema, opts NormalizeOptions) (*Table, error) {
	name := raw.Name
	if name == "" {
		name = schema.Name
	}
	width := len(schema.Columns)
	if width == 0 {
		return nil, fmt.Errorf("%w: schema %q has no columns", ErrSchemaMismatch, schema.Name)
	}
	if len(raw.Header) > 0 && len(raw.Header) != width {
		return nil, fmt.Errorf("%w: table %q has %d columns, schema %q expects %d", ErrSchemaMismatch, name, len(raw.Header), schema.Name, width)
	}
	if len(raw.Rows) == 0 {
		return nil, fmt.Errorf("%w: table %q", ErrEmptyTable, name)
	}
	if opts.RequireHeaders {
		if missing := missingHeaders(raw.Header, schema); len(missing) > 0 {
			return nil, fmt.Errorf("%w: table %q lacks columns %s", ErrSchemaMismatch, name, strings.Join(missing, ", "))
		}
	}

	rows := make([][]Cell, len(raw.Rows))
	for i, rawRow := range raw.Rows {
		if len(rawRow) != width {
			return nil, fmt.Errorf("%w: table %q row %d has %d cells, schema %q expects %d", ErrSchemaMismatch, name, i+1, len(rawRow), schema.Name, width)
		}
		row := make([]Cell, width)
		for j, value := range rawRow {
			switch schema.Columns[j].Kind {
			case KindDate:
				row[j] = Cell{Date: ParseDate(value)}
			case KindAmount:
				row[j] = Cell{Amount: ParseAmount(value)}
			default:
				row[j] = Cell{Text: strings.TrimSpace(value)}
			}
		}
		rows[i] = row
	}
	return &Table{Schema: schema, Columns: schema.Labels(), Rows: rows}, nil
}

func missingHeaders(header []string, schema Schema) []string {
	present := make(map[string]struct{}, len(header))
	for _, label := range header {
		present[foldLabel(label)] = struct{}{}
	}
	var missing []string
	for _, col := range schema.Columns {
		if !col.Required {
			continue
		}
		if _, ok := present[foldLabel(col.Label)]; !ok {
			missing = append(missing, col.Label)
		}
	}
	return missing
}

// foldLabel strips accents and case so "Dt.Emissão" matches "DT.EMISSAO".
func foldLabel(label string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, strings.TrimSpace(label))
	if err != nil {
		folded = strings.TrimSpace(label)
	}
	return cases.Fold().String(folded)
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006 15:04:05",
	"2006/01/02",
}

// Spreadsheet serial day 1 is 1899-12-31; the epoch absorbs the 1900 leap-year bug.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxSerialDay = 2958465

// ParseDate coerces a raw cell to a Date. Unparseable input yields an absent Date.
func ParseDate(raw string) Date {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial <= maxSerialDay {
		return NewDate(serialEpoch.AddDate(0, 0, int(serial)))
	}
	return Date{}
}

// ParseAmount coerces a raw cell to an Amount. Both "1.234,56" and "1234.56" are
// accepted; non-numeric input yields an absent Amount.
func ParseAmount(raw string) Amount {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Amount{}
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "R$")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || thousandsOnly(s, lastComma) {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1 || (lastDot >= 0 && thousandsOnly(s, lastDot)):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	if negative {
		d = d.Neg()
	}
	v, _ := d.Float64()
	return NewAmount(v)
}

// thousandsOnly reports whether the single separator at sep groups thousands,
// as in "2.000" or "12,500": one to three leading digits (not a lone zero)
// and exactly three trailing digits.
func thousandsOnly(s string, sep int) bool {
	head, tail := strings.TrimPrefix(s[:sep], "-"), s[sep+1:]
	if len(tail) != 3 || len(head) == 0 || len(head) > 3 || head == "0" {
		return false
	}
	return allDigits(head) && allDigits(tail)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// OpenItems extracts receivables records from a normalized table.
func OpenItems(t *Table) ([]OpenItemRecord, error) {
	idx, err := t.indexes(FieldCustomerID, FieldCustomerName, FieldIssueDate, FieldDueDate, FieldNetAmount)
	if err != nil {
		return nil, err
	}
	payDate := t.Schema.Index(FieldPaymentDate)
	payAmount := t.Schema.Index(FieldPaymentAmount)

	records := make([]OpenItemRecord, len(t.Rows))
	for i, row := range t.Rows {
		records[i] = OpenItemRecord{
			CustomerID:    row[idx[0]].Text,
			CustomerName:  row[idx[1]].Text,
			IssueDate:     row[idx[2]].Date,
			DueDate:       row[idx[3]].Date,
			NetAmount:     row[idx[4]].Amount,
			PaymentDate:   cellAt(row, payDate).Date,
			PaymentAmount: cellAt(row, payAmount).Amount,
		}
	}
	return records, nil
}

// SalesRecords extracts credit-sales records from a normalized table.
func SalesRecords(t *Table) ([]SalesRecord, error) {
	idx, err := t.indexes(FieldCustomerID, FieldIssueDate, FieldDueDate, FieldNetAmount)
	if err != nil {
		return nil, err
	}
	payDate := t.Schema.Index(FieldPaymentDate)
	payAmount := t.Schema.Index(FieldPaymentAmount)

	records := make([]SalesRecord, len(t.Rows))
	for i, row := range t.Rows {
		records[i] = SalesRecord{
			CustomerID:    row[idx[0]].Text,
			IssueDate:     row[idx[1]].Date,
			DueDate:       row[idx[2]].Date,
			NetAmount:     row[idx[3]].Amount,
			PaymentDate:   cellAt(row, payDate).Date,
			PaymentAmount: cellAt(row, payAmount).Amount,
		}
	}
	return records, nil
}

func (t *Table) indexes(fields ...Field) ([]int, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil table", ErrSchemaMismatch)
	}
	out := make([]int, len(fields))
	for i, field := range fields {
		idx := t.Schema.Index(field)
		if idx < 0 {
			return nil, fmt.Errorf("%w: schema %q has no column for field %d", ErrSchemaMismatch, t.Schema.Name, field)
		}
		out[i] = idx
	}
	return out, nil
}

func cellAt(row []Cell, idx int) Cell {
	if idx < 0 || idx >= len(row) {
		return Cell{}
	}
	return row[idx]
}
