package analytics

import (
	"errors"
	"testing"
	"time"
)

func compactOpenItemsRaw(rows ...[]string) RawTable {
	return RawTable{Name: "open_items", Header: OpenItemsCompactSchema.Labels(), Rows: rows}
}

func TestNormalizeMapsColumnsByPosition(t *testing.T) {
	raw := RawTable{
		Name:   "open_items",
		Header: []string{"a", "b", "c", "d", "e", "f", "g"},
		Rows: [][]string{
			{" 42 ", "ACME", "2024-01-10", "10/02/2024", "1.234,56", "", "garbage"},
		},
	}
	table, err := Normalize(raw, OpenItemsCompactSchema)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(table.Columns) != 7 || table.Columns[0] != "customer_id" {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
	row := table.Rows[0]
	if row[0].Text != "42" {
		t.Fatalf("expected trimmed id, got %q", row[0].Text)
	}
	if got := row[3].Date.String(); got != "2024-02-10" {
		t.Fatalf("expected day-first due date, got %s", got)
	}
	if !row[4].Amount.Valid || row[4].Amount.Value != 1234.56 {
		t.Fatalf("unexpected amount %+v", row[4].Amount)
	}
	if row[5].Date.Valid {
		t.Fatalf("expected absent payment date")
	}
	if row[6].Amount.Valid {
		t.Fatalf("expected unparseable amount to be absent")
	}
}

func TestNormalizeRejectsWrongShape(t *testing.T) {
	raw := RawTable{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	if _, err := Normalize(raw, OpenItemsCompactSchema); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}

	short := compactOpenItemsRaw([]string{"1", "ACME"})
	if _, err := Normalize(short, OpenItemsCompactSchema); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch for short row, got %v", err)
	}
}

func TestNormalizeEmptyTable(t *testing.T) {
	if _, err := Normalize(compactOpenItemsRaw(), OpenItemsCompactSchema); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected empty table error, got %v", err)
	}
}

func TestNormalizeRequiredHeadersIgnoreAccentsAndCase(t *testing.T) {
	header := OpenItemsLedgerSchema.Labels()
	for i, label := range header {
		if label == "Dt.Emissão" {
			header[i] = "DT.EMISSAO"
		}
	}
	row := make([]string, len(header))
	raw := RawTable{Header: header, Rows: [][]string{row}}
	if _, err := NormalizeWithOptions(raw, OpenItemsLedgerSchema, NormalizeOptions{RequireHeaders: true}); err != nil {
		t.Fatalf("expected folded header match, got %v", err)
	}

	header[OpenItemsLedgerSchema.Index(FieldDueDate)] = "Prazo"
	if _, err := NormalizeWithOptions(raw, OpenItemsLedgerSchema, NormalizeOptions{RequireHeaders: true}); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-05":          "2024-03-05",
		"05/03/2024":          "2024-03-05",
		"2024-03-05 13:45:00": "2024-03-05",
		"45356":               "2024-03-05",
		"":                    "",
		"not a date":          "",
	}
	for input, want := range cases {
		if got := ParseDate(input).String(); got != want {
			t.Fatalf("ParseDate(%q) = %q, want %q", input, got, want)
		}
	}
	if d := ParseDate("2024-03-05T23:30:00-03:00"); d.Time.Location() != time.UTC || d.Time.Hour() != 0 {
		t.Fatalf("expected UTC midnight, got %v", d.Time)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"1234.56", 1234.56, true},
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"R$ 2.000,00", 2000, true},
		{"(150,25)", -150.25, true},
		{"1.000.000", 1000000, true},
		{"1.000", 1000, true},
		{"R$ 2.000", 2000, true},
		{"1,000", 1000, true},
		{"-12.500", -12500, true},
		{"0.125", 0.125, true},
		{"12.5", 12.5, true},
		{"1234,567", 1234.567, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tc := range cases {
		got := ParseAmount(tc.in)
		if got.Valid != tc.valid || got.Value != tc.want {
			t.Fatalf("ParseAmount(%q) = %+v, want %v/%v", tc.in, got, tc.want, tc.valid)
		}
	}
}

func TestOpenItemsAndSalesRecords(t *testing.T) {
	table, err := Normalize(compactOpenItemsRaw(
		[]string{"1", "ACME", "2024-01-01", "2024-01-31", "100", "2024-02-02", "100"},
	), OpenItemsCompactSchema)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	items, err := OpenItems(table)
	if err != nil {
		t.Fatalf("open items: %v", err)
	}
	if items[0].Key() != "1 - ACME" || !items[0].PaymentAmount.Valid {
		t.Fatalf("unexpected record %+v", items[0])
	}

	if _, err := SalesRecords(table); err != nil {
		t.Fatalf("open items layout carries every sales field: %v", err)
	}

	salesTable, err := Normalize(RawTable{Rows: [][]string{{"1", "2024-01-01", "2024-01-31", "50", "", ""}}}, SalesCompactSchema)
	if err != nil {
		t.Fatalf("normalize sales: %v", err)
	}
	if _, err := OpenItems(salesTable); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected missing customer name to fail, got %v", err)
	}
}

func TestLookupSchema(t *testing.T) {
	schema, err := LookupSchema("sales_ledger")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if schema.Index(FieldPaymentAmount) < 0 {
		t.Fatalf("sales ledger must map payment amount")
	}
	if _, err := LookupSchema("nope"); err == nil {
		t.Fatalf("expected unknown schema error")
	}
}
