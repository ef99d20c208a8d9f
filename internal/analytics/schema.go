package analytics

import (
	"fmt"
	"sort"
)

// Field identifies the canonical meaning of a column.
type Field int

const (
	FieldNone Field = iota
	FieldCustomerID
	FieldCustomerName
	FieldIssueDate
	FieldDueDate
	FieldNetAmount
	FieldPaymentDate
	FieldPaymentAmount
)

// Kind selects how a raw cell is coerced.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindAmount
)

// Column is one positional entry of a canonical schema.
type Column struct {
	Label    string
	Field    Field
	Kind     Kind
	Required bool
}

// Schema is the positional contract of a raw table: raw column N becomes Columns[N].
type Schema struct {
	Name    string
	Columns []Column
}

// Labels returns the canonical labels in order.
func (s Schema) Labels() []string {
	labels := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		labels[i] = col.Label
	}
	return labels
}

// Index returns the position of field, or -1.
func (s Schema) Index(field Field) int {
	if field == FieldNone {
		return -1
	}
	for i, col := range s.Columns {
		if col.Field == field {
			return i
		}
	}
	return -1
}

func text(label string) Column { return Column{Label: label} }

func mapped(label string, field Field, kind Kind, required bool) Column {
	return Column{Label: label, Field: field, Kind: kind, Required: required}
}

// OpenItemsLedgerSchema is the 23-column receivables export.
var OpenItemsLedgerSchema = Schema{
	Name: "open_items_ledger",
	Columns: []Column{
		text("Inativo"),
		text("Nro."),
		text("Empresa"),
		mapped("Cliente", FieldCustomerID, KindText, true),
		mapped("Fantasia", FieldCustomerName, KindText, true),
		text("Referência"),
		mapped("Vencimento", FieldDueDate, KindDate, true),
		mapped("Vl.liquido", FieldNetAmount, KindAmount, true),
		text("TD"),
		text("Nr.docto"),
		mapped("Dt.pagto", FieldPaymentDate, KindDate, false),
		mapped("Vl.pagamento", FieldPaymentAmount, KindAmount, false),
		text("TP"),
		text("Nr.pagamento"),
		text("Conta"),
		mapped("Dt.Emissão", FieldIssueDate, KindDate, true),
		text("Cobrança"),
		text("Modelo"),
		text("Negociação"),
		text("Duplicata"),
		text("Razão Social"),
		text("CNPJ/CPF"),
		text("PDD"),
	},
}

// SalesLedgerSchema is the 23-column credit-sales export.
var SalesLedgerSchema = Schema{
	Name: "sales_ledger",
	Columns: []Column{
		text("Inativo"),
		text("Nro."),
		text("Empresa"),
		mapped("Cliente", FieldCustomerID, KindText, true),
		text("Fantasia"),
		text("Referência"),
		mapped("Vencimento", FieldDueDate, KindDate, true),
		mapped("Vl.liquido", FieldNetAmount, KindAmount, true),
		text("TD"),
		text("Nr.docto"),
		mapped("Dt.pagto", FieldPaymentDate, KindDate, true),
		mapped("Vl.pagto", FieldPaymentAmount, KindAmount, false),
		text("TP"),
		text("Nr.pagto"),
		text("Conta"),
		mapped("Dt.Emissão", FieldIssueDate, KindDate, true),
		text("Cobrança"),
		text("Modelo"),
		text("Negociação"),
		text("Duplicata"),
		text("Razão Social"),
		text("CNPJ/CPF"),
		text("PDD"),
	},
}

// OpenItemsCompactSchema carries only the canonical receivables fields.
var OpenItemsCompactSchema = Schema{
	Name: "open_items_compact",
	Columns: []Column{
		mapped("customer_id", FieldCustomerID, KindText, true),
		mapped("customer_name", FieldCustomerName, KindText, true),
		mapped("issue_date", FieldIssueDate, KindDate, true),
		mapped("due_date", FieldDueDate, KindDate, true),
		mapped("net_amount", FieldNetAmount, KindAmount, true),
		mapped("payment_date", FieldPaymentDate, KindDate, false),
		mapped("payment_amount", FieldPaymentAmount, KindAmount, false),
	},
}

// SalesCompactSchema carries only the canonical sales fields.
var SalesCompactSchema = Schema{
	Name: "sales_compact",
	Columns: []Column{
		mapped("customer_id", FieldCustomerID, KindText, true),
		mapped("issue_date", FieldIssueDate, KindDate, true),
		mapped("due_date", FieldDueDate, KindDate, true),
		mapped("net_amount", FieldNetAmount, KindAmount, true),
		mapped("payment_date", FieldPaymentDate, KindDate, false),
		mapped("payment_amount", FieldPaymentAmount, KindAmount, false),
	},
}

var schemas = map[string]Schema{
	OpenItemsLedgerSchema.Name:  OpenItemsLedgerSchema,
	SalesLedgerSchema.Name:      SalesLedgerSchema,
	OpenItemsCompactSchema.Name: OpenItemsCompactSchema,
	SalesCompactSchema.Name:     SalesCompactSchema,
}

// LookupSchema resolves a built-in schema by name.
func LookupSchema(name string) (Schema, error) {
	schema, ok := schemas[name]
	if !ok {
		return Schema{}, fmt.Errorf("analytics: unknown schema %q (known: %v)", name, SchemaNames())
	}
	return schema, nil
}

// SchemaNames lists the built-in schema names in sorted order.
func SchemaNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
