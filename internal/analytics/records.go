package analytics

import (
	"encoding/json"
	"time"
)

const dayLayout = "2006-01-02"

// Date is a calendar day normalised to UTC midnight. The zero value is absent.
type Date struct {
	Time  time.Time
	Valid bool
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

const secondsPerDay = 24 * 60 * 60

// DaysSince returns the whole days between other and d. Callers check Valid first.
func (d Date) DaysSince(other Date) float64 {
	return float64((d.Time.Unix() - other.Time.Unix()) / secondsPerDay)
}

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dayLayout)
}

// MarshalJSON renders absent dates as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.Format(dayLayout))
}

// Amount is a monetary value. Absent amounts count as 0 in sums and are left out
// of weighted-average denominators.
type Amount struct {
	Value float64
	Valid bool
}

// NewAmount wraps a present value.
func NewAmount(v float64) Amount {
	return Amount{Value: v, Valid: true}
}

// OrZero returns the value, or 0 when absent.
func (a Amount) OrZero() float64 {
	if !a.Valid {
		return 0
	}
	return a.Value
}

// MarshalJSON renders absent amounts as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

// Metric is a ratio or weighted average. Defined is false when the denominator
// was zero; Value is 0 in that case.
type Metric struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

func defined(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

var undefined = Metric{}

// OpenItemRecord is one title of the receivables ledger.
type OpenItemRecord struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	IssueDate     Date   `json:"issue_date"`
	DueDate       Date   `json:"due_date"`
	NetAmount     Amount `json:"net_amount"`
	PaymentDate   Date   `json:"payment_date"`
	PaymentAmount Amount `json:"payment_amount"`
}

// Key returns the selection key "<id> - <name>".
func (r OpenItemRecord) Key() CustomerKey {
	return NewCustomerKey(r.CustomerID, r.CustomerName)
}

// SalesRecord is one credit sale of the sales/payments ledger.
type SalesRecord struct {
	CustomerID    string `json:"customer_id"`
	IssueDate     Date   `json:"issue_date"`
	DueDate       Date   `json:"due_date"`
	NetAmount     Amount `json:"net_amount"`
	PaymentDate   Date   `json:"payment_date"`
	PaymentAmount Amount `json:"payment_amount"`
}

// CustomerKey is the display value used by selection surfaces. It is never used
// as an aggregation key.
type CustomerKey string

// CustomerKeySeparator joins identifier and trade name.
const CustomerKeySeparator = " - "

// NewCustomerKey composes the key for a customer.
func NewCustomerKey(id, name string) CustomerKey {
	return CustomerKey(id + CustomerKeySeparator + name)
}

// Dataset is a pair of raw ledgers fetched together. Fingerprint identifies the
// content so equal inputs can be recognised across loads.
type Dataset struct {
	OpenItems   RawTable  `json:"open_items"`
	Sales       RawTable  `json:"sales"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}
