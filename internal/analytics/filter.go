package analytics

import (
	"fmt"
	"strings"
)

// AllCustomers selects the whole universe.
const AllCustomers = ""

// Selection scopes an analysis to one customer identifier or AllCustomers.
type Selection struct {
	CustomerID string
}

// All reports whether the selection is the all-customers sentinel.
func (s Selection) All() bool {
	return strings.TrimSpace(s.CustomerID) == AllCustomers
}

func (s Selection) id() string {
	return strings.TrimSpace(s.CustomerID)
}

// FilterOpenItems returns the receivables rows of the selected customer in their
// original order. A specific customer without rows fails with ErrNoMatchingCustomer.
func FilterOpenItems(items []OpenItemRecord, sel Selection) ([]OpenItemRecord, error) {
	if sel.All() {
		return items, nil
	}
	id := sel.id()
	out := make([]OpenItemRecord, 0)
	for _, item := range items {
		if item.CustomerID == id {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatchingCustomer, id)
	}
	return out, nil
}

// FilterSales returns the sales rows of the selected customer. An empty result
// is valid.
func FilterSales(sales []SalesRecord, sel Selection) []SalesRecord {
	if sel.All() {
		return sales
	}
	id := sel.id()
	out := make([]SalesRecord, 0)
	for _, sale := range sales {
		if sale.CustomerID == id {
			out = append(out, sale)
		}
	}
	return out
}

// CustomerOption is one entry of a customer picker.
type CustomerOption struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Key  CustomerKey `json:"key"`
}

// CustomerOptions lists distinct customer keys in order of first appearance.
func CustomerOptions(items []OpenItemRecord) []CustomerOption {
	seen := make(map[CustomerKey]struct{})
	options := make([]CustomerOption, 0)
	for _, item := range items {
		key := item.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		options = append(options, CustomerOption{ID: item.CustomerID, Name: item.CustomerName, Key: key})
	}
	return options
}

// ResolveCustomerKey maps a display key back to its customer identifier.
func ResolveCustomerKey(items []OpenItemRecord, key CustomerKey) (string, error) {
	want := CustomerKey(strings.TrimSpace(string(key)))
	for _, item := range items {
		if item.Key() == want {
			return item.CustomerID, nil
		}
	}
	return "", fmt.Errorf("%w: key %q", ErrNoMatchingCustomer, want)
}
