package model

import "strings"

// Category is one independently cached data set of an entity.
type Category uint16

const (
	CategoryAccounts Category = 1 << iota
	CategoryFraudInfo
	CategoryIdentity
	CategoryTransactions
	CategoryCreditRecurring
	CategoryDebitRecurring
	CategorySalary
	CategoryLenderTransactions
)

// AllCategories lists every category in a stable order.
var AllCategories = []Category{
	CategoryAccounts,
	CategoryFraudInfo,
	CategoryIdentity,
	CategoryTransactions,
	CategoryCreditRecurring,
	CategoryDebitRecurring,
	CategorySalary,
	CategoryLenderTransactions,
}

var categoryNames = map[Category]string{
	CategoryAccounts:           "accounts",
	CategoryFraudInfo:          "fraud_info",
	CategoryIdentity:           "identity",
	CategoryTransactions:       "transactions",
	CategoryCreditRecurring:    "credit_recurring",
	CategoryDebitRecurring:     "debit_recurring",
	CategorySalary:             "salary",
	CategoryLenderTransactions: "lender_transactions",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	parts := make([]string, 0, len(AllCategories))
	for _, single := range AllCategories {
		if c&single != 0 {
			parts = append(parts, categoryNames[single])
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Has reports whether every category in want is present in c.
func (c Category) Has(want Category) bool {
	return c&want == want
}

// ParseCategory maps a category name back to its value.
func ParseCategory(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range categoryNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Endpoint is a remote read operation. Each read populates a fixed set of categories.
type Endpoint int

const (
	EndpointAccounts Endpoint = iota
	EndpointIdentity
	EndpointTransactions
	EndpointRecurring
	EndpointSalary
	EndpointLenderTransactions
)

func (e Endpoint) String() string {
	switch e {
	case EndpointAccounts:
		return "accounts"
	case EndpointIdentity:
		return "identity"
	case EndpointTransactions:
		return "transactions"
	case EndpointRecurring:
		return "recurring_transactions"
	case EndpointSalary:
		return "salary"
	case EndpointLenderTransactions:
		return "lender_transactions"
	default:
		return "unknown"
	}
}

// Categories returns the categories a completed response of this endpoint carries.
func (e Endpoint) Categories() Category {
	base := CategoryAccounts | CategoryFraudInfo
	switch e {
	case EndpointIdentity:
		return base | CategoryIdentity
	case EndpointTransactions:
		return base | CategoryTransactions
	case EndpointRecurring:
		return base | CategoryCreditRecurring | CategoryDebitRecurring
	case EndpointSalary:
		return base | CategorySalary
	case EndpointLenderTransactions:
		return base | CategoryLenderTransactions
	default:
		return base
	}
}

// EndpointFor returns the read that resolves the given category.
func EndpointFor(c Category) Endpoint {
	switch c {
	case CategoryIdentity:
		return EndpointIdentity
	case CategoryTransactions:
		return EndpointTransactions
	case CategoryCreditRecurring, CategoryDebitRecurring:
		return EndpointRecurring
	case CategorySalary:
		return EndpointSalary
	case CategoryLenderTransactions:
		return EndpointLenderTransactions
	default:
		return EndpointAccounts
	}
}
