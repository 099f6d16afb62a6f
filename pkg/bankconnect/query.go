package bankconnect

import (
	"time"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
)

// Query controls a category read.
type Query struct {
	// Reload discards the cache and runs one fresh poll cycle.
	Reload bool
	// AccountID narrows the result to one account. It takes precedence over the date range.
	AccountID string
	// From and To bound dated records inclusively; a zero value leaves that side open.
	From time.Time
	To   time.Time
}

func (q Query) validate(op string) error {
	if q.AccountID != "" && !IsValidUUID4(q.AccountID) {
		return apperror.InvalidArgument(op, "invalid account_id %q", q.AccountID)
	}
	if !q.From.IsZero() && !q.To.IsZero() && day(q.From).After(day(q.To)) {
		return apperror.InvalidArgument(op, "from date %s is after to date %s",
			q.From.Format(time.DateOnly), q.To.Format(time.DateOnly))
	}
	return nil
}

func (q Query) hasDateRange() bool {
	return !q.From.IsZero() || !q.To.IsZero()
}

// narrowByAccount applies the account filter when one is set.
func narrowByAccount[T AccountScoped](records []T, q Query) ([]T, error) {
	if q.AccountID == "" {
		return Apply(records, nil), nil
	}
	keep, err := AccountIDFilter[T](q.AccountID)
	if err != nil {
		return nil, err
	}
	return Apply(records, keep), nil
}

type datedRecord interface {
	AccountScoped
	Dated
}

// narrow applies either the account filter or the date range, never both.
func narrow[T datedRecord](records []T, q Query) ([]T, error) {
	if q.AccountID != "" || !q.hasDateRange() {
		return narrowByAccount(records, q)
	}
	return Apply(records, DateRangeFilter[T](q.From, q.To)), nil
}
