package bankconnect

import (
	"time"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

// AccountScoped is a record that belongs to one account.
type AccountScoped interface {
	GetAccountID() string
}

// Dated is a record carrying a service timestamp.
type Dated interface {
	GetDate() string
}

// AccountIDFilter keeps records of the given account. The id must be a hyphenated UUID.
func AccountIDFilter[T AccountScoped](accountID string) (func(T) bool, error) {
	if !IsValidUUID4(accountID) {
		return nil, apperror.InvalidArgument("account_filter", "invalid account_id %q", accountID)
	}
	return func(record T) bool {
		return record.GetAccountID() == accountID
	}, nil
}

// DateRangeFilter keeps records dated within [from, to], compared by calendar day.
// A zero bound is open. Records whose date does not parse are dropped.
func DateRangeFilter[T Dated](from, to time.Time) func(T) bool {
	fromDay, toDay := day(from), day(to)
	return func(record T) bool {
		t, err := model.ParseDate(record.GetDate())
		if err != nil {
			return false
		}
		d := day(t)
		if !from.IsZero() && d.Before(fromDay) {
			return false
		}
		if !to.IsZero() && d.After(toDay) {
			return false
		}
		return true
	}
}

// Apply returns the records keep accepts, in order. A nil keep returns a copy of records.
func Apply[T any](records []T, keep func(T) bool) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
