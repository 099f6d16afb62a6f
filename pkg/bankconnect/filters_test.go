package bankconnect

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

const (
	accountA = "0b6e4a1c-2d3f-4a5b-8c6d-7e8f9a0b1c2d"
	accountB = "1c7f5b2d-3e4a-4b6c-9d7e-8f9a0b1c2d3e"
)

func txn(accountID, date string) model.Transaction {
	return model.Transaction{AccountID: accountID, Date: date}
}

func TestAccountIDFilter(t *testing.T) {
	records := []model.Transaction{
		txn(accountA, "2019-09-01 00:00:00"),
		txn(accountB, "2019-09-02 00:00:00"),
		txn(accountA, "2019-09-03 00:00:00"),
	}

	keep, err := AccountIDFilter[model.Transaction](accountA)
	require.NoError(t, err)

	got := Apply(records, keep)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, accountA, r.AccountID)
	}
}

func TestAccountIDFilter_InvalidID(t *testing.T) {
	_, err := AccountIDFilter[model.Account]("abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrInvalidArgument))
}

func TestDateRangeFilter(t *testing.T) {
	records := []model.Transaction{
		txn(accountA, "2019-08-31 23:59:59"),
		txn(accountA, "2019-09-01 00:00:00"),
		txn(accountA, "2019-09-15 12:30:00"),
		txn(accountA, "2019-09-30 23:59:59"),
		txn(accountA, "2019-10-01 00:00:00"),
		txn(accountA, "not a date"),
	}
	from := time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2019, 9, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"closed range includes both ends by day", from, to, 3},
		{"open start", time.Time{}, to, 4},
		{"open end", from, time.Time{}, 4},
		{"fully open drops unparsable", time.Time{}, time.Time{}, 5},
		{"single day", to, to, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(records, DateRangeFilter[model.Transaction](tt.from, tt.to))
			assert.Len(t, got, tt.want)
		})
	}
}

func TestApply_NilKeepCopies(t *testing.T) {
	records := []model.Account{{AccountID: accountA}}
	got := Apply(records, nil)
	require.Len(t, got, 1)

	got[0].AccountID = accountB
	assert.Equal(t, accountA, records[0].AccountID)
}

func TestQueryValidate(t *testing.T) {
	day1 := time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2019, 9, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"empty", Query{}, false},
		{"valid account", Query{AccountID: accountA}, false},
		{"invalid account", Query{AccountID: "123"}, true},
		{"ordered range", Query{From: day1, To: day2}, false},
		{"same day different hour", Query{From: day1.Add(20 * time.Hour), To: day1}, false},
		{"reversed range", Query{From: day2, To: day1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.validate("test")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNarrow_AccountTakesPrecedence(t *testing.T) {
	records := []model.Transaction{
		txn(accountA, "2019-09-01 00:00:00"),
		txn(accountB, "2019-09-01 00:00:00"),
		txn(accountA, "2020-01-01 00:00:00"),
	}
	q := Query{
		AccountID: accountA,
		From:      time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2019, 9, 30, 0, 0, 0, 0, time.UTC),
	}

	got, err := narrow(records, q)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
