// Package model holds the records extracted by the bank connect service and the
// envelopes the remote reads return them in.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bankconnect-go/pkg/money"
)

// DateLayout is the timestamp format of every date field the service returns.
const DateLayout = "2006-01-02 15:04:05"

// DefaultCurrency of amounts in extracted statements.
const DefaultCurrency = money.INR

// ParseDate parses a service timestamp.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", s, err)
	}
	return t, nil
}

// Account is one bank account detected across the uploaded statements.
type Account struct {
	AccountID       string   `json:"account_id" csv:"account_id"`
	AccountNumber   string   `json:"account_number" csv:"account_number"`
	Bank            string   `json:"bank" csv:"bank"`
	IFSC            string   `json:"ifsc" csv:"ifsc"`
	MICR            string   `json:"micr" csv:"micr"`
	AccountCategory string   `json:"account_category" csv:"account_category"`
	Months          []string `json:"months" csv:"-"`
	Statements      []string `json:"statements" csv:"-"`
}

func (a Account) GetAccountID() string { return a.AccountID }

// FraudInfo is one fraud signal raised against a statement.
type FraudInfo struct {
	StatementID string `json:"statement_id" csv:"statement_id"`
	FraudType   string `json:"fraud_type" csv:"fraud_type"`
	AccountID   string `json:"account_id,omitempty" csv:"account_id"`
}

func (f FraudInfo) GetAccountID() string { return f.AccountID }

// Identity is the account holder information printed on the statement.
type Identity struct {
	AccountID       string `json:"account_id"`
	AccountNumber   string `json:"account_number"`
	Name            string `json:"name"`
	Address         string `json:"address"`
	IFSC            string `json:"ifsc,omitempty"`
	MICR            string `json:"micr,omitempty"`
	AccountCategory string `json:"account_category,omitempty"`
}

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction is one extracted statement line. Salary and lender transactions share this shape.
type Transaction struct {
	AccountID       string          `json:"account_id" csv:"account_id"`
	Date            string          `json:"date" csv:"date"`
	TransactionType TransactionType `json:"transaction_type" csv:"transaction_type"`
	TransactionNote string          `json:"transaction_note" csv:"transaction_note"`
	ChequeNumber    string          `json:"chq_num" csv:"chq_num"`
	Amount          decimal.Decimal `json:"amount" csv:"amount"`
	Balance         decimal.Decimal `json:"balance" csv:"balance"`
	Category        string          `json:"category,omitempty" csv:"category"`
	Hash            string          `json:"hash,omitempty" csv:"hash"`
}

func (t Transaction) GetAccountID() string { return t.AccountID }
func (t Transaction) GetDate() string      { return t.Date }

// Time parses the transaction date.
func (t Transaction) Time() (time.Time, error) {
	return ParseDate(t.Date)
}

// SignedAmount returns the amount as money, negative for debits.
func (t Transaction) SignedAmount(currency string) *money.Money {
	m := money.NewFromDecimal(t.Amount.Abs(), currency)
	if t.TransactionType == TransactionDebit {
		return m.Negate()
	}
	return m
}

// BalanceMoney returns the running balance after the transaction.
func (t Transaction) BalanceMoney(currency string) *money.Money {
	return money.NewFromDecimal(t.Balance, currency)
}

// RecurringGroup is a set of transactions the service judged to recur.
type RecurringGroup struct {
	AccountID            string          `json:"account_id"`
	CleanTransactionNote string          `json:"clean_transaction_note,omitempty"`
	StartDate            string          `json:"start_date,omitempty"`
	EndDate              string          `json:"end_date,omitempty"`
	Median               decimal.Decimal `json:"median"`
	Transactions         []Transaction   `json:"transactions"`
}

func (r RecurringGroup) GetAccountID() string { return r.AccountID }
