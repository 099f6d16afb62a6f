// Package testutil generates realistic extraction payloads for tests using gofakeit.
package testutil

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

// Generator produces fixtures. A fixed seed yields reproducible data.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a generator with the given seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// AccountID returns a random hyphenated UUID v4.
func (g *Generator) AccountID() string {
	return uuid.NewString()
}

// Account generates an account with the given id.
func (g *Generator) Account(accountID string) model.Account {
	return model.Account{
		AccountID:       accountID,
		AccountNumber:   g.faker.Numerify("XXXXXX######"),
		Bank:            g.faker.RandomString([]string{"axis", "hdfc", "icici", "sbi", "kotak"}),
		IFSC:            g.faker.Regex("[A-Z]{4}0[0-9]{6}"),
		AccountCategory: g.faker.RandomString([]string{"individual", "corporate"}),
		Months:          []string{"2019-09", "2019-10"},
		Statements:      []string{uuid.NewString()},
	}
}

// Transaction generates a transaction for the account dated at the given time.
func (g *Generator) Transaction(accountID string, at time.Time) model.Transaction {
	txType := model.TransactionDebit
	if g.faker.Bool() {
		txType = model.TransactionCredit
	}
	amount := decimal.NewFromFloat(g.faker.Price(10, 50000)).Round(2)
	return model.Transaction{
		AccountID:       accountID,
		Date:            at.Format(model.DateLayout),
		TransactionType: txType,
		TransactionNote: g.faker.Company(),
		Amount:          amount,
		Balance:         decimal.NewFromFloat(g.faker.Price(0, 200000)).Round(2),
		Hash:            g.faker.UUID(),
	}
}

// Transactions generates n daily transactions starting at from.
func (g *Generator) Transactions(accountID string, from time.Time, n int) []model.Transaction {
	out := make([]model.Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Transaction(accountID, from.AddDate(0, 0, i)))
	}
	return out
}

// Identity generates the holder identity of an account.
func (g *Generator) Identity(accountID string) model.Identity {
	return model.Identity{
		AccountID:     accountID,
		AccountNumber: g.faker.Numerify("XXXXXX######"),
		Name:          g.faker.Name(),
		Address:       g.faker.Address().Address,
	}
}

// FraudInfo generates a fraud signal for the account.
func (g *Generator) FraudInfo(accountID string) model.FraudInfo {
	return model.FraudInfo{
		StatementID: uuid.NewString(),
		FraudType:   g.faker.RandomString([]string{"author_fraud", "font_fraud", "balance_fraud"}),
		AccountID:   accountID,
	}
}

// RecurringGroup generates a recurring group of monthly transactions.
func (g *Generator) RecurringGroup(accountID string, from time.Time) model.RecurringGroup {
	txns := make([]model.Transaction, 0, 3)
	for i := 0; i < 3; i++ {
		txns = append(txns, g.Transaction(accountID, from.AddDate(0, i, 0)))
	}
	return model.RecurringGroup{
		AccountID:            accountID,
		CleanTransactionNote: g.faker.Company(),
		StartDate:            txns[0].Date,
		EndDate:              txns[len(txns)-1].Date,
		Median:               txns[1].Amount,
		Transactions:         txns,
	}
}

// Completed returns a progress list with every statement completed.
func Completed(n int) []model.StatementProgress {
	return progressOf(model.StatusCompleted, n)
}

// Processing returns a progress list with every statement processing.
func Processing(n int) []model.StatementProgress {
	return progressOf(model.StatusProcessing, n)
}

func progressOf(status model.StatementStatus, n int) []model.StatementProgress {
	out := make([]model.StatementProgress, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.StatementProgress{StatementID: uuid.NewString(), Status: status})
	}
	return out
}

// CompletedEnvelope builds a complete, successful response of the endpoint for one account.
func (g *Generator) CompletedEnvelope(endpoint model.Endpoint, accountID string, from time.Time) *model.Envelope {
	env := &model.Envelope{
		Endpoint:  endpoint,
		Progress:  Completed(1),
		Present:   endpoint.Categories(),
		Accounts:  []model.Account{g.Account(accountID)},
		FraudInfo: []model.FraudInfo{g.FraudInfo(accountID)},
	}
	switch endpoint {
	case model.EndpointIdentity:
		env.Identity = g.Identity(accountID)
	case model.EndpointTransactions:
		env.Transactions = g.Transactions(accountID, from, 5)
	case model.EndpointRecurring:
		env.CreditRecurring = []model.RecurringGroup{g.RecurringGroup(accountID, from)}
		env.DebitRecurring = []model.RecurringGroup{g.RecurringGroup(accountID, from)}
	case model.EndpointSalary:
		env.Salary = g.Transactions(accountID, from, 2)
	case model.EndpointLenderTransactions:
		env.LenderTransactions = g.Transactions(accountID, from, 2)
	}
	return env
}
