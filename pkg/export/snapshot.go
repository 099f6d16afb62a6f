// Package export writes extracted entity data to CSV and XLSX.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/FACorreiaa/bankconnect-go/pkg/bankconnect"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

// Snapshot is the extracted data of one entity at a point in time.
type Snapshot struct {
	EntityID  string
	TakenAt   time.Time
	Currency  string
	Collected model.Category

	Accounts           []model.Account
	FraudInfo          []model.FraudInfo
	Identity           model.Identity
	Transactions       []model.Transaction
	CreditRecurring    []model.RecurringGroup
	DebitRecurring     []model.RecurringGroup
	Salary             []model.Transaction
	LenderTransactions []model.Transaction
}

// Collect reads the requested categories of the entity, polling where needed.
// The first failing read aborts the collection.
func Collect(ctx context.Context, entity *bankconnect.Entity, categories model.Category, q bankconnect.Query) (*Snapshot, error) {
	entityID, err := entity.EntityID(ctx)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{EntityID: entityID, TakenAt: time.Now().UTC(), Currency: model.DefaultCurrency}

	for _, c := range model.AllCategories {
		if !categories.Has(c) {
			continue
		}
		if err := s.collect(ctx, entity, c, q); err != nil {
			return nil, fmt.Errorf("collect %s: %w", c, err)
		}
		s.Collected |= c
	}
	return s, nil
}

func (s *Snapshot) collect(ctx context.Context, entity *bankconnect.Entity, c model.Category, q bankconnect.Query) error {
	var err error
	switch c {
	case model.CategoryAccounts:
		s.Accounts, err = entity.Accounts(ctx, q)
	case model.CategoryFraudInfo:
		s.FraudInfo, err = entity.FraudInfo(ctx, q)
	case model.CategoryIdentity:
		s.Identity, err = entity.Identity(ctx, q.Reload)
	case model.CategoryTransactions:
		s.Transactions, err = entity.Transactions(ctx, q)
	case model.CategoryCreditRecurring:
		s.CreditRecurring, err = entity.CreditRecurring(ctx, q)
	case model.CategoryDebitRecurring:
		s.DebitRecurring, err = entity.DebitRecurring(ctx, q)
	case model.CategorySalary:
		s.Salary, err = entity.Salary(ctx, q)
	case model.CategoryLenderTransactions:
		s.LenderTransactions, err = entity.LenderTransactions(ctx, q)
	}
	return err
}
