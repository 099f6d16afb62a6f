package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/bankconnect-go/pkg/model"
	"github.com/FACorreiaa/bankconnect-go/pkg/money"
)

// Sheet names of the workbook.
const (
	SheetSummary      = "Summary"
	SheetAccounts     = "Accounts"
	SheetFraud        = "Fraud"
	SheetTransactions = "Transactions"
	SheetRecurring    = "Recurring"
	SheetSalary       = "Salary"
	SheetLender       = "Lender"
)

var transactionHeaders = []any{"Account", "Date", "Type", "Note", "Cheque", "Amount", "Signed Amount", "Balance", "Category"}

// WriteXLSX writes the snapshot as a workbook with one sheet per collected category.
func WriteXLSX(w io.Writer, s *Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if err := writeSummary(f, s); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	if s.Collected.Has(model.CategoryAccounts) {
		rows := make([][]any, 0, len(s.Accounts))
		for _, a := range s.Accounts {
			rows = append(rows, []any{a.AccountID, a.AccountNumber, a.Bank, a.IFSC, a.MICR, a.AccountCategory, len(a.Statements)})
		}
		if err := writeSheet(f, SheetAccounts, []any{"Account", "Number", "Bank", "IFSC", "MICR", "Category", "Statements"}, rows); err != nil {
			return err
		}
	}
	if s.Collected.Has(model.CategoryFraudInfo) {
		rows := make([][]any, 0, len(s.FraudInfo))
		for _, fi := range s.FraudInfo {
			rows = append(rows, []any{fi.StatementID, fi.AccountID, fi.FraudType})
		}
		if err := writeSheet(f, SheetFraud, []any{"Statement", "Account", "Fraud Type"}, rows); err != nil {
			return err
		}
	}
	if s.Collected.Has(model.CategoryTransactions) {
		if err := writeSheet(f, SheetTransactions, transactionHeaders, transactionRows(s.Transactions, s.Currency)); err != nil {
			return err
		}
	}
	if s.Collected.Has(model.CategorySalary) {
		if err := writeSheet(f, SheetSalary, transactionHeaders, transactionRows(s.Salary, s.Currency)); err != nil {
			return err
		}
	}
	if s.Collected.Has(model.CategoryLenderTransactions) {
		if err := writeSheet(f, SheetLender, transactionHeaders, transactionRows(s.LenderTransactions, s.Currency)); err != nil {
			return err
		}
	}
	if s.Collected&(model.CategoryCreditRecurring|model.CategoryDebitRecurring) != 0 {
		var rows [][]any
		rows = appendRecurring(rows, "credit", s.CreditRecurring)
		rows = appendRecurring(rows, "debit", s.DebitRecurring)
		if err := writeSheet(f, SheetRecurring, []any{"Direction", "Account", "Note", "Start", "End", "Median", "Occurrences"}, rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, s *Snapshot) error {
	rows := [][]any{
		{"Entity", s.EntityID},
		{"Taken At", s.TakenAt.Format(time.RFC3339)},
		{"Categories", s.Collected.String()},
	}
	if s.Collected.Has(model.CategoryIdentity) {
		rows = append(rows,
			[]any{"Holder", s.Identity.Name},
			[]any{"Address", s.Identity.Address},
			[]any{"Account Number", s.Identity.AccountNumber},
		)
	}
	if s.Collected.Has(model.CategoryTransactions) {
		totals, err := netByAccount(s.Transactions, s.Currency)
		if err != nil {
			return err
		}
		accounts := make([]string, 0, len(totals))
		for id := range totals {
			accounts = append(accounts, id)
		}
		sort.Strings(accounts)
		for _, id := range accounts {
			rows = append(rows, []any{"Net " + id, totals[id].Display()})
		}
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 24)
	_ = f.SetColWidth(SheetSummary, "B", "B", 48)
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []any, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 38)
	return nil
}

func transactionRows(txns []model.Transaction, currency string) [][]any {
	rows := make([][]any, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []any{
			t.AccountID,
			t.Date,
			string(t.TransactionType),
			t.TransactionNote,
			t.ChequeNumber,
			t.Amount.InexactFloat64(),
			t.SignedAmount(currency).String(),
			t.Balance.InexactFloat64(),
			t.Category,
		})
	}
	return rows
}

func appendRecurring(rows [][]any, direction string, groups []model.RecurringGroup) [][]any {
	for _, g := range groups {
		rows = append(rows, []any{
			direction,
			g.AccountID,
			g.CleanTransactionNote,
			g.StartDate,
			g.EndDate,
			g.Median.InexactFloat64(),
			len(g.Transactions),
		})
	}
	return rows
}

// netByAccount sums signed transaction amounts per account.
func netByAccount(txns []model.Transaction, currency string) (map[string]*money.Money, error) {
	totals := make(map[string]*money.Money)
	for _, t := range txns {
		current, ok := totals[t.AccountID]
		if !ok {
			current = money.Zero(currency)
		}
		next, err := money.Sum(currency, current, t.SignedAmount(currency))
		if err != nil {
			return nil, fmt.Errorf("net for %s: %w", t.AccountID, err)
		}
		totals[t.AccountID] = next
	}
	return totals, nil
}
