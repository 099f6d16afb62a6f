package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

// WriteCSV writes records with a header row taken from their csv tags.
func WriteCSV[T any](w io.Writer, records []T) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// ReadTransactionsCSV parses transactions previously written by WriteCSV.
func ReadTransactionsCSV(r io.Reader) ([]model.Transaction, error) {
	var rows []model.Transaction
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}
