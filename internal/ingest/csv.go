// Package ingest loads opening balance snapshots from exported
// trial-balance CSV files into the reporting database.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNoHeader indicates the file ended before a header row was found.
var ErrNoHeader = errors.New("ingest: no header row")

// columnAliases maps each target column to the header spellings seen
// in trial-balance exports, matched case-insensitively.
var columnAliases = map[string][]string{
	"account":         {"account", "account code", "account_code"},
	"description":     {"description", "account_desc", "account description"},
	"opening_balance": {"opening_balance", "opening balance", "amount"},
	"account_type":    {"account_type", "account type", "type"},
}

// Record is one opening balance row ready for insertion. Balance is nil
// when the source cell was empty or not numeric.
type Record struct {
	Account     string   `validate:"required,max=64"`
	Description string   `validate:"max=255"`
	Balance     *float64 `validate:"-"`
	AccountType string   `validate:"max=64"`
}

var recordValidator = validator.New()

// ParseResult reports what the parser kept and dropped.
type ParseResult struct {
	Records []Record
	Dropped int
}

type columnIndex struct {
	account     int
	description int
	balance     int
	accountType int
}

func resolveColumns(header []string) columnIndex {
	idx := columnIndex{account: -1, description: -1, balance: -1, accountType: -1}
	lower := make(map[string]int, len(header))
	for i, h := range header {
		lower[strings.ToLower(strings.TrimSpace(h))] = i
	}
	find := func(target string) int {
		for _, alias := range columnAliases[target] {
			if i, ok := lower[alias]; ok {
				return i
			}
		}
		return -1
	}
	idx.account = find("account")
	idx.description = find("description")
	idx.balance = find("opening_balance")
	idx.accountType = find("account_type")
	return idx
}

// Parse reads a trial-balance CSV. skipRows leading rows are discarded
// before the header, matching exports that carry a title banner above
// the column names. Rows without an account code are dropped.
func Parse(r io.Reader, skipRows int) (ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for i := 0; i < skipRows; i++ {
		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return ParseResult{}, ErrNoHeader
			}
			return ParseResult{}, fmt.Errorf("ingest: skip row %d: %w", i+1, err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ParseResult{}, ErrNoHeader
		}
		return ParseResult{}, fmt.Errorf("ingest: read header: %w", err)
	}
	cols := resolveColumns(header)
	if cols.account == -1 {
		return ParseResult{}, fmt.Errorf("ingest: no account column among %v", header)
	}

	var result ParseResult
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, fmt.Errorf("ingest: read row: %w", err)
		}

		account := strings.TrimSpace(field(row, cols.account))
		if account == "" {
			result.Dropped++
			continue
		}
		rec := Record{
			Account:     account,
			Description: strings.TrimSpace(field(row, cols.description)),
			AccountType: strings.TrimSpace(field(row, cols.accountType)),
		}
		if raw := strings.TrimSpace(field(row, cols.balance)); raw != "" {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64); err == nil {
				rec.Balance = &v
			}
		}
		if err := recordValidator.Struct(rec); err != nil {
			result.Dropped++
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
