package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veraledger/veraledger/internal/platform/db"
)

// Tables names the five relations the engine touches. Identifiers are
// validated by the config layer before they reach this package.
type Tables struct {
	OpeningBalance  string
	Historical      string
	MonthlyBalance  string
	Vouchers        string
	CurrentVouchers string
}

// Repository provides persistence for the balance pipeline. Account sets and
// date ranges travel as query parameters; only the operator-configured table
// identifiers are interpolated, once, at construction.
type Repository struct {
	pool     *pgxpool.Pool
	tables   Tables
	excluded []string

	openingQuery    string
	historicalQuery string
	voucherQuery    string
	currVouchQuery  string
	monthlyQuery    string
	upsertQuery     string
}

// NewRepository constructs a repository over the given pool and table set.
func NewRepository(pool *pgxpool.Pool, tables Tables, excludedVouchers []string) *Repository {
	r := &Repository{pool: pool, tables: tables, excluded: excludedVouchers}
	r.openingQuery = fmt.Sprintf(
		`SELECT account, COALESCE(opening_balance, 0), COALESCE(account_type, ''), COALESCE(description, '')
FROM %s`, tables.OpeningBalance)
	r.historicalQuery = fmt.Sprintf(
		`SELECT account, COALESCE(%%s, 0)
FROM %s
WHERE month_key = $1 AND account = ANY($2)`, tables.Historical)
	voucherSum := `SELECT account_code, COALESCE(SUM(amount_original), 0)
FROM %s
WHERE transaction_date >= $1 AND transaction_date < $2
  AND account_code = ANY($3)
  AND NOT (voucher = ANY($4))
GROUP BY account_code`
	r.voucherQuery = fmt.Sprintf(voucherSum, tables.Vouchers)
	r.currVouchQuery = fmt.Sprintf(voucherSum, tables.CurrentVouchers)
	r.monthlyQuery = fmt.Sprintf(
		`SELECT account, month_key, COALESCE(opening_balance, 0), COALESCE(description, ''), COALESCE(account_type, '')
FROM %s
WHERE month_key = $1
ORDER BY account`, tables.MonthlyBalance)
	r.upsertQuery = fmt.Sprintf(
		`INSERT INTO %[1]s (account, month_key, opening_balance, description, account_type)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
ON CONFLICT (account, month_key) DO UPDATE SET
  opening_balance = EXCLUDED.opening_balance,
  description = COALESCE(NULLIF(%[1]s.description, ''), EXCLUDED.description),
  account_type = COALESCE(NULLIF(%[1]s.account_type, ''), EXCLUDED.account_type)`, tables.MonthlyBalance)
	return r
}

// HistoricalColumn selects which pre-aggregated amount a policy reads.
type HistoricalColumn string

const (
	// ColumnSmoothened feeds cumulative accounts.
	ColumnSmoothened HistoricalColumn = "smoothened_amount"
	// ColumnJournal feeds periodic accounts.
	ColumnJournal HistoricalColumn = "journal_amount"
)

// RequiredTablesExist verifies the opening, historical and monthly tables are
// present before any business data is touched.
func (r *Repository) RequiredTablesExist(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("ledger repo not initialised")
	}
	required := []string{r.tables.OpeningBalance, r.tables.Historical, r.tables.MonthlyBalance}
	const query = `SELECT to_regclass($1) IS NOT NULL`
	for _, name := range required {
		var exists bool
		if err := r.pool.QueryRow(ctx, query, name).Scan(&exists); err != nil {
			return newRunError(FailureSchemaMissing, "check required tables", "", err)
		}
		if !exists {
			return newRunError(FailureSchemaMissing, "check required tables", "",
				fmt.Errorf("required table %q not found", name))
		}
	}
	return nil
}

// OpeningBalances loads the full opening-balance snapshot.
func (r *Repository) OpeningBalances(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := r.pool.Query(ctx, r.openingQuery)
	if err != nil {
		return nil, fmt.Errorf("ledger: load opening balances: %w", err)
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		if err := rows.Scan(&row.Account, &row.OpeningBalance, &row.AccountType, &row.Description); err != nil {
			return nil, fmt.Errorf("ledger: scan opening balance: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: load opening balances: %w", err)
	}
	return out, nil
}

// HistoricalAmounts fetches the month's pre-aggregated variance for the
// account set. Accounts with no record are simply absent from the map.
func (r *Repository) HistoricalAmounts(ctx context.Context, month MonthKey, accounts []string, column HistoricalColumn) (map[string]float64, error) {
	if len(accounts) == 0 {
		return map[string]float64{}, nil
	}
	query := fmt.Sprintf(r.historicalQuery, column)
	rows, err := r.pool.Query(ctx, query, string(month), accounts)
	if err != nil {
		return nil, fmt.Errorf("ledger: historical variance for %s: %w", month, err)
	}
	defer rows.Close()
	return scanAmounts(rows)
}

// VoucherSums aggregates transaction amounts per account for the calendar
// month, excluding the marker vouchers. The current-period table serves months
// at or after the voucher cutover; the archival table serves earlier months.
func (r *Repository) VoucherSums(ctx context.Context, month MonthKey, accounts []string, current bool) (map[string]float64, error) {
	if len(accounts) == 0 {
		return map[string]float64{}, nil
	}
	query := r.voucherQuery
	if current {
		query = r.currVouchQuery
	}
	start, end := month.Bounds()
	rows, err := r.pool.Query(ctx, query, start, end, accounts, r.excluded)
	if err != nil {
		return nil, fmt.Errorf("ledger: voucher sums for %s: %w", month, err)
	}
	defer rows.Close()
	return scanAmounts(rows)
}

// MonthlyBalances reads the stored reporting rows for one month.
func (r *Repository) MonthlyBalances(ctx context.Context, month MonthKey) ([]MonthlyBalanceRow, error) {
	rows, err := r.pool.Query(ctx, r.monthlyQuery, string(month))
	if err != nil {
		return nil, fmt.Errorf("ledger: monthly balances for %s: %w", month, err)
	}
	defer rows.Close()
	var out []MonthlyBalanceRow
	for rows.Next() {
		var row MonthlyBalanceRow
		var key string
		if err := rows.Scan(&row.Account, &key, &row.Balance, &row.Description, &row.AccountType); err != nil {
			return nil, fmt.Errorf("ledger: scan monthly balance: %w", err)
		}
		row.MonthKey = MonthKey(key)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: monthly balances for %s: %w", month, err)
	}
	return out, nil
}

// UpsertMonthlyBalances writes a batch atomically. The balance column is
// always overwritten; description and account_type keep their stored value
// unless it is null or empty. An empty batch is a no-op.
func (r *Repository) UpsertMonthlyBalances(ctx context.Context, batch []MonthlyBalanceRow) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var written int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, row := range batch {
			tag, err := tx.Exec(ctx, r.upsertQuery,
				row.Account, string(row.MonthKey), row.Balance, row.Description, row.AccountType)
			if err != nil {
				return fmt.Errorf("ledger: upsert %s/%s: %w", row.Account, row.MonthKey, err)
			}
			written += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// IsUndefinedTable reports whether the error is Postgres' undefined_table.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

func scanAmounts(rows pgx.Rows) (map[string]float64, error) {
	out := make(map[string]float64)
	for rows.Next() {
		var account string
		var amount float64
		if err := rows.Scan(&account, &amount); err != nil {
			return nil, fmt.Errorf("ledger: scan amount: %w", err)
		}
		out[account] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
