package ingest

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veraledger/veraledger/internal/platform/db"
)

// identifierRe matches the safe table identifiers this package is
// willing to interpolate into statements.
var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Repository appends opening balance rows.
type Repository struct {
	pool        *pgxpool.Pool
	insertQuery string
}

// NewRepository constructs the repository for the named opening balance
// table. The identifier is the only interpolated value; everything else
// travels as a parameter.
func NewRepository(pool *pgxpool.Pool, table string) (*Repository, error) {
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("ingest: %q is not a valid table identifier", table)
	}
	return &Repository{
		pool: pool,
		insertQuery: fmt.Sprintf(
			`INSERT INTO %s (account, description, opening_balance, account_type)
			 VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''))`, table),
	}, nil
}

// InsertRecords appends the parsed rows in one transaction and returns
// the number inserted.
func (r *Repository) InsertRecords(ctx context.Context, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var inserted int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			tag, err := tx.Exec(ctx, r.insertQuery,
				rec.Account, rec.Description, rec.Balance, rec.AccountType)
			if err != nil {
				return fmt.Errorf("insert opening balance %s: %w", rec.Account, err)
			}
			inserted += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
