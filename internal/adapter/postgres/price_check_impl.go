package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/user/pricewatch/internal/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS price_checks (
	id             BIGSERIAL PRIMARY KEY,
	run_id         TEXT        NOT NULL,
	url            TEXT        NOT NULL,
	status         TEXT        NOT NULL,
	previous_price NUMERIC,
	price          NUMERIC,
	error_kind     TEXT        NOT NULL DEFAULT '',
	error_message  TEXT        NOT NULL DEFAULT '',
	attempts       INT         NOT NULL DEFAULT 0,
	duration_ms    BIGINT      NOT NULL DEFAULT 0,
	checked_at     TIMESTAMPTZ NOT NULL
);
ALTER TABLE price_checks ALTER COLUMN previous_price TYPE NUMERIC, ALTER COLUMN price TYPE NUMERIC;
CREATE INDEX IF NOT EXISTS price_checks_url_checked_at_idx ON price_checks (url, checked_at DESC);
`

// PriceCheckRepoImpl stores the outcome of every product check in PostgreSQL.
type PriceCheckRepoImpl struct {
	db *pgxpool.Pool
}

// NewPriceCheckRepo creates a new instance of PriceCheckRepoImpl.
func NewPriceCheckRepo(db *pgxpool.Pool) *PriceCheckRepoImpl {
	return &PriceCheckRepoImpl{db: db}
}

// Connect opens a pool and makes sure the price_checks table exists.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// SaveBatch inserts all checks of a cycle in a single transaction.
func (r *PriceCheckRepoImpl) SaveBatch(ctx context.Context, checks []entity.PriceCheck) error {
	if len(checks) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO price_checks (run_id, url, status, previous_price, price, error_kind, error_message, attempts, duration_ms, checked_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::numeric, NULLIF($5, '')::numeric, $6, $7, $8, $9, $10);
	`
	batch := &pgx.Batch{}
	for _, c := range checks {
		batch.Queue(query,
			c.RunID,
			c.URL,
			string(c.Status),
			decimalText(c.PreviousPrice),
			decimalText(c.Price),
			c.ErrorKind,
			c.ErrorMessage,
			c.Attempts,
			c.DurationMS,
			c.CheckedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert price checks: %w", err)
	}
	return tx.Commit(ctx)
}

// FindByURL returns the most recent checks for url, newest first.
func (r *PriceCheckRepoImpl) FindByURL(ctx context.Context, url string, limit int) ([]*entity.PriceCheck, error) {
	query := `
		SELECT id, run_id, url, status, COALESCE(previous_price::text, ''), COALESCE(price::text, ''),
		       error_kind, error_message, attempts, duration_ms, checked_at
		FROM price_checks
		WHERE url = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, url, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []*entity.PriceCheck
	for rows.Next() {
		var (
			c               entity.PriceCheck
			status          string
			previous, price string
		)
		if err := rows.Scan(
			&c.ID,
			&c.RunID,
			&c.URL,
			&status,
			&previous,
			&price,
			&c.ErrorKind,
			&c.ErrorMessage,
			&c.Attempts,
			&c.DurationMS,
			&c.CheckedAt,
		); err != nil {
			return nil, err
		}
		c.Status = entity.ParseStatus(status)
		if c.PreviousPrice, err = parseDecimalText(previous); err != nil {
			return nil, err
		}
		if c.Price, err = parseDecimalText(price); err != nil {
			return nil, err
		}
		checks = append(checks, &c)
	}

	return checks, rows.Err()
}

func decimalText(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func parseDecimalText(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return decimal.NewNullDecimal(d), nil
}
