package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is the subset of *pgxpool.Pool used by PostgresRecords.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRecords stores records in the records table (see migrations).
type PostgresRecords struct {
	db pgxQuerier
}

// NewPostgresRecords builds a Postgres-backed record store.
func NewPostgresRecords(db pgxQuerier) *PostgresRecords {
	return &PostgresRecords{db: db}
}

func (p *PostgresRecords) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value::text FROM records WHERE key=$1`
	var value string
	if err := p.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return []byte(value), nil
}

func (p *PostgresRecords) Set(ctx context.Context, key string, value []byte) error {
	const query = `
        INSERT INTO records (key, value, updated_at)
        VALUES ($1, $2::jsonb, NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err := p.db.Exec(ctx, query, key, string(value))
	return err
}

func (p *PostgresRecords) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM records WHERE key=$1`
	_, err := p.db.Exec(ctx, query, key)
	return err
}

func (p *PostgresRecords) Keys(ctx context.Context, prefix string) ([]string, error) {
	const query = `SELECT key FROM records WHERE starts_with(key, $1) ORDER BY key`
	rows, err := p.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
