package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresOutput appends every message to a jsonb history table.
type PostgresOutput struct {
	db    execer
	pool  *pgxpool.Pool
	table string
}

func NewPostgresOutput(ctx context.Context, dsn, table string) (*PostgresOutput, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	p := &PostgresOutput{db: pool, pool: pool, table: table}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresOutput) tableName() string {
	return pgx.Identifier{p.table}.Sanitize()
}

// EnsureSchema creates the snapshot table if it does not exist.
func (p *PostgresOutput) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id BIGSERIAL PRIMARY KEY,
            topic TEXT NOT NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`, p.tableName())
	if _, err := p.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresOutput) WriteMessage(ctx context.Context, topic string, msg []byte) error {
	stmt := fmt.Sprintf("INSERT INTO %s (topic, payload) VALUES ($1, $2)", p.tableName())
	if _, err := p.db.Exec(ctx, stmt, topic, string(msg)); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresOutput) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
