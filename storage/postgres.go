// Package storage exports classification results to PostgreSQL.
package storage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/giygas/nhi-hospitals/classifier"
	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Compile-time check to ensure PostgresSink implements ResultSink
var _ interfaces.ResultSink = (*PostgresSink)(nil)

var hospitalColumns = []string{"run_id", "hospital_name", "region", "city"}

// PostgresSink writes every classification run to two tables: one row per run and one
// row per hospital. Unclassified hospitals have a NULL region and city.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to connStr and creates the tables when missing
func NewPostgresSink(ctx context.Context, connStr string) (*PostgresSink, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logging.Info("Connected to PostgreSQL", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	return &PostgresSink{pool: pool}, nil
}

// Export stores result under runID in one transaction
func (s *PostgresSink) Export(ctx context.Context, runID string, result *classifier.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO classification_runs (run_id, classified, unclassified) VALUES ($1, $2, $3)`,
		runID, result.TotalClassified(), len(result.Unclassified),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}

	rows := make([][]any, 0, result.TotalClassified()+len(result.Unclassified))
	for _, region := range classifier.Regions {
		for _, city := range result.Cities(region) {
			for _, hospital := range result.Hospitals(region, city) {
				rows = append(rows, []any{runID, hospital, string(region), city})
			}
		}
	}
	for _, hospital := range result.Unclassified {
		rows = append(rows, []any{runID, hospital, nil, nil})
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"hospital_classifications"}, hospitalColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy hospital_classifications: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logging.Info("Classification exported", "run_id", runID, "rows", copied)
	return nil
}

// Close releases the connection pool
func (s *PostgresSink) Close() {
	s.pool.Close()
}
