package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresStore persists analysis records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed audit trail store.
// The analyses table is created by the goose migrations.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, safe_address, safe_tx_hash, action_kind, finding_count, top_severity, report, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		rec.ID,
		strings.ToLower(rec.SafeAddress),
		strings.ToLower(rec.SafeTxHash),
		rec.ActionKind,
		rec.FindingCount,
		rec.TopSeverity,
		rec.Report,
		rec.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("record analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySafe(ctx context.Context, safeAddr string, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, safe_address, safe_tx_hash, action_kind, finding_count, top_severity, report, analyzed_at
		FROM analyses
		WHERE safe_address = $1
		ORDER BY analyzed_at DESC
		LIMIT $2
	`, strings.ToLower(safeAddr), limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		var r Record
		var analyzedAt time.Time
		if err := rows.Scan(&r.ID, &r.SafeAddress, &r.SafeTxHash, &r.ActionKind, &r.FindingCount, &r.TopSeverity, &r.Report, &analyzedAt); err != nil {
			continue
		}
		r.AnalyzedAt = analyzedAt
		result = append(result, &r)
	}
	return result, rows.Err()
}
