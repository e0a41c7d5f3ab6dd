package postgres

import (
	"context"
	"fmt"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
)

type verificationLogRepo struct {
	pool Pool
}

// NewVerificationLogRepository creates a PostgreSQL-backed verification log.
func NewVerificationLogRepository(pool Pool) ports.VerificationLogRepository {
	return &verificationLogRepo{pool: pool}
}

func (r *verificationLogRepo) Append(ctx context.Context, e *domain.VerificationLogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO verification_logs (id, reference_number, verifier, valid, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ReferenceNumber, e.Verifier, e.Valid, string(e.Reason), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending verification log: %w", err)
	}
	return nil
}

func (r *verificationLogRepo) ListByReference(ctx context.Context, reference string, limit int) ([]domain.VerificationLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, reference_number, verifier, valid, reason, created_at
		 FROM verification_logs
		 WHERE reference_number = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		reference, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing verification logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.VerificationLogEntry, 0)
	for rows.Next() {
		var (
			e      domain.VerificationLogEntry
			reason string
		)
		if err := rows.Scan(&e.ID, &e.ReferenceNumber, &e.Verifier, &e.Valid, &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning verification log: %w", err)
		}
		e.Reason = domain.VerdictReason(reason)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
