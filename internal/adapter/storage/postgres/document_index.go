package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

type documentIndex struct {
	pool  Pool
	clock func() time.Time
}

// NewDocumentIndex creates the PostgreSQL-backed authoritative document index.
func NewDocumentIndex(pool Pool) ports.DocumentIndex {
	return &documentIndex{pool: pool, clock: time.Now}
}

func (r *documentIndex) Lookup(ctx context.Context, reference string) (*domain.RemoteRecord, error) {
	var (
		rec  domain.RemoteRecord
		kind string
		st   string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT reference_number, kind, status, holder_name, document_type, issued_at,
		        signature_digest, revoked, published_at
		 FROM issued_documents WHERE reference_number = $1`, reference,
	).Scan(
		&rec.View.ReferenceNumber, &kind, &st, &rec.View.HolderName, &rec.View.DocumentType,
		&rec.View.IssuedAt, &rec.SignatureDigest, &rec.Revoked, &rec.PublishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up document %s: %w", reference, err)
	}
	rec.View.Kind = domain.ArtifactKind(kind)
	rec.View.Status = domain.ArtifactStatus(st)
	return &rec, nil
}

// Publish keeps the first record for a reference; later publishes are ignored.
func (r *documentIndex) Publish(ctx context.Context, rec *domain.RemoteRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO issued_documents
		   (reference_number, kind, status, holder_name, document_type, issued_at,
		    signature_digest, revoked, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
		 ON CONFLICT (reference_number) DO NOTHING`,
		rec.View.ReferenceNumber, string(rec.View.Kind), string(rec.View.Status),
		rec.View.HolderName, rec.View.DocumentType, rec.View.IssuedAt,
		rec.SignatureDigest, rec.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("publishing document %s: %w", rec.View.ReferenceNumber, err)
	}
	return nil
}

func (r *documentIndex) Revoke(ctx context.Context, reference string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE issued_documents SET revoked = TRUE, revoked_at = COALESCE(revoked_at, $2)
		 WHERE reference_number = $1`,
		reference, r.clock().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("revoking document %s: %w", reference, err)
	}
	return tag.RowsAffected() > 0, nil
}
