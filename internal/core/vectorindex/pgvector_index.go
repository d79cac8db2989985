package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/oselabs/paperbase/internal/core"
	"github.com/oselabs/paperbase/internal/models"
)

// PgVectorIndex persists segments and their embeddings in a pgvector-backed
// table. Upserts key on the deterministic segment id, so reprocessing a
// document overwrites its previous entries instead of duplicating them.
type PgVectorIndex struct {
	db *sql.DB
}

var _ core.VectorIndex = (*PgVectorIndex)(nil)

func NewPgVectorIndex(db *sql.DB) *PgVectorIndex {
	return &PgVectorIndex{db: db}
}

// Upsert writes the batch in one transaction. The write is all-or-nothing,
// so on failure every entry of the batch is reported back for retry; a
// repeated upsert with identical content is a no-op observationally.
func (x *PgVectorIndex) Upsert(ctx context.Context, segments []models.Segment) (core.PartialResult, error) {
	if len(segments) == 0 {
		return core.PartialResult{}, nil
	}

	tx, err := x.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return failAll(segments), fmt.Errorf("begin tx: %w", err)
	}

	const q = `
		INSERT INTO document_segments (id, document_id, position, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE
		SET text = EXCLUDED.text, embedding = EXCLUDED.embedding, position = EXCLUDED.position
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return failAll(segments), fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range segments {
		s := &segments[i]
		if len(s.Embedding) == 0 {
			_ = tx.Rollback()
			return failAll(segments), fmt.Errorf("segment %s has no embedding", s.ID)
		}
		vec := pgvector.NewVector(s.Embedding)
		if _, err := stmt.ExecContext(ctx, s.ID, s.DocumentID, s.Position, s.Text, vec); err != nil {
			_ = tx.Rollback()
			return failAll(segments), fmt.Errorf("upsert segment %s: %w", s.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return failAll(segments), fmt.Errorf("commit upsert: %w", err)
	}
	return core.PartialResult{}, nil
}

func failAll(segments []models.Segment) core.PartialResult {
	ids := make([]string, len(segments))
	for i := range segments {
		ids[i] = segments[i].ID
	}
	return core.PartialResult{FailedIDs: ids}
}

// DeleteByDocument removes every entry belonging to a document.
func (x *PgVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return errors.New("empty document id")
	}
	_, err := x.db.ExecContext(ctx, `DELETE FROM document_segments WHERE document_id = $1`, documentID)
	return err
}

// ListByDocument returns a document's segments in reading order.
func (x *PgVectorIndex) ListByDocument(ctx context.Context, documentID string) ([]models.Segment, error) {
	const q = `
		SELECT id, document_id, position, text, embedding, created_at
		FROM document_segments
		WHERE document_id = $1
		ORDER BY position ASC
	`
	rows, err := x.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Segment
	for rows.Next() {
		var (
			s   models.Segment
			emb pgvector.Vector
		)
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Position, &s.Text, &emb, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Embedding = emb.Slice()
		out = append(out, s)
	}
	return out, rows.Err()
}
