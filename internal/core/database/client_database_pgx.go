package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oselabs/paperbase/internal/config"
	"github.com/oselabs/paperbase/internal/core"
	"github.com/oselabs/paperbase/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DB exposes the underlying handle so adapters sharing the database (the
// pgvector index) can reuse the pool.
func (c *DatabaseClient) DB() *sql.DB {
	return c.db
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.FirstName, user.Email, user.PasswordHash)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, file_name, storage_path, mime_type, file_size, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.FileName, doc.StoragePath, doc.MimeType, doc.FileSize, doc.Status)
	return err
}

const documentColumns = `
	id, user_id, file_name, storage_path, mime_type, file_size,
	status, COALESCE(error_message, ''), processed_at, created_at, updated_at
`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID, &d.UserID, &d.FileName, &d.StoragePath, &d.MimeType, &d.FileSize,
		&d.Status, &d.ErrorMessage, &d.ProcessedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListDocumentsByIDs(ctx context.Context, userID string, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 AND id = ANY($2)`
	rows, err := c.db.QueryContext(ctx, q, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// CompareAndSetStatus is the claim primitive: a single conditional UPDATE
// whose rows-affected count tells the caller whether it won. The metadata
// table is an ordinary transactional table, so this stands in for a lock
// service.
func (c *DatabaseClient) CompareAndSetStatus(ctx context.Context, id string, expected []string, next string) (bool, error) {
	if len(expected) == 0 {
		return false, errors.New("no expected statuses")
	}
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`
	res, err := c.db.ExecContext(ctx, q, id, next, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkProcessed finalizes a successful run: processed status, processed_at
// stamp, and any stale error message cleared.
func (c *DatabaseClient) MarkProcessed(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET status = $2, processed_at = now(), error_message = NULL, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, models.StatusProcessed)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) MarkFailed(ctx context.Context, id string, errMsg string) error {
	const q = `
		UPDATE documents
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, models.StatusFailed, models.TruncateError(strings.TrimSpace(errMsg)))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string, userID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}
