package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-filestore/pkg/filestore"
)

// originalHashIndex is the partial unique index enforcing at most one
// original record per content hash (see migrations).
const originalHashIndex = "files_original_hash_idx"

// DBTX is an interface that allows us to use either a connection pool or a
// single connection
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements filestore.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry on %s", pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced file not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateFile(ctx context.Context, file *filestore.File) error {
	err := r.tryCreateFile(ctx, file)
	if isOriginalConflict(err) {
		// A concurrent identical upload inserted its original between our
		// lookup and insert. The retry now finds that original and stores
		// this record as a duplicate.
		err = r.tryCreateFile(ctx, file)
	}
	if err != nil {
		return r.handlePostgresError("create file", err)
	}
	return nil
}

// tryCreateFile runs the hash-lookup-then-insert step as one transaction.
// The partial unique index on (content_hash) WHERE is_original backstops
// the lookup against concurrent identical uploads.
func (r *Repository) tryCreateFile(ctx context.Context, file *filestore.File) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var originalID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM files WHERE content_hash = $1 AND is_original LIMIT 1`,
		file.ContentHash).Scan(&originalID)
	switch {
	case err == nil:
		file.IsOriginal = false
		// Empty, not nil: pgx encodes a nil []byte as SQL NULL, which the
		// NOT NULL constraint on content rejects.
		file.Content = []byte{}
		id := originalID
		file.OriginalFileID = &id
	case errors.Is(err, pgx.ErrNoRows):
		file.IsOriginal = true
		file.OriginalFileID = nil
	default:
		return err
	}

	query := `
		INSERT INTO files (
			id, name, content, size, content_type, content_hash,
			created_at, updated_at, is_original, original_file_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, query,
		file.ID, file.Name, file.Content, file.Size, file.ContentType,
		file.ContentHash, file.CreatedAt, file.UpdatedAt, file.IsOriginal,
		file.OriginalFileID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func isOriginalConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == originalHashIndex
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*filestore.File, error) {
	query := `
		SELECT id, name, content, size, content_type, content_hash,
		       created_at, updated_at, is_original, original_file_id
		FROM files WHERE id = $1`

	var file filestore.File
	err := r.db.QueryRow(ctx, query, id).Scan(
		&file.ID, &file.Name, &file.Content, &file.Size, &file.ContentType,
		&file.ContentHash, &file.CreatedAt, &file.UpdatedAt, &file.IsOriginal,
		&file.OriginalFileID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, filestore.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get file", err)
	}

	return &file, nil
}

func (r *Repository) GetOriginalFile(ctx context.Context, contentHash string) (*filestore.File, error) {
	query := `
		SELECT id, name, content, size, content_type, content_hash,
		       created_at, updated_at, is_original, original_file_id
		FROM files WHERE content_hash = $1 AND is_original LIMIT 1`

	var file filestore.File
	err := r.db.QueryRow(ctx, query, contentHash).Scan(
		&file.ID, &file.Name, &file.Content, &file.Size, &file.ContentType,
		&file.ContentHash, &file.CreatedAt, &file.UpdatedAt, &file.IsOriginal,
		&file.OriginalFileID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, filestore.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get original file", err)
	}

	return &file, nil
}

func (r *Repository) ListFiles(ctx context.Context, filters filestore.ListFilters) ([]*filestore.File, error) {
	// Content bytes are deliberately excluded from listings.
	query := `
		SELECT id, name, size, content_type, content_hash,
		       created_at, updated_at, is_original, original_file_id
		FROM files`

	var conditions []string
	var args []interface{}

	if filters.IDs != nil {
		args = append(args, filters.IDs)
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filters.NameContains != "" {
		args = append(args, "%"+filters.NameContains+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filters.MinSize != nil {
		args = append(args, *filters.MinSize)
		conditions = append(conditions, fmt.Sprintf("size >= $%d", len(args)))
	}
	if filters.MaxSize != nil {
		args = append(args, *filters.MaxSize)
		conditions = append(conditions, fmt.Sprintf("size <= $%d", len(args)))
	}
	if filters.ContentType != "" {
		args = append(args, filters.ContentType)
		conditions = append(conditions, fmt.Sprintf("content_type = $%d", len(args)))
	}
	if filters.CreatedFrom != nil {
		args = append(args, *filters.CreatedFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filters.CreatedTo != nil {
		args = append(args, *filters.CreatedTo)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list files", err)
	}
	defer rows.Close()

	files := []*filestore.File{}
	for rows.Next() {
		var file filestore.File
		if err := rows.Scan(
			&file.ID, &file.Name, &file.Size, &file.ContentType,
			&file.ContentHash, &file.CreatedAt, &file.UpdatedAt,
			&file.IsOriginal, &file.OriginalFileID); err != nil {
			return nil, r.handlePostgresError("list files", err)
		}
		files = append(files, &file)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list files", err)
	}

	return files, nil
}

func (r *Repository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	// The self-referencing foreign key is declared ON DELETE CASCADE, so
	// deleting an original removes its duplicates in the same statement.
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete file", err)
	}
	if tag.RowsAffected() == 0 {
		return filestore.ErrFileNotFound
	}
	return nil
}

func (r *Repository) StorageSavings(ctx context.Context) (int64, int64, error) {
	var bytesSaved, duplicateCount int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size), 0), COUNT(*) FROM files WHERE NOT is_original`).
		Scan(&bytesSaved, &duplicateCount)
	if err != nil {
		return 0, 0, r.handlePostgresError("storage savings", err)
	}
	return bytesSaved, duplicateCount, nil
}
