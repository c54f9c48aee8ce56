package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

const recordColumns = `original_filename, truncated_filename, filehash, sample_text, metadata_title, metadata_author`

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "db ping", err)
	}
	return db, nil
}

func (r *BookRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent init-store invocations.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS books (
	id BIGSERIAL PRIMARY KEY,
	original_filename TEXT NOT NULL,
	truncated_filename TEXT NOT NULL,
	filehash TEXT NOT NULL,
	sample_text TEXT,
	metadata_title TEXT,
	metadata_author TEXT
);

CREATE INDEX IF NOT EXISTS idx_books_original_filename ON books(original_filename);
CREATE INDEX IF NOT EXISTS idx_books_truncated_filename ON books(truncated_filename);
CREATE INDEX IF NOT EXISTS idx_books_filehash ON books(filehash);
CREATE INDEX IF NOT EXISTS idx_books_metadata ON books(metadata_title, metadata_author);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Verify checks that the books table is present.
func (r *BookRepository) Verify(ctx context.Context) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE false`).Scan(&n); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "verify books table", err)
	}
	return nil
}

func (r *BookRepository) FindExact(ctx context.Context, fp domain.Fingerprint) (*domain.BookRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM books
WHERE original_filename = $1 OR truncated_filename = $1 OR truncated_filename = $2 OR filehash = $3
LIMIT 1
`, fp.OriginalFilename, fp.TruncatedFilename, fp.FileHash)
	return scanOne(row, "find exact")
}

func (r *BookRepository) FindByMetadata(ctx context.Context, title, author string) (*domain.BookRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM books
WHERE metadata_title = $1 AND metadata_author = $2
LIMIT 1
`, title, author)
	return scanOne(row, "find by metadata")
}

func (r *BookRepository) ListWithSamples(ctx context.Context) ([]domain.BookRecord, error) {
	return r.list(ctx, `
SELECT `+recordColumns+`
FROM books
WHERE sample_text IS NOT NULL AND sample_text <> ''
ORDER BY id
`)
}

func (r *BookRepository) ListAll(ctx context.Context) ([]domain.BookRecord, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM books ORDER BY id`)
}

func (r *BookRepository) Append(ctx context.Context, rec domain.BookRecord, finalize func(context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrRecordInsert, "begin insert tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO books (`+recordColumns+`)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		rec.OriginalFilename, rec.TruncatedFilename, rec.FileHash,
		rec.SampleText, rec.MetadataTitle, rec.MetadataAuthor,
	)
	if err != nil {
		return domain.WrapError(domain.ErrRecordInsert, "insert book", err)
	}

	if finalize != nil {
		if err := finalize(ctx); err != nil {
			return domain.WrapError(domain.ErrCopyFailure, "finalize book", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrRecordInsert, "commit insert tx", err)
	}
	return nil
}

func (r *BookRepository) list(ctx context.Context, query string) ([]domain.BookRecord, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var out []domain.BookRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row, operation string) (*domain.BookRecord, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, operation, err)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return &rec, nil
}

func scanRecord(s scanner) (domain.BookRecord, error) {
	var rec domain.BookRecord
	var sample, title, author sql.NullString
	if err := s.Scan(&rec.OriginalFilename, &rec.TruncatedFilename, &rec.FileHash, &sample, &title, &author); err != nil {
		return domain.BookRecord{}, err
	}
	rec.SampleText = sample.String
	rec.MetadataTitle = title.String
	rec.MetadataAuthor = author.String
	return rec, nil
}
