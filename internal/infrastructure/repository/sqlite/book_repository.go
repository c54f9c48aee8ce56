package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

const recordColumns = `original_filename, truncated_filename, filehash, sample_text, metadata_title, metadata_author`

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

// EnsureSchema creates the books table. Only store initialization calls it;
// ingestion runs expect the table to exist.
func (r *BookRepository) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
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
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

// Verify checks that the books table is present.
func (r *BookRepository) Verify(ctx context.Context) error {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE 0`).Scan(&n)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "verify books table", err)
	}
	return nil
}

func (r *BookRepository) FindExact(ctx context.Context, fp domain.Fingerprint) (*domain.BookRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM books
WHERE original_filename = ? OR truncated_filename = ? OR truncated_filename = ? OR filehash = ?
LIMIT 1
`, fp.OriginalFilename, fp.OriginalFilename, fp.TruncatedFilename, fp.FileHash)
	return scanOne(row, "find exact")
}

func (r *BookRepository) FindByMetadata(ctx context.Context, title, author string) (*domain.BookRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM books
WHERE metadata_title = ? AND metadata_author = ?
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
	err := runTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO books (`+recordColumns+`)
VALUES (?, ?, ?, ?, ?, ?)
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
		return nil
	})
	if err != nil && !domain.IsKind(err, domain.ErrRecordInsert) && !domain.IsKind(err, domain.ErrCopyFailure) {
		return domain.WrapError(domain.ErrRecordInsert, "append book", err)
	}
	return err
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
			return nil, err
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
