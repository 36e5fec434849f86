package bookrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/amandev2001/mylib/model"
)

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	UpdateCatalog(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Search(ctx context.Context, q string) ([]model.Book, error)
	ByID(ctx context.Context, id int64) (*model.Book, error)

	// LockForUpdate takes the per-book row lock that serializes every
	// quantity mutation for the book.
	LockForUpdate(ctx context.Context, tx *sql.Tx, bookID int64) (quantity, totalCopies int, err error)
	AddCopies(ctx context.Context, tx *sql.Tx, bookID int64, n int) (newQuantity int, err error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const bookCols = `id, title, author, category, isbn, publisher, language, quantity, total_copies, available, created_at`

func scanBook(row interface{ Scan(...any) error }, b *model.Book) error {
	return row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.ISBN,
		&b.Publisher, &b.Language, &b.Quantity, &b.TotalCopies, &b.Available, &b.CreatedAt)
}

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
INSERT INTO library_books (title, author, category, isbn, publisher, language, quantity, total_copies, available)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7,$7 > 0)
RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q,
		b.Title, b.Author, b.Category, b.ISBN, b.Publisher, b.Language, b.Quantity,
	).Scan(&b.ID, &b.CreatedAt)
}

func (r *repo) UpdateCatalog(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error) {
	const q = `
UPDATE library_books
SET title     = COALESCE($2, title),
    author    = COALESCE($3, author),
    category  = COALESCE($4, category),
    isbn      = COALESCE($5, isbn),
    publisher = COALESCE($6, publisher),
    language  = COALESCE($7, language)
WHERE id = $1
RETURNING ` + bookCols
	b := &model.Book{}
	err := scanBook(r.db.QueryRowContext(ctx, q, id,
		req.Title, req.Author, req.Category, req.ISBN, req.Publisher, req.Language), b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) List(ctx context.Context) ([]model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM library_books ORDER BY id DESC`
	return r.queryBooks(ctx, q)
}

func (r *repo) Search(ctx context.Context, term string) ([]model.Book, error) {
	const q = `
SELECT ` + bookCols + `
FROM library_books
WHERE title ILIKE '%' || $1 || '%'
   OR author ILIKE '%' || $1 || '%'
   OR category ILIKE '%' || $1 || '%'
ORDER BY id DESC`
	return r.queryBooks(ctx, q, term)
}

func (r *repo) queryBooks(ctx context.Context, q string, args ...any) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		if err := scanBook(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM library_books WHERE id = $1`
	b := &model.Book{}
	if err := scanBook(r.db.QueryRowContext(ctx, q, id), b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) LockForUpdate(ctx context.Context, tx *sql.Tx, bookID int64) (int, int, error) {
	const q = `
		SELECT quantity, total_copies
		FROM library_books
		WHERE id = $1
		FOR UPDATE`
	var qty, total int
	err := tx.QueryRowContext(ctx, q, bookID).Scan(&qty, &total)
	return qty, total, err
}

func (r *repo) AddCopies(ctx context.Context, tx *sql.Tx, bookID int64, n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("n must be > 0")
	}
	const q = `
		UPDATE library_books
		SET quantity     = quantity + $2,
		    total_copies = total_copies + $2,
		    available    = TRUE
		WHERE id = $1
		RETURNING quantity`
	var qty int
	err := tx.QueryRowContext(ctx, q, bookID, n).Scan(&qty)
	return qty, err
}
