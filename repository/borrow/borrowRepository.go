package borrowrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/amandev2001/mylib/model"
)

var (
	// ErrNoStock: guarded decrement found quantity = 0.
	ErrNoStock = errors.New("no units available")
	// ErrOverCapacity: release would push quantity past total_copies,
	// i.e. a release without a matching reserve. Bug condition, not clamped.
	ErrOverCapacity = errors.New("release exceeds book capacity")
)

// QueuedReservation is the head of a book's reservation queue plus the
// fields the promotion notification needs.
type QueuedReservation struct {
	model.Reservation
	UserEmail string
	BookTitle string
}

type Repo interface {
	// Records
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.BorrowRecord, error)
	Insert(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error
	Approve(ctx context.Context, tx *sql.Tx, id int64, issue, due time.Time) error
	SetStatus(ctx context.Context, tx *sql.Tx, id int64, status model.BorrowStatus) error
	Close(ctx context.Context, tx *sql.Tx, id int64, returned time.Time, fine float64) error
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
	ApplyPatch(ctx context.Context, tx *sql.Tx, id int64, issue, due, returned *time.Time, fine float64) error
	HasActiveForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error)
	CountPendingFromReservation(ctx context.Context, tx *sql.Tx, bookID int64) (int, error)

	// Inventory. Both run under the book row lock taken by LockBook.
	LockBook(ctx context.Context, tx *sql.Tx, bookID int64) (quantity int, err error)
	ReserveUnit(ctx context.Context, tx *sql.Tx, bookID int64) (newQuantity int, err error)
	ReleaseUnit(ctx context.Context, tx *sql.Tx, bookID int64) (newQuantity int, err error)

	// Reservation queue, used by the drain loop.
	NextPendingReservation(ctx context.Context, tx *sql.Tx, bookID int64) (*QueuedReservation, error)
	ConfirmReservation(ctx context.Context, tx *sql.Tx, reservationID int64) error
	CompleteConfirmedReservation(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error)

	// Listings
	ByID(ctx context.Context, id int64) (*model.BorrowRecord, error)
	ListByUser(ctx context.Context, userID int64) ([]model.BorrowRecord, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]model.BorrowRecord, error)
	ListByBook(ctx context.Context, bookID int64) ([]model.BorrowRecord, error)
	ListAll(ctx context.Context) ([]model.BorrowRecord, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const recordCols = `id, user_id, book_id, status, issue_date, due_date, return_date,
	fine_amount, from_reservation, reservation_created_at, created_at`

func scanRecord(row interface{ Scan(...any) error }, rec *model.BorrowRecord) error {
	return row.Scan(&rec.ID, &rec.UserID, &rec.BookID, &rec.Status,
		&rec.IssueDate, &rec.DueDate, &rec.ReturnDate,
		&rec.FineAmount, &rec.FromReservation, &rec.ReservationCreatedAt, &rec.CreatedAt)
}

// Records

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		WHERE id = $1
		FOR UPDATE`
	rec := &model.BorrowRecord{}
	if err := scanRecord(tx.QueryRowContext(ctx, q, id), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error {
	const q = `
		INSERT INTO borrow_records (user_id, book_id, status, from_reservation, reservation_created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`
	return tx.QueryRowContext(ctx, q,
		rec.UserID, rec.BookID, rec.Status, rec.FromReservation, rec.ReservationCreatedAt,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *repo) Approve(ctx context.Context, tx *sql.Tx, id int64, issue, due time.Time) error {
	const q = `
		UPDATE borrow_records
		SET status = 'BORROWED',
		    issue_date = $2,
		    due_date = $3
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, issue, due)
	return err
}

func (r *repo) SetStatus(ctx context.Context, tx *sql.Tx, id int64, status model.BorrowStatus) error {
	const q = `
		UPDATE borrow_records
		SET status = $2
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, status)
	return err
}

func (r *repo) Close(ctx context.Context, tx *sql.Tx, id int64, returned time.Time, fine float64) error {
	const q = `
		UPDATE borrow_records
		SET status = 'RETURNED',
		    return_date = $2,
		    fine_amount = $3
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, returned, fine)
	return err
}

func (r *repo) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	const q = `DELETE FROM borrow_records WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id)
	return err
}

func (r *repo) ApplyPatch(ctx context.Context, tx *sql.Tx, id int64, issue, due, returned *time.Time, fine float64) error {
	const q = `
		UPDATE borrow_records
		SET issue_date = $2,
		    due_date = $3,
		    return_date = $4,
		    fine_amount = $5
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, issue, due, returned, fine)
	return err
}

func (r *repo) HasActiveForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM borrow_records
			WHERE user_id = $1
			  AND book_id = $2
			  AND status IN ('PENDING','BORROWED','RETURN_PENDING')
		)`
	var exists bool
	err := tx.QueryRowContext(ctx, q, userID, bookID).Scan(&exists)
	return exists, err
}

func (r *repo) CountPendingFromReservation(ctx context.Context, tx *sql.Tx, bookID int64) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM borrow_records
		WHERE book_id = $1
		  AND status = 'PENDING'
		  AND from_reservation = TRUE`
	var n int
	err := tx.QueryRowContext(ctx, q, bookID).Scan(&n)
	return n, err
}

// Inventory

func (r *repo) LockBook(ctx context.Context, tx *sql.Tx, bookID int64) (int, error) {
	const q = `
		SELECT quantity
		FROM library_books
		WHERE id = $1
		FOR UPDATE`
	var qty int
	err := tx.QueryRowContext(ctx, q, bookID).Scan(&qty)
	return qty, err
}

func (r *repo) ReserveUnit(ctx context.Context, tx *sql.Tx, bookID int64) (int, error) {
	// Guard: never decrement below zero.
	const q = `
		UPDATE library_books
		SET quantity = quantity - 1,
		    available = quantity - 1 > 0
		WHERE id = $1
		  AND quantity > 0
		RETURNING quantity`
	var qty int
	err := tx.QueryRowContext(ctx, q, bookID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoStock
	}
	return qty, err
}

func (r *repo) ReleaseUnit(ctx context.Context, tx *sql.Tx, bookID int64) (int, error) {
	// Guard: a release must match a prior reserve.
	const q = `
		UPDATE library_books
		SET quantity = quantity + 1,
		    available = TRUE
		WHERE id = $1
		  AND quantity < total_copies
		RETURNING quantity`
	var qty int
	err := tx.QueryRowContext(ctx, q, bookID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrOverCapacity
	}
	return qty, err
}

// Reservation queue

func (r *repo) NextPendingReservation(ctx context.Context, tx *sql.Tx, bookID int64) (*QueuedReservation, error) {
	// FIFO by created_at; id breaks timestamp ties deterministically.
	const q = `
		SELECT res.id, res.user_id, res.book_id, res.status, res.created_at,
		       u.email, b.title
		FROM book_reservations res
		JOIN users u ON u.id = res.user_id
		JOIN library_books b ON b.id = res.book_id
		WHERE res.book_id = $1
		  AND res.status = 'PENDING'
		ORDER BY res.created_at ASC, res.id ASC
		LIMIT 1`
	qr := &QueuedReservation{}
	err := tx.QueryRowContext(ctx, q, bookID).Scan(
		&qr.ID, &qr.UserID, &qr.BookID, &qr.Status, &qr.CreatedAt,
		&qr.UserEmail, &qr.BookTitle,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return qr, nil
}

func (r *repo) ConfirmReservation(ctx context.Context, tx *sql.Tx, reservationID int64) error {
	const q = `
		UPDATE book_reservations
		SET status = 'CONFIRMED'
		WHERE id = $1
		  AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, q, reservationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("reservation not pending")
	}
	return nil
}

func (r *repo) CompleteConfirmedReservation(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error) {
	// Oldest CONFIRMED reservation for the pair; the loan being closed is
	// the one its promotion produced.
	const q = `
		UPDATE book_reservations
		SET status = 'COMPLETED'
		WHERE id = (
			SELECT id FROM book_reservations
			WHERE user_id = $1
			  AND book_id = $2
			  AND status = 'CONFIRMED'
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		)`
	res, err := tx.ExecContext(ctx, q, userID, bookID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Listings

func (r *repo) ByID(ctx context.Context, id int64) (*model.BorrowRecord, error) {
	const q = `SELECT ` + recordCols + ` FROM borrow_records WHERE id = $1`
	rec := &model.BorrowRecord{}
	if err := scanRecord(r.db.QueryRowContext(ctx, q, id), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.queryRecords(ctx, q, userID)
}

func (r *repo) ListActiveByUser(ctx context.Context, userID int64) ([]model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		WHERE user_id = $1
		  AND status IN ('PENDING','BORROWED','RETURN_PENDING')
		ORDER BY created_at DESC, id DESC`
	return r.queryRecords(ctx, q, userID)
}

func (r *repo) ListByBook(ctx context.Context, bookID int64) ([]model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		WHERE book_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.queryRecords(ctx, q, bookID)
}

func (r *repo) ListAll(ctx context.Context) ([]model.BorrowRecord, error) {
	const q = `
		SELECT ` + recordCols + `
		FROM borrow_records
		ORDER BY created_at DESC, id DESC`
	return r.queryRecords(ctx, q)
}

func (r *repo) queryRecords(ctx context.Context, q string, args ...any) ([]model.BorrowRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BorrowRecord
	for rows.Next() {
		var rec model.BorrowRecord
		if err := scanRecord(rows, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
