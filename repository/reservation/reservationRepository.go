package reservationrepo

import (
	"context"
	"database/sql"

	"github.com/amandev2001/mylib/model"
)

type Repo interface {
	Insert(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Reservation, error)
	SetStatus(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) error
	HasPendingForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error)

	ByID(ctx context.Context, id int64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const resCols = `id, user_id, book_id, status, created_at`

func scanRes(row interface{ Scan(...any) error }, res *model.Reservation) error {
	return row.Scan(&res.ID, &res.UserID, &res.BookID, &res.Status, &res.CreatedAt)
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `
		INSERT INTO book_reservations (user_id, book_id, status)
		VALUES ($1,$2,'PENDING')
		RETURNING id, status, created_at`
	return tx.QueryRowContext(ctx, q, res.UserID, res.BookID).
		Scan(&res.ID, &res.Status, &res.CreatedAt)
}

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Reservation, error) {
	const q = `
		SELECT ` + resCols + `
		FROM book_reservations
		WHERE id = $1
		FOR UPDATE`
	res := &model.Reservation{}
	if err := scanRes(tx.QueryRowContext(ctx, q, id), res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *repo) SetStatus(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) error {
	const q = `
		UPDATE book_reservations
		SET status = $2
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, status)
	return err
}

func (r *repo) HasPendingForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM book_reservations
			WHERE user_id = $1
			  AND book_id = $2
			  AND status = 'PENDING'
		)`
	var exists bool
	err := tx.QueryRowContext(ctx, q, userID, bookID).Scan(&exists)
	return exists, err
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Reservation, error) {
	const q = `SELECT ` + resCols + ` FROM book_reservations WHERE id = $1`
	res := &model.Reservation{}
	if err := scanRes(r.db.QueryRowContext(ctx, q, id), res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	const q = `
		SELECT ` + resCols + `
		FROM book_reservations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.queryReservations(ctx, q, userID)
}

func (r *repo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	const q = `
		SELECT ` + resCols + `
		FROM book_reservations
		ORDER BY created_at DESC, id DESC`
	return r.queryReservations(ctx, q)
}

func (r *repo) queryReservations(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := scanRes(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
