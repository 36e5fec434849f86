package reservationsvc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/amandev2001/mylib/model"
	reservationrepo "github.com/amandev2001/mylib/repository/reservation"
	userrepo "github.com/amandev2001/mylib/repository/user"
	"github.com/amandev2001/mylib/util/apperr"
)

type Repo = reservationrepo.Repo

// BookLocker takes the per-book row lock so the availability check cannot
// race an approval decrementing the quantity.
type BookLocker interface {
	LockForUpdate(ctx context.Context, tx *sql.Tx, bookID int64) (quantity, totalCopies int, err error)
}

type Service interface {
	// Create queues a reservation. Only permitted while the book is truly
	// out of stock, at most one active reservation per (user, book).
	Create(ctx context.Context, userID, bookID int64) (*model.Reservation, error)

	// Cancel is a user action on a still-queued reservation.
	Cancel(ctx context.Context, reservationID int64) error

	// Complete closes out a CONFIRMED reservation once its loan is done.
	Complete(ctx context.Context, reservationID int64) error

	ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
}

type service struct {
	db *sql.DB
	r  Repo
	br BookLocker
	ur userrepo.Repo
}

func New(db *sql.DB, r Repo, br BookLocker, ur userrepo.Repo) Service {
	return &service{db: db, r: r, br: br, ur: ur}
}

func (s *service) Create(ctx context.Context, userID, bookID int64) (res *model.Reservation, err error) {
	if _, err = s.ur.ByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "user %d not found", userID)
		}
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	qty, _, err := s.br.LockForUpdate(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "book %d not found", bookID)
		}
		return nil, err
	}
	if qty > 0 {
		return nil, apperr.New(apperr.Conflict, "book %d is available, no need to reserve", bookID)
	}

	dup, err := s.r.HasPendingForUserAndBook(ctx, tx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, apperr.New(apperr.Conflict, "user %d has already reserved book %d", userID, bookID)
	}

	res = &model.Reservation{UserID: userID, BookID: bookID}
	if err = s.r.Insert(ctx, tx, res); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) Cancel(ctx context.Context, reservationID int64) error {
	return s.setStatus(ctx, reservationID,
		model.ReservationPending, model.ReservationCanceled,
		"cannot cancel reservation: status is %s")
}

func (s *service) Complete(ctx context.Context, reservationID int64) error {
	return s.setStatus(ctx, reservationID,
		model.ReservationConfirmed, model.ReservationCompleted,
		"only confirmed reservations can be completed, status is %s")
}

func (s *service) setStatus(ctx context.Context, reservationID int64, from, to model.ReservationStatus, msg string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := s.r.GetForUpdate(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, "reservation %d not found", reservationID)
		}
		return err
	}
	if res.Status != from {
		return apperr.New(apperr.InvalidState, msg, res.Status)
	}
	if err = s.r.SetStatus(ctx, tx, res.ID, to); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *service) ListByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *service) ListAll(ctx context.Context) ([]model.Reservation, error) {
	return s.r.ListAll(ctx)
}
