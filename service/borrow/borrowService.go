package borrowsvc

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/amandev2001/mylib/model"
	borrowrepo "github.com/amandev2001/mylib/repository/borrow"
	notifyrepo "github.com/amandev2001/mylib/repository/notify"
	userrepo "github.com/amandev2001/mylib/repository/user"
	finesvc "github.com/amandev2001/mylib/service/fine"
	"github.com/amandev2001/mylib/util/apperr"
)

// Repo is the record-store surface the lending flows run against.
type Repo = borrowrepo.Repo

// Promotion describes one reservation turned into a pending borrow request.
type Promotion = notifyrepo.ReservationReady

type Service interface {
	// RequestBorrow creates a PENDING record. No inventory changes yet;
	// the unit is consumed at approval.
	RequestBorrow(ctx context.Context, userID, bookID int64) (*model.BorrowRecord, error)

	// ApproveBorrowRequest consumes one unit and moves the record to
	// BORROWED, stamping issue and due dates.
	ApproveBorrowRequest(ctx context.Context, recordID int64) (*model.BorrowRecord, error)

	RequestReturn(ctx context.Context, recordID int64) error

	// ApproveReturnRequest closes the loan: fine, RETURNED, unit back to
	// stock, then the reservation queue drains while stock lasts.
	ApproveReturnRequest(ctx context.Context, recordID int64) error

	CancelBorrowRequest(ctx context.Context, recordID int64) error
	CancelReturnRequest(ctx context.Context, recordID int64) error

	UpdateBorrowRecord(ctx context.Context, recordID int64, patch model.BorrowPatch) (*model.BorrowRecord, error)

	// Drain promotes head-of-queue reservations into PENDING records while
	// unclaimed units remain. It must run inside the transaction that holds
	// the book row lock.
	Drain(ctx context.Context, tx *sql.Tx, bookID int64) ([]Promotion, error)

	// Notify pushes promotion notices after the surrounding transaction
	// committed. Best effort.
	Notify(promotions []Promotion)

	GetByID(ctx context.Context, recordID int64) (*model.BorrowRecord, error)
	History(ctx context.Context, userID int64) ([]model.BorrowRecord, error)
	ActiveByUser(ctx context.Context, userID int64) ([]model.BorrowRecord, error)
	BookHistory(ctx context.Context, bookID int64) ([]model.BorrowRecord, error)
	ListAll(ctx context.Context) ([]model.BorrowRecord, error)
}

type Config struct {
	BorrowDaysLimit int
	FinePerDay      float64
}

type service struct {
	db  *sql.DB
	r   Repo
	ur  userrepo.Repo
	nf  notifyrepo.Repo
	cfg Config
	now func() time.Time
}

func New(db *sql.DB, r Repo, ur userrepo.Repo, nf notifyrepo.Repo, cfg Config) Service {
	if cfg.BorrowDaysLimit <= 0 {
		cfg.BorrowDaysLimit = 14
	}
	if cfg.FinePerDay <= 0 {
		cfg.FinePerDay = finesvc.DefaultPerDay
	}
	return &service{db: db, r: r, ur: ur, nf: nf, cfg: cfg, now: time.Now}
}

func (s *service) RequestBorrow(ctx context.Context, userID, bookID int64) (rec *model.BorrowRecord, err error) {
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

	// Book lock keeps the availability check consistent with concurrent
	// approvals on the same book.
	qty, err := s.r.LockBook(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "book %d not found", bookID)
		}
		return nil, err
	}
	if qty <= 0 {
		return nil, apperr.New(apperr.OutOfStock, "book %d is out of stock, consider reserving it", bookID)
	}

	active, err := s.r.HasActiveForUserAndBook(ctx, tx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.New(apperr.Conflict, "user %d already has an open borrow for book %d", userID, bookID)
	}

	rec = &model.BorrowRecord{
		UserID: userID,
		BookID: bookID,
		Status: model.BorrowPending,
	}
	if err = s.r.Insert(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) ApproveBorrowRequest(ctx context.Context, recordID int64) (rec *model.BorrowRecord, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec, err = s.lockRecord(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.BorrowPending {
		return nil, apperr.New(apperr.InvalidState, "cannot approve borrow: record is %s", rec.Status)
	}

	if _, err = s.r.LockBook(ctx, tx, rec.BookID); err != nil {
		return nil, err
	}

	// Units freed by returns are earmarked for promoted reservations; a
	// direct request must not jump ahead of them.
	if !rec.FromReservation {
		reserved, cerr := s.r.CountPendingFromReservation(ctx, tx, rec.BookID)
		if cerr != nil {
			return nil, cerr
		}
		if reserved > 0 {
			err = apperr.New(apperr.Conflict,
				"book %d has %d reservation-originated requests awaiting approval", rec.BookID, reserved)
			return nil, err
		}
	}

	if _, err = s.r.ReserveUnit(ctx, tx, rec.BookID); err != nil {
		if errors.Is(err, borrowrepo.ErrNoStock) {
			return nil, apperr.New(apperr.OutOfStock, "book %d is out of stock", rec.BookID)
		}
		return nil, err
	}

	issue := s.today()
	due := issue.AddDate(0, 0, s.cfg.BorrowDaysLimit)
	if err = s.r.Approve(ctx, tx, rec.ID, issue, due); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	rec.Status = model.Borrowed
	rec.IssueDate = &issue
	rec.DueDate = &due
	return rec, nil
}

func (s *service) RequestReturn(ctx context.Context, recordID int64) error {
	return s.transition(ctx, recordID, model.Borrowed, model.BorrowReturnPending,
		"cannot request return: record is %s")
}

func (s *service) CancelReturnRequest(ctx context.Context, recordID int64) error {
	return s.transition(ctx, recordID, model.BorrowReturnPending, model.Borrowed,
		"cannot cancel return request: record is %s")
}

func (s *service) CancelBorrowRequest(ctx context.Context, recordID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.lockRecord(ctx, tx, recordID)
	if err != nil {
		return err
	}
	if rec.Status != model.BorrowPending {
		return apperr.New(apperr.InvalidState, "cannot cancel borrow request: record is %s", rec.Status)
	}
	// A cancelled request disappears entirely; only processed records keep
	// history.
	if err = s.r.Delete(ctx, tx, rec.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *service) ApproveReturnRequest(ctx context.Context, recordID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.lockRecord(ctx, tx, recordID)
	if err != nil {
		return err
	}
	if rec.Status != model.BorrowReturnPending {
		return apperr.New(apperr.InvalidState, "cannot approve return: record is %s", rec.Status)
	}
	if rec.IssueDate == nil || rec.DueDate == nil {
		return apperr.New(apperr.InvalidState, "record %d has no issue/due dates", rec.ID)
	}

	returned := s.today()
	fine, err := finesvc.Calculate(*rec.IssueDate, *rec.DueDate, returned, s.cfg.FinePerDay)
	if err != nil {
		return err
	}
	if err = s.r.Close(ctx, tx, rec.ID, returned, fine); err != nil {
		return err
	}

	if _, err = s.r.LockBook(ctx, tx, rec.BookID); err != nil {
		return err
	}
	if _, err = s.r.ReleaseUnit(ctx, tx, rec.BookID); err != nil {
		return err
	}

	// Promotion linkage is procedural: closing a promoted loan completes
	// the reservation it came from.
	if rec.FromReservation {
		if _, err = s.r.CompleteConfirmedReservation(ctx, tx, rec.UserID, rec.BookID); err != nil {
			return err
		}
	}

	promotions, err := s.drainLocked(ctx, tx, rec.BookID)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	s.Notify(promotions)
	return nil
}

// Drain promotes queued reservations. Caller owns tx; the book row lock is
// (re)taken here so restock and return approval share one serialization
// domain with approveBorrow.
func (s *service) Drain(ctx context.Context, tx *sql.Tx, bookID int64) ([]Promotion, error) {
	if _, err := s.r.LockBook(ctx, tx, bookID); err != nil {
		return nil, err
	}
	return s.drainLocked(ctx, tx, bookID)
}

func (s *service) drainLocked(ctx context.Context, tx *sql.Tx, bookID int64) ([]Promotion, error) {
	var promotions []Promotion
	for {
		// Quantity is re-read every iteration: it may have moved within
		// this transaction since loop entry.
		qty, err := s.r.LockBook(ctx, tx, bookID)
		if err != nil {
			return nil, err
		}
		// Units already claimed by earlier promotions are spoken for;
		// quantity itself only drops at approveBorrow.
		claimed, err := s.r.CountPendingFromReservation(ctx, tx, bookID)
		if err != nil {
			return nil, err
		}
		if qty-claimed <= 0 {
			return promotions, nil
		}

		next, err := s.r.NextPendingReservation(ctx, tx, bookID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return promotions, nil
		}

		created := next.CreatedAt
		rec := &model.BorrowRecord{
			UserID:               next.UserID,
			BookID:               bookID,
			Status:               model.BorrowPending,
			FromReservation:      true,
			ReservationCreatedAt: &created,
		}
		if err := s.r.Insert(ctx, tx, rec); err != nil {
			return nil, err
		}
		if err := s.r.ConfirmReservation(ctx, tx, next.ID); err != nil {
			return nil, err
		}

		promotions = append(promotions, Promotion{
			ReservationID:  next.ID,
			BorrowRecordID: rec.ID,
			UserID:         next.UserID,
			UserEmail:      next.UserEmail,
			BookID:         bookID,
			BookTitle:      next.BookTitle,
		})
	}
}

func (s *service) Notify(promotions []Promotion) {
	for _, p := range promotions {
		if err := s.nf.ReservationReady(p); err != nil {
			slog.Warn("reservation-ready notify failed",
				"reservation_id", p.ReservationID, "user_id", p.UserID, "err", err)
		}
	}
}

func (s *service) UpdateBorrowRecord(ctx context.Context, recordID int64, patch model.BorrowPatch) (rec *model.BorrowRecord, err error) {
	if patch.FineAmount != nil && *patch.FineAmount < 0 {
		return nil, apperr.New(apperr.Conflict, "fine amount must be non-negative")
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

	rec, err = s.lockRecord(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}

	issue, due, returned := rec.IssueDate, rec.DueDate, rec.ReturnDate
	if patch.IssueDate != nil {
		issue = patch.IssueDate
	}
	if patch.DueDate != nil {
		due = patch.DueDate
	}
	if patch.ReturnDate != nil {
		returned = patch.ReturnDate
	}
	fine := rec.FineAmount
	if patch.FineAmount != nil {
		fine = *patch.FineAmount
	}

	datesChanged := !sameDate(issue, rec.IssueDate) ||
		!sameDate(due, rec.DueDate) ||
		!sameDate(returned, rec.ReturnDate)

	// A date correction recomputes the fine, overwriting even an explicit
	// fine in the same patch.
	if datesChanged && due != nil && returned != nil {
		fine, err = finesvc.Calculate(dateOrZero(issue), *due, *returned, s.cfg.FinePerDay)
		if err != nil {
			return nil, err
		}
	}

	if !datesChanged && fine == rec.FineAmount {
		// Nothing changed: no store write.
		_ = tx.Rollback()
		return rec, nil
	}

	if err = s.r.ApplyPatch(ctx, tx, rec.ID, issue, due, returned, fine); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	rec.IssueDate, rec.DueDate, rec.ReturnDate, rec.FineAmount = issue, due, returned, fine
	return rec, nil
}

func (s *service) GetByID(ctx context.Context, recordID int64) (*model.BorrowRecord, error) {
	rec, err := s.r.ByID(ctx, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "borrow record %d not found", recordID)
	}
	return rec, err
}

func (s *service) History(ctx context.Context, userID int64) ([]model.BorrowRecord, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *service) ActiveByUser(ctx context.Context, userID int64) ([]model.BorrowRecord, error) {
	return s.r.ListActiveByUser(ctx, userID)
}

func (s *service) BookHistory(ctx context.Context, bookID int64) ([]model.BorrowRecord, error) {
	return s.r.ListByBook(ctx, bookID)
}

func (s *service) ListAll(ctx context.Context) ([]model.BorrowRecord, error) {
	return s.r.ListAll(ctx)
}

// transition moves a record from one status to another under its row lock.
func (s *service) transition(ctx context.Context, recordID int64, from, to model.BorrowStatus, msg string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.lockRecord(ctx, tx, recordID)
	if err != nil {
		return err
	}
	if rec.Status != from {
		return apperr.New(apperr.InvalidState, msg, rec.Status)
	}
	if err = s.r.SetStatus(ctx, tx, rec.ID, to); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *service) lockRecord(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
	rec, err := s.r.GetForUpdate(ctx, tx, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "borrow record %d not found", recordID)
	}
	return rec, err
}

func (s *service) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func dateOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
