package booksvc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/amandev2001/mylib/model"
	bookrepo "github.com/amandev2001/mylib/repository/book"
	notifyrepo "github.com/amandev2001/mylib/repository/notify"
	"github.com/amandev2001/mylib/util/apperr"
)

type Repo = bookrepo.Repo

// Drainer feeds freshly restocked units to the reservation queue. Drain runs
// inside the restock transaction; Notify runs after commit.
type Drainer interface {
	Drain(ctx context.Context, tx *sql.Tx, bookID int64) ([]notifyrepo.ReservationReady, error)
	Notify(promotions []notifyrepo.ReservationReady)
}

type Service interface {
	Create(ctx context.Context, req model.CreateBookReq) (*model.Book, error)
	Update(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Search(ctx context.Context, q string) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)

	// Restock adds units and drains the reservation queue for the book.
	Restock(ctx context.Context, bookID int64, count int) (newQuantity int, err error)
}

type service struct {
	db *sql.DB
	r  Repo
	dr Drainer
}

func New(db *sql.DB, r Repo, dr Drainer) Service {
	return &service{db: db, r: r, dr: dr}
}

func (s *service) Create(ctx context.Context, req model.CreateBookReq) (*model.Book, error) {
	if req.Title == "" {
		return nil, apperr.New(apperr.Conflict, "title is required")
	}
	if req.Copies < 0 {
		return nil, apperr.New(apperr.Conflict, "copies must be non-negative")
	}
	b := &model.Book{
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		ISBN:        req.ISBN,
		Publisher:   req.Publisher,
		Language:    req.Language,
		Quantity:    req.Copies,
		TotalCopies: req.Copies,
		Available:   req.Copies > 0,
	}
	if err := s.r.Create(ctx, b); err != nil {
		if derr := mapDuplicateISBN(err); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	return b, nil
}

func (s *service) Update(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error) {
	b, err := s.r.UpdateCatalog(ctx, id, req)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "book %d not found", id)
		}
		if derr := mapDuplicateISBN(err); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	return b, nil
}

func (s *service) List(ctx context.Context) ([]model.Book, error) { return s.r.List(ctx) }

func (s *service) Search(ctx context.Context, q string) ([]model.Book, error) {
	return s.r.Search(ctx, q)
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.ByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "book %d not found", id)
	}
	return b, err
}

func (s *service) Restock(ctx context.Context, bookID int64, count int) (newQty int, err error) {
	if count <= 0 {
		return 0, apperr.New(apperr.Conflict, "count must be > 0")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, _, err = s.r.LockForUpdate(ctx, tx, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.New(apperr.NotFound, "book %d not found", bookID)
		}
		return 0, err
	}
	if newQty, err = s.r.AddCopies(ctx, tx, bookID, count); err != nil {
		return 0, err
	}

	promotions, err := s.dr.Drain(ctx, tx, bookID)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}

	s.dr.Notify(promotions)
	return newQty, nil
}

func mapDuplicateISBN(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperr.New(apperr.Conflict, "a book with this ISBN already exists")
	}
	return nil
}
