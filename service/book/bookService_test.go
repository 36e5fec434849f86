package booksvc

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/amandev2001/mylib/model"
	notifyrepo "github.com/amandev2001/mylib/repository/notify"
	"github.com/amandev2001/mylib/util/apperr"
)

type repoMock struct {
	createFn    func(b *model.Book) error
	updateFn    func(id int64, req model.UpdateBookReq) (*model.Book, error)
	byIDFn      func(id int64) (*model.Book, error)
	lockFn      func(bookID int64) (int, int, error)
	addCopiesFn func(bookID int64, n int) (int, error)
}

func (m *repoMock) Create(_ context.Context, b *model.Book) error { return m.createFn(b) }
func (m *repoMock) UpdateCatalog(_ context.Context, id int64, req model.UpdateBookReq) (*model.Book, error) {
	return m.updateFn(id, req)
}
func (m *repoMock) List(context.Context) ([]model.Book, error)            { return nil, nil }
func (m *repoMock) Search(context.Context, string) ([]model.Book, error)  { return nil, nil }
func (m *repoMock) ByID(_ context.Context, id int64) (*model.Book, error) { return m.byIDFn(id) }
func (m *repoMock) LockForUpdate(_ context.Context, _ *sql.Tx, bookID int64) (int, int, error) {
	return m.lockFn(bookID)
}
func (m *repoMock) AddCopies(_ context.Context, _ *sql.Tx, bookID int64, n int) (int, error) {
	return m.addCopiesFn(bookID, n)
}

type drainerMock struct {
	drainFn  func(bookID int64) ([]notifyrepo.ReservationReady, error)
	notified [][]notifyrepo.ReservationReady
}

func (m *drainerMock) Drain(_ context.Context, _ *sql.Tx, bookID int64) ([]notifyrepo.ReservationReady, error) {
	return m.drainFn(bookID)
}
func (m *drainerMock) Notify(p []notifyrepo.ReservationReady) {
	m.notified = append(m.notified, p)
}

func newService(t *testing.T, r *repoMock, dr *drainerMock) (Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, r, dr), mock
}

func TestCreate_SeedsQuantityAndTotal(t *testing.T) {
	var got *model.Book
	r := &repoMock{createFn: func(b *model.Book) error {
		b.ID = 7
		got = b
		return nil
	}}
	svc, _ := newService(t, r, &drainerMock{})

	b, err := svc.Create(context.Background(), model.CreateBookReq{Title: "Domain-Driven Design", Copies: 3})
	require.NoError(t, err)
	require.Equal(t, int64(7), b.ID)
	require.Equal(t, 3, got.Quantity)
	require.Equal(t, 3, got.TotalCopies)
	require.True(t, got.Available)
}

func TestCreate_TitleRequired(t *testing.T) {
	svc, _ := newService(t, &repoMock{}, &drainerMock{})
	_, err := svc.Create(context.Background(), model.CreateBookReq{Copies: 1})
	require.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}

func TestCreate_DuplicateISBN(t *testing.T) {
	r := &repoMock{createFn: func(*model.Book) error {
		return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	}}
	svc, _ := newService(t, r, &drainerMock{})

	_, err := svc.Create(context.Background(), model.CreateBookReq{Title: "x", Copies: 1})
	require.Equal(t, apperr.Conflict, apperr.CodeOf(err))
	require.Contains(t, err.Error(), "ISBN")
}

func TestUpdate_NotFound(t *testing.T) {
	r := &repoMock{updateFn: func(int64, model.UpdateBookReq) (*model.Book, error) {
		return nil, sql.ErrNoRows
	}}
	svc, _ := newService(t, r, &drainerMock{})

	_, err := svc.Update(context.Background(), 404, model.UpdateBookReq{})
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

func TestRestock_AddsCopiesAndDrains(t *testing.T) {
	promos := []notifyrepo.ReservationReady{{ReservationID: 5, UserID: 2, BookID: 7}}
	r := &repoMock{
		lockFn:      func(int64) (int, int, error) { return 0, 2, nil },
		addCopiesFn: func(bookID int64, n int) (int, error) { return n, nil },
	}
	dr := &drainerMock{drainFn: func(bookID int64) ([]notifyrepo.ReservationReady, error) {
		return promos, nil
	}}
	svc, mock := newService(t, r, dr)
	mock.ExpectBegin()
	mock.ExpectCommit()

	qty, err := svc.Restock(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Equal(t, 2, qty)
	require.Len(t, dr.notified, 1, "notify runs once, after commit")
	require.Equal(t, promos, dr.notified[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRestock_CountMustBePositive(t *testing.T) {
	svc, _ := newService(t, &repoMock{}, &drainerMock{})
	_, err := svc.Restock(context.Background(), 7, 0)
	require.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}

func TestRestock_UnknownBook(t *testing.T) {
	r := &repoMock{lockFn: func(int64) (int, int, error) { return 0, 0, sql.ErrNoRows }}
	svc, mock := newService(t, r, &drainerMock{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Restock(context.Background(), 404, 1)
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}
