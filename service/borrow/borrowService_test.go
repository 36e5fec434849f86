package borrowsvc

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/amandev2001/mylib/model"
	borrowrepo "github.com/amandev2001/mylib/repository/borrow"
	notifyrepo "github.com/amandev2001/mylib/repository/notify"
	"github.com/amandev2001/mylib/util/apperr"
)

// --- mocks ---

type repoMock struct {
	getForUpdateFn   func(id int64) (*model.BorrowRecord, error)
	insertFn         func(rec *model.BorrowRecord) error
	approveFn        func(id int64, issue, due time.Time) error
	setStatusFn      func(id int64, status model.BorrowStatus) error
	closeFn          func(id int64, returned time.Time, fine float64) error
	deleteFn         func(id int64) error
	applyPatchFn     func(id int64, issue, due, returned *time.Time, fine float64) error
	hasActiveFn      func(userID, bookID int64) (bool, error)
	countPromotedFn  func(bookID int64) (int, error)
	lockBookFn       func(bookID int64) (int, error)
	reserveUnitFn    func(bookID int64) (int, error)
	releaseUnitFn    func(bookID int64) (int, error)
	nextReservedFn   func(bookID int64) (*borrowrepo.QueuedReservation, error)
	confirmFn        func(reservationID int64) error
	completeResFn    func(userID, bookID int64) (bool, error)
	byIDFn           func(id int64) (*model.BorrowRecord, error)
	listByUserFn     func(userID int64) ([]model.BorrowRecord, error)
	listActiveFn     func(userID int64) ([]model.BorrowRecord, error)
	listByBookFn     func(bookID int64) ([]model.BorrowRecord, error)
	listAllFn        func() ([]model.BorrowRecord, error)
}

var _ borrowrepo.Repo = (*repoMock)(nil)

func (m *repoMock) GetForUpdate(_ context.Context, _ *sql.Tx, id int64) (*model.BorrowRecord, error) {
	return m.getForUpdateFn(id)
}
func (m *repoMock) Insert(_ context.Context, _ *sql.Tx, rec *model.BorrowRecord) error {
	return m.insertFn(rec)
}
func (m *repoMock) Approve(_ context.Context, _ *sql.Tx, id int64, issue, due time.Time) error {
	return m.approveFn(id, issue, due)
}
func (m *repoMock) SetStatus(_ context.Context, _ *sql.Tx, id int64, status model.BorrowStatus) error {
	return m.setStatusFn(id, status)
}
func (m *repoMock) Close(_ context.Context, _ *sql.Tx, id int64, returned time.Time, fine float64) error {
	return m.closeFn(id, returned, fine)
}
func (m *repoMock) Delete(_ context.Context, _ *sql.Tx, id int64) error { return m.deleteFn(id) }
func (m *repoMock) ApplyPatch(_ context.Context, _ *sql.Tx, id int64, issue, due, returned *time.Time, fine float64) error {
	return m.applyPatchFn(id, issue, due, returned, fine)
}
func (m *repoMock) HasActiveForUserAndBook(_ context.Context, _ *sql.Tx, userID, bookID int64) (bool, error) {
	return m.hasActiveFn(userID, bookID)
}
func (m *repoMock) CountPendingFromReservation(_ context.Context, _ *sql.Tx, bookID int64) (int, error) {
	return m.countPromotedFn(bookID)
}
func (m *repoMock) LockBook(_ context.Context, _ *sql.Tx, bookID int64) (int, error) {
	return m.lockBookFn(bookID)
}
func (m *repoMock) ReserveUnit(_ context.Context, _ *sql.Tx, bookID int64) (int, error) {
	return m.reserveUnitFn(bookID)
}
func (m *repoMock) ReleaseUnit(_ context.Context, _ *sql.Tx, bookID int64) (int, error) {
	return m.releaseUnitFn(bookID)
}
func (m *repoMock) NextPendingReservation(_ context.Context, _ *sql.Tx, bookID int64) (*borrowrepo.QueuedReservation, error) {
	return m.nextReservedFn(bookID)
}
func (m *repoMock) ConfirmReservation(_ context.Context, _ *sql.Tx, reservationID int64) error {
	return m.confirmFn(reservationID)
}
func (m *repoMock) CompleteConfirmedReservation(_ context.Context, _ *sql.Tx, userID, bookID int64) (bool, error) {
	return m.completeResFn(userID, bookID)
}
func (m *repoMock) ByID(_ context.Context, id int64) (*model.BorrowRecord, error) {
	return m.byIDFn(id)
}
func (m *repoMock) ListByUser(_ context.Context, userID int64) ([]model.BorrowRecord, error) {
	return m.listByUserFn(userID)
}
func (m *repoMock) ListActiveByUser(_ context.Context, userID int64) ([]model.BorrowRecord, error) {
	return m.listActiveFn(userID)
}
func (m *repoMock) ListByBook(_ context.Context, bookID int64) ([]model.BorrowRecord, error) {
	return m.listByBookFn(bookID)
}
func (m *repoMock) ListAll(_ context.Context) ([]model.BorrowRecord, error) { return m.listAllFn() }

type userMock struct {
	byIDFn func(id int64) (*model.User, error)
}

func (m *userMock) Create(context.Context, *model.User) error { return nil }
func (m *userMock) ByEmail(context.Context, string) (*model.User, error) {
	return nil, sql.ErrNoRows
}
func (m *userMock) ByID(_ context.Context, id int64) (*model.User, error) {
	if m.byIDFn == nil {
		return &model.User{ID: id, Email: "u@example.com"}, nil
	}
	return m.byIDFn(id)
}

type notifyMock struct{ sent []notifyrepo.ReservationReady }

func (m *notifyMock) ReservationReady(n notifyrepo.ReservationReady) error {
	m.sent = append(m.sent, n)
	return nil
}

// --- helpers ---

func newService(t *testing.T, r *repoMock, nf notifyrepo.Repo) (*service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	if nf == nil {
		nf = &notifyMock{}
	}
	svc := New(db, r, &userMock{}, nf, Config{BorrowDaysLimit: 14, FinePerDay: 10.0}).(*service)
	return svc, mock
}

func fixedNow(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 9, 30, 0, 0, time.UTC) }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --- requestBorrow ---

func TestRequestBorrow_Success(t *testing.T) {
	r := &repoMock{
		lockBookFn: func(bookID int64) (int, error) { return 1, nil },
		hasActiveFn: func(userID, bookID int64) (bool, error) { return false, nil },
		insertFn: func(rec *model.BorrowRecord) error {
			rec.ID = 11
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	rec, err := svc.RequestBorrow(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(11), rec.ID)
	require.Equal(t, model.BorrowPending, rec.Status)
	require.False(t, rec.FromReservation)
	require.Nil(t, rec.IssueDate)
	require.Nil(t, rec.DueDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestBorrow_OutOfStock(t *testing.T) {
	r := &repoMock{
		lockBookFn: func(bookID int64) (int, error) { return 0, nil },
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.RequestBorrow(context.Background(), 1, 7)
	require.Equal(t, apperr.OutOfStock, apperr.CodeOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestBorrow_DuplicateOpenBorrow(t *testing.T) {
	r := &repoMock{
		lockBookFn:  func(bookID int64) (int, error) { return 3, nil },
		hasActiveFn: func(userID, bookID int64) (bool, error) { return true, nil },
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.RequestBorrow(context.Background(), 1, 7)
	require.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}

func TestRequestBorrow_BookNotFound(t *testing.T) {
	r := &repoMock{
		lockBookFn: func(bookID int64) (int, error) { return 0, sql.ErrNoRows },
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.RequestBorrow(context.Background(), 1, 404)
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

func TestRequestBorrow_UserNotFound(t *testing.T) {
	svc, _ := newService(t, &repoMock{}, nil)
	svc.ur = &userMock{byIDFn: func(id int64) (*model.User, error) { return nil, sql.ErrNoRows }}

	_, err := svc.RequestBorrow(context.Background(), 404, 7)
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

// --- approveBorrowRequest ---

func TestApproveBorrow_Success(t *testing.T) {
	var gotIssue, gotDue time.Time
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, UserID: 1, BookID: 7, Status: model.BorrowPending}, nil
		},
		lockBookFn:      func(bookID int64) (int, error) { return 1, nil },
		countPromotedFn: func(bookID int64) (int, error) { return 0, nil },
		reserveUnitFn:   func(bookID int64) (int, error) { return 0, nil },
		approveFn: func(id int64, issue, due time.Time) error {
			gotIssue, gotDue = issue, due
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	svc.now = fixedNow(2025, time.March, 1)
	mock.ExpectBegin()
	mock.ExpectCommit()

	rec, err := svc.ApproveBorrowRequest(context.Background(), 11)
	require.NoError(t, err)
	require.Equal(t, model.Borrowed, rec.Status)
	require.Equal(t, day(2025, time.March, 1), gotIssue)
	require.Equal(t, day(2025, time.March, 15), gotDue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveBorrow_AlreadyProcessed(t *testing.T) {
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.BorrowReturned}, nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.ApproveBorrowRequest(context.Background(), 11)
	require.Equal(t, apperr.InvalidState, apperr.CodeOf(err))
	require.Contains(t, err.Error(), "RETURNED")
}

func TestApproveBorrow_DirectBlockedByPromotedRequest(t *testing.T) {
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, UserID: 1, BookID: 7, Status: model.BorrowPending}, nil
		},
		lockBookFn:      func(bookID int64) (int, error) { return 1, nil },
		countPromotedFn: func(bookID int64) (int, error) { return 1, nil },
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.ApproveBorrowRequest(context.Background(), 11)
	require.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}

func TestApproveBorrow_PromotedSkipsPriorityGuard(t *testing.T) {
	countCalled := false
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, UserID: 2, BookID: 7, Status: model.BorrowPending, FromReservation: true}, nil
		},
		lockBookFn: func(bookID int64) (int, error) { return 1, nil },
		countPromotedFn: func(bookID int64) (int, error) {
			countCalled = true
			return 1, nil
		},
		reserveUnitFn: func(bookID int64) (int, error) { return 0, nil },
		approveFn:     func(id int64, issue, due time.Time) error { return nil },
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.ApproveBorrowRequest(context.Background(), 12)
	require.NoError(t, err)
	require.False(t, countCalled, "promoted requests must not be blocked by themselves")
}

func TestApproveBorrow_NoStockLeft(t *testing.T) {
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, UserID: 1, BookID: 7, Status: model.BorrowPending}, nil
		},
		lockBookFn:      func(bookID int64) (int, error) { return 0, nil },
		countPromotedFn: func(bookID int64) (int, error) { return 0, nil },
		reserveUnitFn:   func(bookID int64) (int, error) { return 0, borrowrepo.ErrNoStock },
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.ApproveBorrowRequest(context.Background(), 11)
	require.Equal(t, apperr.OutOfStock, apperr.CodeOf(err))
}

// --- return flow ---

func TestRequestReturn_Transitions(t *testing.T) {
	var set model.BorrowStatus
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.Borrowed}, nil
		},
		setStatusFn: func(id int64, status model.BorrowStatus) error {
			set = status
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.RequestReturn(context.Background(), 11))
	require.Equal(t, model.BorrowReturnPending, set)
}

func TestRequestReturn_NotBorrowed(t *testing.T) {
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.BorrowPending}, nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.RequestReturn(context.Background(), 11)
	require.Equal(t, apperr.InvalidState, apperr.CodeOf(err))
	require.Contains(t, err.Error(), "PENDING")
}

func TestCancelReturn_RevertsToBorrowed(t *testing.T) {
	var set model.BorrowStatus
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.BorrowReturnPending}, nil
		},
		setStatusFn: func(id int64, status model.BorrowStatus) error {
			set = status
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.CancelReturnRequest(context.Background(), 11))
	require.Equal(t, model.Borrowed, set)
}

func TestApproveReturn_OnTimeNoFineAndDrains(t *testing.T) {
	issue := day(2025, time.March, 1)
	due := day(2025, time.March, 15)
	queued := day(2025, time.February, 20)

	qty := 0
	var gotFine float64 = -1
	var promotedRec *model.BorrowRecord
	var confirmedID int64
	reservation := &borrowrepo.QueuedReservation{
		Reservation: model.Reservation{ID: 5, UserID: 2, BookID: 7,
			Status: model.ReservationPending, CreatedAt: queued},
		UserEmail: "u2@example.com",
		BookTitle: "Clean Architecture",
	}

	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, UserID: 1, BookID: 7,
				Status: model.BorrowReturnPending, IssueDate: &issue, DueDate: &due}, nil
		},
		closeFn: func(id int64, returned time.Time, fine float64) error {
			gotFine = fine
			return nil
		},
		lockBookFn: func(bookID int64) (int, error) { return qty, nil },
		releaseUnitFn: func(bookID int64) (int, error) {
			qty++
			return qty, nil
		},
		countPromotedFn: func(bookID int64) (int, error) {
			if promotedRec != nil {
				return 1, nil
			}
			return 0, nil
		},
		nextReservedFn: func(bookID int64) (*borrowrepo.QueuedReservation, error) {
			if confirmedID != 0 {
				return nil, nil
			}
			return reservation, nil
		},
		insertFn: func(rec *model.BorrowRecord) error {
			rec.ID = 99
			promotedRec = rec
			return nil
		},
		confirmFn: func(reservationID int64) error {
			confirmedID = reservationID
			return nil
		},
	}
	nf := &notifyMock{}
	svc, mock := newService(t, r, nf)
	svc.now = fixedNow(2025, time.March, 10)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.ApproveReturnRequest(context.Background(), 11))

	require.Equal(t, 0.0, gotFine)
	require.Equal(t, 1, qty, "unit released back to stock")

	require.NotNil(t, promotedRec)
	require.Equal(t, int64(2), promotedRec.UserID)
	require.Equal(t, model.BorrowPending, promotedRec.Status)
	require.True(t, promotedRec.FromReservation)
	require.NotNil(t, promotedRec.ReservationCreatedAt)
	require.True(t, promotedRec.ReservationCreatedAt.Equal(queued))
	require.Equal(t, int64(5), confirmedID)

	require.Len(t, nf.sent, 1)
	require.Equal(t, int64(99), nf.sent[0].BorrowRecordID)
	require.Equal(t, "u2@example.com", nf.sent[0].UserEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveReturn_LateComputesFine(t *testing.T) {
	issue := day(2025, time.March, 1)
	due := day(2025, time.March, 15)

	var gotFine float64 = -1
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, UserID: 1, BookID: 7,
				Status: model.BorrowReturnPending, IssueDate: &issue, DueDate: &due}, nil
		},
		closeFn: func(id int64, returned time.Time, fine float64) error {
			gotFine = fine
			return nil
		},
		lockBookFn:      func(bookID int64) (int, error) { return 1, nil },
		releaseUnitFn:   func(bookID int64) (int, error) { return 1, nil },
		countPromotedFn: func(bookID int64) (int, error) { return 0, nil },
		nextReservedFn: func(bookID int64) (*borrowrepo.QueuedReservation, error) {
			return nil, nil
		},
	}
	svc, mock := newService(t, r, nil)
	svc.now = fixedNow(2025, time.March, 18) // three days late
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.ApproveReturnRequest(context.Background(), 11))
	require.Equal(t, 30.0, gotFine)
}

func TestApproveReturn_CompletesSourceReservation(t *testing.T) {
	issue := day(2025, time.March, 1)
	due := day(2025, time.March, 15)

	var completedUser, completedBook int64
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, UserID: 2, BookID: 7, FromReservation: true,
				Status: model.BorrowReturnPending, IssueDate: &issue, DueDate: &due}, nil
		},
		closeFn:       func(int64, time.Time, float64) error { return nil },
		lockBookFn:    func(int64) (int, error) { return 1, nil },
		releaseUnitFn: func(int64) (int, error) { return 1, nil },
		completeResFn: func(userID, bookID int64) (bool, error) {
			completedUser, completedBook = userID, bookID
			return true, nil
		},
		countPromotedFn: func(int64) (int, error) { return 0, nil },
		nextReservedFn:  func(int64) (*borrowrepo.QueuedReservation, error) { return nil, nil },
	}
	svc, mock := newService(t, r, nil)
	svc.now = fixedNow(2025, time.March, 10)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.ApproveReturnRequest(context.Background(), 42))
	require.Equal(t, int64(2), completedUser)
	require.Equal(t, int64(7), completedBook)
}

func TestApproveReturn_WrongState(t *testing.T) {
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.Borrowed}, nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.ApproveReturnRequest(context.Background(), 11)
	require.Equal(t, apperr.InvalidState, apperr.CodeOf(err))
	require.Contains(t, err.Error(), "BORROWED")
}

// --- cancel borrow request ---

func TestCancelBorrow_PendingDeletes(t *testing.T) {
	deleted := int64(0)
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.BorrowPending}, nil
		},
		deleteFn: func(id int64) error {
			deleted = id
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.CancelBorrowRequest(context.Background(), 11))
	require.Equal(t, int64(11), deleted)
}

func TestCancelBorrow_BorrowedFails(t *testing.T) {
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.Borrowed}, nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.CancelBorrowRequest(context.Background(), 11)
	require.Equal(t, apperr.InvalidState, apperr.CodeOf(err))
	require.Contains(t, err.Error(), "BORROWED")
}

func TestCancelBorrow_NotFound(t *testing.T) {
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) { return nil, sql.ErrNoRows },
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.CancelBorrowRequest(context.Background(), 404)
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

// --- drain ---

func TestDrain_FIFOWithTieBreak(t *testing.T) {
	t1 := day(2025, time.March, 1)
	queue := []*borrowrepo.QueuedReservation{
		{Reservation: model.Reservation{ID: 1, UserID: 10, BookID: 7, CreatedAt: t1}},
		{Reservation: model.Reservation{ID: 2, UserID: 20, BookID: 7, CreatedAt: t1}},
		{Reservation: model.Reservation{ID: 3, UserID: 30, BookID: 7, CreatedAt: t1.Add(time.Hour)}},
	}
	promoted := 0
	var order []int64
	r := &repoMock{
		lockBookFn:      func(int64) (int, error) { return 3, nil },
		countPromotedFn: func(int64) (int, error) { return promoted, nil },
		nextReservedFn: func(int64) (*borrowrepo.QueuedReservation, error) {
			if len(queue) == 0 {
				return nil, nil
			}
			return queue[0], nil
		},
		insertFn: func(rec *model.BorrowRecord) error {
			promoted++
			rec.ID = int64(100 + promoted)
			return nil
		},
		confirmFn: func(reservationID int64) error {
			order = append(order, reservationID)
			queue = queue[1:]
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	db := svc.db
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	promotions, err := svc.Drain(context.Background(), tx, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, order)
	require.Len(t, promotions, 3)
}

func TestDrain_BoundedByFreeUnits(t *testing.T) {
	queue := []*borrowrepo.QueuedReservation{
		{Reservation: model.Reservation{ID: 1, UserID: 10, BookID: 7, CreatedAt: day(2025, time.March, 1)}},
		{Reservation: model.Reservation{ID: 2, UserID: 20, BookID: 7, CreatedAt: day(2025, time.March, 2)}},
	}
	promoted := 0
	r := &repoMock{
		lockBookFn:      func(int64) (int, error) { return 1, nil },
		countPromotedFn: func(int64) (int, error) { return promoted, nil },
		nextReservedFn: func(int64) (*borrowrepo.QueuedReservation, error) {
			if len(queue) == 0 {
				return nil, nil
			}
			return queue[0], nil
		},
		insertFn: func(rec *model.BorrowRecord) error {
			promoted++
			return nil
		},
		confirmFn: func(reservationID int64) error {
			queue = queue[1:]
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	tx, err := svc.db.Begin()
	require.NoError(t, err)

	promotions, err := svc.Drain(context.Background(), tx, 7)
	require.NoError(t, err)
	require.Len(t, promotions, 1, "only one free unit, only one promotion")
	require.Len(t, queue, 1, "second reservation stays queued")
}

func TestDrain_ExistingPromotedClaimsUnit(t *testing.T) {
	// One unit but a promoted PENDING record already claims it.
	r := &repoMock{
		lockBookFn:      func(int64) (int, error) { return 1, nil },
		countPromotedFn: func(int64) (int, error) { return 1, nil },
		nextReservedFn: func(int64) (*borrowrepo.QueuedReservation, error) {
			t.Fatal("queue must not be read when no unit is free")
			return nil, nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	tx, err := svc.db.Begin()
	require.NoError(t, err)

	promotions, err := svc.Drain(context.Background(), tx, 7)
	require.NoError(t, err)
	require.Empty(t, promotions)
}

// --- updateBorrowRecord ---

func TestUpdate_NoopPerformsNoWrite(t *testing.T) {
	issue := day(2025, time.March, 1)
	due := day(2025, time.March, 15)
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.Borrowed,
				IssueDate: &issue, DueDate: &due, FineAmount: 0}, nil
		},
		applyPatchFn: func(int64, *time.Time, *time.Time, *time.Time, float64) error {
			t.Fatal("no-op update must not write")
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sameIssue := issue
	rec, err := svc.UpdateBorrowRecord(context.Background(), 11, model.BorrowPatch{IssueDate: &sameIssue})
	require.NoError(t, err)
	require.Equal(t, int64(11), rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_LateReturnDateRecomputesFine(t *testing.T) {
	issue := day(2025, time.March, 1)
	due := day(2025, time.March, 15)
	ret := day(2025, time.March, 15)

	var gotFine float64 = -1
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.BorrowReturned,
				IssueDate: &issue, DueDate: &due, ReturnDate: &ret, FineAmount: 0}, nil
		},
		applyPatchFn: func(id int64, _, _, _ *time.Time, fine float64) error {
			gotFine = fine
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	newRet := day(2025, time.March, 18)
	rec, err := svc.UpdateBorrowRecord(context.Background(), 11, model.BorrowPatch{ReturnDate: &newRet})
	require.NoError(t, err)
	require.Equal(t, 30.0, gotFine)
	require.Equal(t, 30.0, rec.FineAmount)
}

func TestUpdate_DateFixOverridesExplicitFine(t *testing.T) {
	issue := day(2025, time.March, 1)
	due := day(2025, time.March, 15)
	ret := day(2025, time.March, 18)

	var gotFine float64 = -1
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.BorrowReturned,
				IssueDate: &issue, DueDate: &due, ReturnDate: &ret, FineAmount: 30}, nil
		},
		applyPatchFn: func(id int64, _, _, _ *time.Time, fine float64) error {
			gotFine = fine
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	// Due date moves past the return date: the recomputed zero fine wins
	// over the stale explicit value.
	newDue := day(2025, time.March, 20)
	bogus := 99.0
	_, err := svc.UpdateBorrowRecord(context.Background(), 11,
		model.BorrowPatch{DueDate: &newDue, FineAmount: &bogus})
	require.NoError(t, err)
	require.Equal(t, 0.0, gotFine)
}

func TestUpdate_FineOnlyCorrection(t *testing.T) {
	var gotFine float64 = -1
	r := &repoMock{
		getForUpdateFn: func(id int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: id, Status: model.BorrowReturned, FineAmount: 30}, nil
		},
		applyPatchFn: func(id int64, _, _, _ *time.Time, fine float64) error {
			gotFine = fine
			return nil
		},
	}
	svc, mock := newService(t, r, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	waived := 0.0
	_, err := svc.UpdateBorrowRecord(context.Background(), 11, model.BorrowPatch{FineAmount: &waived})
	require.NoError(t, err)
	require.Equal(t, 0.0, gotFine)
}

func TestUpdate_NegativeFineRejected(t *testing.T) {
	svc, _ := newService(t, &repoMock{}, nil)
	neg := -5.0
	_, err := svc.UpdateBorrowRecord(context.Background(), 11, model.BorrowPatch{FineAmount: &neg})
	require.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}
