package finesvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amandev2001/mylib/model"
	"github.com/amandev2001/mylib/util/apperr"
)

type readerMock struct {
	byUser []model.BorrowRecord
	all    []model.BorrowRecord
}

func (m *readerMock) ListByUser(context.Context, int64) ([]model.BorrowRecord, error) {
	return m.byUser, nil
}
func (m *readerMock) ListAll(context.Context) ([]model.BorrowRecord, error) { return m.all, nil }

func TestTotalForUser_SumsPositiveFines(t *testing.T) {
	svc := New(&readerMock{byUser: []model.BorrowRecord{
		{ID: 1, FineAmount: 30},
		{ID: 2, FineAmount: 0},
		{ID: 3, FineAmount: 10},
	}})

	total, err := svc.TotalForUser(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 40.0, total)
}

func TestListAll_SkipsZeroFines(t *testing.T) {
	svc := New(&readerMock{all: []model.BorrowRecord{
		{ID: 1, UserID: 2, BookID: 7, Status: model.BorrowReturned, FineAmount: 30},
		{ID: 2, UserID: 3, BookID: 7, Status: model.BorrowReturned, FineAmount: 0},
	}})

	rows, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0].BorrowRecordID)
	require.Equal(t, 30.0, rows[0].FineAmount)
}

func TestPayFine_NotAvailable(t *testing.T) {
	svc := New(&readerMock{})
	err := svc.PayFine(context.Background(), 1)
	require.Equal(t, apperr.Conflict, apperr.CodeOf(err))
}
