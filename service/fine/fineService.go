package finesvc

import (
	"context"

	"github.com/amandev2001/mylib/model"
	"github.com/amandev2001/mylib/util/apperr"
)

type FineRow struct {
	BorrowRecordID int64              `json:"borrow_record_id"`
	UserID         int64              `json:"user_id"`
	BookID         int64              `json:"book_id"`
	Status         model.BorrowStatus `json:"status"`
	FineAmount     float64            `json:"fine_amount"`
}

type BorrowReader interface {
	ListByUser(ctx context.Context, userID int64) ([]model.BorrowRecord, error)
	ListAll(ctx context.Context) ([]model.BorrowRecord, error)
}

type Service interface {
	TotalForUser(ctx context.Context, userID int64) (float64, error)
	ListAll(ctx context.Context) ([]FineRow, error)

	// PayFine is intentionally a stub: fine collection goes through the
	// front desk today and has no online flow yet.
	PayFine(ctx context.Context, borrowRecordID int64) error
}

type service struct{ br BorrowReader }

func New(br BorrowReader) Service { return &service{br: br} }

func (s *service) TotalForUser(ctx context.Context, userID int64) (float64, error) {
	records, err := s.br.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, rec := range records {
		if rec.FineAmount > 0 {
			total += rec.FineAmount
		}
	}
	return total, nil
}

func (s *service) ListAll(ctx context.Context) ([]FineRow, error) {
	records, err := s.br.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []FineRow
	for _, rec := range records {
		if rec.FineAmount <= 0 {
			continue
		}
		out = append(out, FineRow{
			BorrowRecordID: rec.ID,
			UserID:         rec.UserID,
			BookID:         rec.BookID,
			Status:         rec.Status,
			FineAmount:     rec.FineAmount,
		})
	}
	return out, nil
}

func (s *service) PayFine(ctx context.Context, borrowRecordID int64) error {
	return apperr.New(apperr.Conflict, "fine payment is not available yet")
}
