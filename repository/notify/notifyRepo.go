package notifyrepo

// Repo delivers "your reserved book is ready" notices. Delivery is best
// effort; lending operations never fail because a notice did not go out.
type Repo interface {
	ReservationReady(n ReservationReady) error
}

type ReservationReady struct {
	ReservationID  int64  `json:"reservation_id"`
	BorrowRecordID int64  `json:"borrow_record_id"`
	UserID         int64  `json:"user_id"`
	UserEmail      string `json:"user_email"`
	BookID         int64  `json:"book_id"`
	BookTitle      string `json:"book_title"`
}

type noop struct{}

// NewNoop is used when no webhook URL is configured.
func NewNoop() Repo { return noop{} }

func (noop) ReservationReady(ReservationReady) error { return nil }
