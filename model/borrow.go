// model/borrow.go
package model

import "time"

type BorrowStatus string

const (
	BorrowPending       BorrowStatus = "PENDING"        // waiting for admin approval
	Borrowed            BorrowStatus = "BORROWED"       // copy is with the user
	BorrowReturnPending BorrowStatus = "RETURN_PENDING" // return waiting for admin approval
	BorrowReturned      BorrowStatus = "RETURNED"       // terminal
)

type BorrowRecord struct {
	ID              int64        `json:"id"`
	UserID          int64        `json:"user_id"`
	BookID          int64        `json:"book_id"`
	Status          BorrowStatus `json:"status"`
	IssueDate       *time.Time   `json:"issue_date,omitempty"`
	DueDate         *time.Time   `json:"due_date,omitempty"`
	ReturnDate      *time.Time   `json:"return_date,omitempty"`
	FineAmount      float64      `json:"fine_amount"`
	FromReservation bool         `json:"from_reservation"`
	// ReservationCreatedAt keeps the promoted reservation's queue timestamp
	// for audit even after the reservation row is confirmed.
	ReservationCreatedAt *time.Time `json:"reservation_created_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// BorrowPatch lists exactly the fields an admin correction may touch.
// Nil means "leave as stored".
type BorrowPatch struct {
	IssueDate  *time.Time `json:"issue_date,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	FineAmount *float64   `json:"fine_amount,omitempty"`
}
