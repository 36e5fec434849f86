// model/reservation.go
package model

import "time"

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"   // queued, waiting for stock
	ReservationConfirmed ReservationStatus = "CONFIRMED" // promoted to a borrow request
	ReservationCanceled  ReservationStatus = "CANCELED"
	ReservationCompleted ReservationStatus = "COMPLETED" // resulting loan fully closed
)

type Reservation struct {
	ID     int64             `json:"id"`
	UserID int64             `json:"user_id"`
	BookID int64             `json:"book_id"`
	Status ReservationStatus `json:"status"`
	// CreatedAt is immutable and defines the FIFO promotion order.
	CreatedAt time.Time `json:"created_at"`
}
