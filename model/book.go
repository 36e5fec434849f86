// model/book.go
package model

import "time"

type Book struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	ISBN        *string   `json:"isbn,omitempty"`
	Publisher   string    `json:"publisher"`
	Language    string    `json:"language"`
	Quantity    int       `json:"quantity"`
	TotalCopies int       `json:"total_copies"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateBookReq represents the admin payload for adding a book
// swagger:model CreateBookReq
type CreateBookReq struct {
	Title     string  `json:"title" validate:"required"`
	Author    string  `json:"author"`
	Category  string  `json:"category"`
	ISBN      *string `json:"isbn,omitempty"`
	Publisher string  `json:"publisher"`
	Language  string  `json:"language"`
	Copies    int     `json:"copies" validate:"gte=0"`
}

// UpdateBookReq carries only the catalog fields an admin may edit.
// swagger:model UpdateBookReq
type UpdateBookReq struct {
	Title     *string `json:"title,omitempty"`
	Author    *string `json:"author,omitempty"`
	Category  *string `json:"category,omitempty"`
	ISBN      *string `json:"isbn,omitempty"`
	Publisher *string `json:"publisher,omitempty"`
	Language  *string `json:"language,omitempty"`
}

// RestockReq adds lendable copies to a book
// swagger:model RestockReq
type RestockReq struct {
	Count int `json:"count" validate:"required,gt=0"`
}
