package library

import "database/sql"

// Book is a catalog record. Keywords is a comma-joined tag list.
type Book struct {
	ID              int64  `db:"id" json:"id"`
	Title           string `db:"title" json:"title"`
	Author          string `db:"author" json:"author"`
	PublicationDate string `db:"publication_date" json:"publication_date"`
	Keywords        string `db:"keywords" json:"keywords"`
}

// User represents a registered account. Password holds the bcrypt hash.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"` // never serialize the hash
}

// Loan links a user and a book. It is open while ReturnDate is NULL.
type Loan struct {
	ID         int64          `db:"id" json:"id"`
	UserID     int64          `db:"user_id" json:"user_id"`
	BookID     int64          `db:"book_id" json:"book_id"`
	BorrowDate string         `db:"borrow_date" json:"borrow_date"`
	ReturnDate sql.NullString `db:"return_date" json:"-"`
}

// Open reports whether the book has not been returned yet.
func (l *Loan) Open() bool { return !l.ReturnDate.Valid }

// NewBook carries the add-book form fields.
type NewBook struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	PublicationDate string `json:"publication_date" validate:"required"`
	Keywords        string `json:"keywords" validate:"required"`
}

// Credentials carries the register and login form fields.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type searchRequest struct {
	Term string `json:"term" validate:"required"`
}
