package library

// Catalog is the operation set both front-ends dispatch to.
type Catalog interface {
	RegisterUser(c Credentials) (int64, error)
	Authenticate(c Credentials) (int64, error)
	AddBook(b NewBook) (int64, error)
	SearchBooks(term string) ([]*Book, error)
	GetBook(id int64) (*Book, error)
	BorrowBook(userID, bookID int64) (int64, error)
	ReturnBook(userID, bookID int64) (int64, error)
	OpenLoans(userID int64) ([]*Loan, error)
}

var _ Catalog = (*LibraryManager)(nil)
