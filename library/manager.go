package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// LibraryManager is a thin façade over the Database, keeping shell code simple.
// It validates form input, hashes passwords and logs each operation.
type LibraryManager struct {
	db       *Database
	validate *validator.Validate
	log      *slog.Logger
	hashCost int
}

// Options tunes a LibraryManager. Zero values select defaults.
type Options struct {
	Logger   *slog.Logger
	HashCost int
}

// NewLibraryManager wraps an already opened Database. The caller keeps
// ownership of db and closes it.
func NewLibraryManager(db *Database, opts Options) *LibraryManager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cost := opts.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	v := validator.New()
	// Report json names ("publication_date") rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &LibraryManager{db: db, validate: v, log: logger, hashCost: cost}
}

// ------------------ Users ------------------

// maxPasswordLen is the longest input bcrypt hashes in full.
const maxPasswordLen = 72

func (lm *LibraryManager) RegisterUser(c Credentials) (int64, error) {
	if err := lm.check(&c); err != nil {
		return 0, lm.fail("register", err)
	}
	if len(c.Password) > maxPasswordLen {
		return 0, lm.fail("register", fmt.Errorf("%w: password longer than %d bytes", ErrValidation, maxPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), lm.hashCost)
	if err != nil {
		return 0, lm.fail("register", fmt.Errorf("hash password: %w", err))
	}
	id, err := lm.db.AddUser(c.Username, string(hash))
	if err != nil {
		return 0, lm.fail("register", err, "username", c.Username)
	}
	lm.log.Debug("user registered", "user_id", id, "username", c.Username)
	return id, nil
}

// Authenticate returns the id of the user whose username and password both
// match. Any mismatch is ErrNotFound.
func (lm *LibraryManager) Authenticate(c Credentials) (int64, error) {
	if err := lm.check(&c); err != nil {
		return 0, lm.fail("login", err)
	}
	// bcrypt ignores input past maxPasswordLen, so a longer password could
	// only ever match on its prefix.
	if len(c.Password) > maxPasswordLen {
		return 0, lm.fail("login", fmt.Errorf("credentials for %q: %w", c.Username, ErrNotFound))
	}
	u, err := lm.db.UserByName(c.Username)
	if err != nil {
		return 0, lm.fail("login", err, "username", c.Username)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(c.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return 0, lm.fail("login", err, "username", c.Username)
		}
		return 0, lm.fail("login", fmt.Errorf("credentials for %q: %w", c.Username, ErrNotFound))
	}
	lm.log.Debug("user authenticated", "user_id", u.ID)
	return u.ID, nil
}

// ------------------ Books ------------------

func (lm *LibraryManager) AddBook(b NewBook) (int64, error) {
	if err := lm.check(&b); err != nil {
		return 0, lm.fail("add book", err)
	}
	id, err := lm.db.AddBook(b)
	if err != nil {
		return 0, lm.fail("add book", err)
	}
	lm.log.Debug("book added", "book_id", id, "title", b.Title)
	return id, nil
}

func (lm *LibraryManager) SearchBooks(term string) ([]*Book, error) {
	if err := lm.check(&searchRequest{Term: term}); err != nil {
		return nil, lm.fail("search", err)
	}
	books, err := lm.db.SearchBooks(term)
	if err != nil {
		return nil, lm.fail("search", err, "term", term)
	}
	lm.log.Debug("books searched", "term", term, "results", len(books))
	return books, nil
}

func (lm *LibraryManager) GetBook(id int64) (*Book, error) {
	b, err := lm.db.GetBook(id)
	if err != nil {
		return nil, lm.fail("view book", err, "book_id", id)
	}
	return b, nil
}

func (lm *LibraryManager) GetAllBooks() ([]*Book, error) { return lm.db.GetAllBooks() }

// ------------------ Circulation ------------------

func (lm *LibraryManager) BorrowBook(userID, bookID int64) (int64, error) {
	loanID, err := lm.db.BorrowBook(userID, bookID)
	if err != nil {
		return 0, lm.fail("borrow", err, "user_id", userID, "book_id", bookID)
	}
	lm.log.Debug("book borrowed", "loan_id", loanID, "user_id", userID, "book_id", bookID)
	return loanID, nil
}

// ReturnBook closes the user's most recent open loan of the book.
func (lm *LibraryManager) ReturnBook(userID, bookID int64) (int64, error) {
	loanID, err := lm.db.ReturnBook(userID, bookID)
	if err != nil {
		return 0, lm.fail("return", err, "user_id", userID, "book_id", bookID)
	}
	lm.log.Debug("book returned", "loan_id", loanID, "user_id", userID, "book_id", bookID)
	return loanID, nil
}

func (lm *LibraryManager) OpenLoans(userID int64) ([]*Loan, error) {
	loans, err := lm.db.OpenLoans(userID)
	if err != nil {
		return nil, lm.fail("list loans", err, "user_id", userID)
	}
	return loans, nil
}

// ------------------ Import ------------------

// ImportResult reports one CSV row handled by ImportBooksCSV.
type ImportResult struct {
	Line   int
	Title  string
	BookID int64
	Err    error
}

// ImportBooksCSV adds one book per title,author,publication_date,keywords
// row. A leading header row is skipped. Rows failing validation are reported
// and skipped; a storage failure stops the import.
func (lm *LibraryManager) ImportBooksCSV(r io.Reader) ([]ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var results []ImportResult
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return results, nil
		}
		if err != nil {
			return results, fmt.Errorf("read csv: %w", err)
		}
		if line == 1 && strings.EqualFold(rec[0], "title") {
			continue
		}

		b := NewBook{Title: rec[0], Author: rec[1], PublicationDate: rec[2], Keywords: rec[3]}
		id, err := lm.AddBook(b)
		if err != nil && !errors.Is(err, ErrValidation) {
			return results, err
		}
		results = append(results, ImportResult{Line: line, Title: b.Title, BookID: id, Err: err})
	}
}

// ------------------ Helpers ------------------

func (lm *LibraryManager) check(req any) error {
	if err := lm.validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

// fail logs err at a level matching its kind and returns it unchanged.
func (lm *LibraryManager) fail(op string, err error, attrs ...any) error {
	args := append([]any{"op", op, "error", err}, attrs...)
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConstraint), errors.Is(err, ErrNotFound):
		lm.log.Info("operation rejected", args...)
	default:
		lm.log.Error("storage failure", args...)
	}
	return err
}

// ------------------ Utilities ------------------

// PrettyBook formats a book the way search results list it.
func PrettyBook(b *Book) string {
	return fmt.Sprintf("%s by %s (%s) - Keywords: %s", b.Title, b.Author, b.PublicationDate, b.Keywords)
}
