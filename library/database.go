package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// TimestampLayout is how borrow and return times are stored.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	tableBooks     = "books"
	colID          = "id"
	colTitle       = "title"
	colAuthor      = "author"
	colPublication = "publication_date"
	colKeywords    = "keywords"
	dialectSQLite  = "sqlite3"
)

// Database is the record store: parameterized single-row operations over the
// users, books and book_loans relations.
type Database struct {
	db  *sqlx.DB
	now func() time.Time

	addBookStmt *sql.Stmt
	addUserStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath with the given
// driver, ensures the schema exists and prepares common statements.
func NewDatabase(driver, dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn, err := dataSourceName(driver, dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One explicitly owned connection; the process is strictly sequential.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, now: time.Now}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// dataSourceName enables busy_timeout and foreign keys in each driver's syntax.
func dataSourceName(driver, dbPath string) (string, error) {
	switch driver {
	case DriverCGO:
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath), nil
	case DriverPureGo:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.addUserStmt != nil {
		d.addUserStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        password TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS books (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        author TEXT NOT NULL,
        publication_date TEXT NOT NULL,
        keywords TEXT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS book_loans (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL REFERENCES users(id),
        book_id INTEGER NOT NULL REFERENCES books(id),
        borrow_date TEXT NOT NULL,
        return_date TEXT
    );`,
}

// ensureSchema creates the three relations if missing. Existing rows are kept.
func ensureSchema(db *sqlx.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(`INSERT INTO books(title,author,publication_date,keywords) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	if d.addUserStmt, err = d.db.Prepare(`INSERT INTO users(username,password) VALUES(?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// AddUser inserts a user. A duplicate username yields ErrUsernameTaken.
func (d *Database) AddUser(username, passwordHash string) (int64, error) {
	res, err := d.addUserStmt.Exec(username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return res.LastInsertId()
}

// UserByName looks a user up by exact username.
func (d *Database) UserByName(username string) (*User, error) {
	var u User
	err := d.db.Get(&u, `SELECT id,username,password FROM users WHERE username=?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsers returns how many rows carry the given username.
func (d *Database) CountUsers(username string) (int, error) {
	var n int
	err := d.db.Get(&n, `SELECT COUNT(*) FROM users WHERE username=?`, username)
	return n, err
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// AddBook inserts a book and returns its id.
func (d *Database) AddBook(b NewBook) (int64, error) {
	res, err := d.addBookStmt.Exec(b.Title, b.Author, b.PublicationDate, b.Keywords)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *Database) GetBook(id int64) (*Book, error) {
	var b Book
	err := d.db.Get(&b, `SELECT id,title,author,publication_date,keywords FROM books WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetAllBooks lists the catalog ordered by id.
func (d *Database) GetAllBooks() ([]*Book, error) {
	books := []*Book{}
	if err := d.db.Select(&books, `SELECT id,title,author,publication_date,keywords FROM books ORDER BY id`); err != nil {
		return nil, err
	}
	return books, nil
}

// SearchBooks returns books whose title, author or keywords contain term.
// Matching is a case-sensitive literal substring test, so LIKE wildcards in
// term have no special meaning.
func (d *Database) SearchBooks(term string) ([]*Book, error) {
	query, args, err := buildSearchQuery(term)
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	books := []*Book{}
	if err := d.db.Select(&books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func buildSearchQuery(term string) (string, []interface{}, error) {
	contains := func(col string) exp.Expression {
		return goqu.L("instr(?, ?) > 0", goqu.C(col), term)
	}
	return goqu.Dialect(dialectSQLite).
		From(tableBooks).
		Select(colID, colTitle, colAuthor, colPublication, colKeywords).
		Where(goqu.Or(contains(colTitle), contains(colAuthor), contains(colKeywords))).
		Order(goqu.C(colID).Asc()).
		Prepared(true).
		ToSQL()
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

// BorrowBook records an open loan stamped with the current time. It does not
// check whether the book is already out.
func (d *Database) BorrowBook(userID, bookID int64) (int64, error) {
	var exists bool
	if err := d.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, bookID); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	res, err := d.db.Exec(`INSERT INTO book_loans(user_id,book_id,borrow_date) VALUES(?,?,?)`,
		userID, bookID, d.timestamp())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ReturnBook closes the most recent open loan for exactly (userID, bookID)
// and returns its id.
func (d *Database) ReturnBook(userID, bookID int64) (int64, error) {
	var loanID int64
	err := d.db.Get(&loanID, `SELECT id FROM book_loans
        WHERE user_id=? AND book_id=? AND return_date IS NULL
        ORDER BY borrow_date DESC, id DESC LIMIT 1`, userID, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("open loan of book %d by user %d: %w", bookID, userID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	if _, err := d.db.Exec(`UPDATE book_loans SET return_date=? WHERE id=?`, d.timestamp(), loanID); err != nil {
		return 0, err
	}
	return loanID, nil
}

func (d *Database) GetLoan(id int64) (*Loan, error) {
	var l Loan
	err := d.db.Get(&l, `SELECT id,user_id,book_id,borrow_date,return_date FROM book_loans WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// OpenLoans returns the user's outstanding loans, newest first.
func (d *Database) OpenLoans(userID int64) ([]*Loan, error) {
	loans := []*Loan{}
	err := d.db.Select(&loans, `SELECT id,user_id,book_id,borrow_date,return_date FROM book_loans
        WHERE user_id=? AND return_date IS NULL
        ORDER BY borrow_date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return loans, nil
}

func (d *Database) timestamp() string {
	return d.now().Format(TimestampLayout)
}
