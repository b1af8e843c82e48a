package gui

import (
	"errors"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-catalog/library"
)

type message struct{ title, text string }

// newForm builds a form on the headless test driver and records every
// message it would have shown in a dialog.
func newForm(t *testing.T, cat library.Catalog) (*Form, fyne.App, *[]message) {
	t.Helper()
	a := test.NewTempApp(t)
	f := New(a, cat)
	var got []message
	f.notify = func(title, text string) { got = append(got, message{title, text}) }
	return f, a, &got
}

func newCatalog(t *testing.T) *library.LibraryManager {
	t.Helper()
	db, err := library.NewDatabase(library.DriverCGO, filepath.Join(t.TempDir(), "gui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return library.NewLibraryManager(db, library.Options{HashCost: bcrypt.MinCost})
}

func last(msgs *[]message) string {
	if len(*msgs) == 0 {
		return ""
	}
	return (*msgs)[len(*msgs)-1].text
}

func TestFormWindowIsFixedSize(t *testing.T) {
	f, _, _ := newForm(t, newCatalog(t))
	assert.True(t, f.win.FixedSize())
	for _, label := range []string{"Register", "Login", "Add Book", "Search", "View Book", "Borrow", "Return"} {
		assert.Contains(t, f.buttons, label)
	}
}

func TestFormSession(t *testing.T) {
	f, a, msgs := newForm(t, newCatalog(t))

	test.Tap(f.buttons["Register"])
	assert.Equal(t, "Please fill in all the fields.", last(msgs))

	f.username.SetText("alice")
	f.password.SetText("secret")
	test.Tap(f.buttons["Register"])
	assert.Equal(t, "User registration successful.", last(msgs))
	test.Tap(f.buttons["Register"])
	assert.Equal(t, "Username already taken.", last(msgs))

	f.title.SetText("Dune")
	f.author.SetText("Frank Herbert")
	f.date.SetText("1965")
	test.Tap(f.buttons["Add Book"])
	assert.Equal(t, "Please fill in all the fields.", last(msgs))
	f.keywords.SetText("scifi,spice")
	test.Tap(f.buttons["Add Book"])
	assert.Equal(t, "Book added to the library with ID 1.", last(msgs))

	test.Tap(f.buttons["Search"])
	assert.Equal(t, "Please enter a search term.", last(msgs))
	f.query.SetText("Emma")
	test.Tap(f.buttons["Search"])
	assert.Equal(t, "No books found.", last(msgs))
	f.query.SetText("spice")
	test.Tap(f.buttons["Search"])
	assert.Len(t, a.Driver().AllWindows(), 2, "results sub-window")

	f.bookID.SetText("1")
	test.Tap(f.buttons["View Book"])
	assert.Contains(t, last(msgs), "Publication Date: 1965")
	f.bookID.SetText("abc")
	test.Tap(f.buttons["View Book"])
	assert.Equal(t, "Book not found.", last(msgs))

	f.bookID.SetText("1")
	test.Tap(f.buttons["Borrow"])
	assert.Equal(t, "Please log in to borrow a book.", last(msgs))

	f.password.SetText("wrong")
	test.Tap(f.buttons["Login"])
	assert.Equal(t, "Invalid username or password.", last(msgs))
	f.password.SetText("secret")
	test.Tap(f.buttons["Login"])
	assert.Equal(t, "Login successful.", last(msgs))

	test.Tap(f.buttons["Borrow"])
	assert.Equal(t, "Book borrowed successfully.", last(msgs))
	test.Tap(f.buttons["Return"])
	assert.Equal(t, "Book returned successfully.", last(msgs))
	test.Tap(f.buttons["Return"])
	assert.Equal(t, "You haven't borrowed this book or it has already been returned.", last(msgs))

	require.NoError(t, f.Err())
}

// stubCatalog records circulation calls and fails every call with err.
type stubCatalog struct {
	library.Catalog
	calls []string
	err   error
}

func (s *stubCatalog) BorrowBook(userID, bookID int64) (int64, error) {
	s.calls = append(s.calls, "borrow")
	return 1, s.err
}

func (s *stubCatalog) ReturnBook(userID, bookID int64) (int64, error) {
	s.calls = append(s.calls, "return")
	return 1, s.err
}

func (s *stubCatalog) SearchBooks(term string) ([]*library.Book, error) {
	s.calls = append(s.calls, "search")
	return nil, s.err
}

func TestFormRequiresLoginBeforeCirculation(t *testing.T) {
	cat := &stubCatalog{}
	f, _, msgs := newForm(t, cat)
	f.bookID.SetText("5")

	test.Tap(f.buttons["Borrow"])
	test.Tap(f.buttons["Return"])
	assert.Empty(t, cat.calls)
	assert.Equal(t, []message{
		{"Borrow", "Please log in to borrow a book."},
		{"Return", "Please log in to return a book."},
	}, *msgs)

	f.Session().Login(3)
	test.Tap(f.buttons["Borrow"])
	assert.Equal(t, []string{"borrow"}, cat.calls)
}

func TestFormStorageFailureStopsDispatch(t *testing.T) {
	diskErr := errors.New("disk I/O error")
	cat := &stubCatalog{err: diskErr}
	f, _, _ := newForm(t, cat)
	f.query.SetText("dune")

	test.Tap(f.buttons["Search"])
	require.ErrorIs(t, f.Err(), diskErr)

	test.Tap(f.buttons["Search"])
	assert.Equal(t, []string{"search"}, cat.calls)
}
