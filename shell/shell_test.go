package shell

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-catalog/library"
)

func newCatalog(t *testing.T) *library.LibraryManager {
	t.Helper()
	db, err := library.NewDatabase(library.DriverCGO, filepath.Join(t.TempDir(), "shell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return library.NewLibraryManager(db, library.Options{HashCost: bcrypt.MinCost})
}

// script joins input lines the way a user would type them.
func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestShellSession(t *testing.T) {
	cat := newCatalog(t)
	var out bytes.Buffer
	in := script(
		"1", "alice", "secret",
		"1", "alice", "other",
		"1", "", "pw",
		"2", "alice", "wrong",
		"6",
		"2", "alice", "secret",
		"3", "Dune", "Frank Herbert", "1965", "scifi,desert",
		"3", "Untitled", "", "", "",
		"4", "desert",
		"4", "",
		"4", "nothing here",
		"5", "1",
		"5", "abc",
		"5", "99",
		"6", "1",
		"6", "99",
		"7", "1",
		"7", "1",
		"9",
		"8",
	)
	sh := New(cat, in, &out)
	require.NoError(t, sh.Run())

	got := out.String()
	for _, want := range []string{
		"User registration successful.",
		"Username already taken.",
		"Please fill in all the fields.",
		"Invalid username or password.",
		"Please log in to borrow a book.",
		"Login successful.",
		"Book added to the library with ID 1.",
		"Search Results:\n[1] Dune by Frank Herbert (1965) - Keywords: scifi,desert",
		"Please enter a search term.",
		"No books found.",
		"Title: Dune\nAuthor: Frank Herbert\nPublication Date: 1965\nKeywords: scifi,desert",
		"Book not found.",
		"Book borrowed successfully.",
		"Book returned successfully.",
		"You haven't borrowed this book or it has already been returned.",
		"Invalid choice. Please try again.",
		"Goodbye!",
	} {
		assert.Contains(t, got, want)
	}
	assert.Equal(t, 1, strings.Count(got, "Book borrowed successfully."))
	assert.Equal(t, 3, strings.Count(got, "Book not found."), "bad id, unknown id, borrow unknown id")

	id, ok := sh.Session().UserID()
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestShellFailedLoginKeepsSession(t *testing.T) {
	cat := newCatalog(t)
	_, err := cat.RegisterUser(library.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	var out bytes.Buffer
	sh := New(cat, script("2", "alice", "secret", "2", "alice", "nope", "8"), &out)
	require.NoError(t, sh.Run())

	_, ok := sh.Session().UserID()
	assert.True(t, ok)
}

func TestShellPasswordKeepsWhitespace(t *testing.T) {
	cat := newCatalog(t)
	var out bytes.Buffer
	sh := New(cat, script("1", "  alice ", " pw ", "2", "alice", "pw", "2", "alice", " pw ", "8"), &out)
	require.NoError(t, sh.Run())

	assert.Equal(t, 1, strings.Count(out.String(), "Invalid username or password."))
	assert.Equal(t, 1, strings.Count(out.String(), "Login successful."))
	_, ok := sh.Session().UserID()
	assert.True(t, ok)
}

func TestShellInputClosed(t *testing.T) {
	cat := newCatalog(t)
	var out bytes.Buffer
	require.NoError(t, New(cat, strings.NewReader("1\nbob\n"), &out).Run())
	assert.True(t, strings.HasSuffix(out.String(), "Goodbye!\n"))
	assert.NotContains(t, out.String(), "User registration successful.")
}

// recordingCatalog fails the test if borrow or return reach it.
type recordingCatalog struct {
	library.Catalog
	calls []string
	err   error
}

func (r *recordingCatalog) BorrowBook(userID, bookID int64) (int64, error) {
	r.calls = append(r.calls, "borrow")
	return 1, r.err
}

func (r *recordingCatalog) ReturnBook(userID, bookID int64) (int64, error) {
	r.calls = append(r.calls, "return")
	return 1, r.err
}

func (r *recordingCatalog) SearchBooks(term string) ([]*library.Book, error) {
	r.calls = append(r.calls, "search")
	return nil, r.err
}

func TestShellRequiresLoginBeforeCirculation(t *testing.T) {
	cat := &recordingCatalog{}
	var out bytes.Buffer
	require.NoError(t, New(cat, script("6", "7", "8"), &out).Run())

	assert.Empty(t, cat.calls)
	assert.Contains(t, out.String(), "Please log in to borrow a book.")
	assert.Contains(t, out.String(), "Please log in to return a book.")
	assert.NotContains(t, out.String(), "Enter the book ID")
}

func TestShellSessionUserIsPassedThrough(t *testing.T) {
	cat := &recordingCatalog{}
	var out bytes.Buffer
	sh := New(cat, script("6", "5", "7", "5", "8"), &out)
	sh.Session().Login(1)
	require.NoError(t, sh.Run())
	assert.Equal(t, []string{"borrow", "return"}, cat.calls)
}

func TestShellStorageFailureStopsLoop(t *testing.T) {
	diskErr := errors.New("disk I/O error")
	cat := &recordingCatalog{err: diskErr}
	var out bytes.Buffer
	err := New(cat, script("4", "dune", "8"), &out).Run()
	require.ErrorIs(t, err, diskErr)
	assert.NotContains(t, out.String(), "Goodbye!")
}
