// Package shell implements the numbered-menu front-end of the catalog.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"library-catalog/library"
)

const menu = "\n1. Register\n2. Login\n3. Add Book\n4. Search Books\n5. View Book Details\n" +
	"6. Borrow Book\n7. Return Book\n8. Exit\n"

// Loop terminators; neither escapes Run.
var (
	errExit        = errors.New("exit")
	errInputClosed = errors.New("input closed")
)

// Shell is a blocking read-eval loop over the catalog operations. It owns the
// session of the running process.
type Shell struct {
	cat     library.Catalog
	session *library.Session
	sc      *bufio.Scanner
	in      io.Reader
	out     io.Writer
}

// New returns a shell reading commands from in and printing to out.
func New(cat library.Catalog, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		cat:     cat,
		session: &library.Session{},
		sc:      bufio.NewScanner(in),
		in:      in,
		out:     out,
	}
}

// Session exposes the shell's session state.
func (s *Shell) Session() *library.Session { return s.session }

// Run loops until the user exits or input ends. It returns a non-nil error
// only for storage failures, which are not recoverable here.
func (s *Shell) Run() error {
	for {
		fmt.Fprint(s.out, menu)
		choice, err := s.prompt("Enter your choice: ")
		if err == nil {
			err = s.dispatch(choice)
		}
		switch {
		case errors.Is(err, errInputClosed):
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		case errors.Is(err, errExit):
			return nil
		case err != nil:
			return err
		}
	}
}

func (s *Shell) dispatch(choice string) error {
	switch choice {
	case "1":
		return s.register()
	case "2":
		return s.login()
	case "3":
		return s.addBook()
	case "4":
		return s.searchBooks()
	case "5":
		return s.viewBook()
	case "6":
		return s.borrowBook()
	case "7":
		return s.returnBook()
	case "8":
		fmt.Fprintln(s.out, "Goodbye!")
		return errExit
	default:
		fmt.Fprintln(s.out, "Invalid choice. Please try again.")
		return nil
	}
}

func (s *Shell) register() error {
	username, err := s.prompt("Enter a username: ")
	if err != nil {
		return err
	}
	password, err := s.password("Enter a password: ")
	if err != nil {
		return err
	}

	_, err = s.cat.RegisterUser(library.Credentials{Username: username, Password: password})
	switch {
	case err == nil:
		fmt.Fprintln(s.out, "User registration successful.")
	case errors.Is(err, library.ErrValidation):
		fmt.Fprintln(s.out, "Please fill in all the fields.")
	case errors.Is(err, library.ErrUsernameTaken):
		fmt.Fprintln(s.out, "Username already taken.")
	default:
		return err
	}
	return nil
}

// login keeps any previous session when the attempt fails.
func (s *Shell) login() error {
	username, err := s.prompt("Enter your username: ")
	if err != nil {
		return err
	}
	password, err := s.password("Enter your password: ")
	if err != nil {
		return err
	}

	id, err := s.cat.Authenticate(library.Credentials{Username: username, Password: password})
	switch {
	case err == nil:
		s.session.Login(id)
		fmt.Fprintln(s.out, "Login successful.")
	case errors.Is(err, library.ErrValidation):
		fmt.Fprintln(s.out, "Please fill in all the fields.")
	case errors.Is(err, library.ErrNotFound):
		fmt.Fprintln(s.out, "Invalid username or password.")
	default:
		return err
	}
	return nil
}

func (s *Shell) addBook() error {
	var b library.NewBook
	fields := []struct {
		label string
		dst   *string
	}{
		{"Enter the title of the book: ", &b.Title},
		{"Enter the author of the book: ", &b.Author},
		{"Enter the publication date of the book: ", &b.PublicationDate},
		{"Enter keywords for the book (comma-separated): ", &b.Keywords},
	}
	for _, f := range fields {
		v, err := s.prompt(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	id, err := s.cat.AddBook(b)
	switch {
	case err == nil:
		fmt.Fprintf(s.out, "Book added to the library with ID %d.\n", id)
	case errors.Is(err, library.ErrValidation):
		fmt.Fprintln(s.out, "Please fill in all the fields.")
	default:
		return err
	}
	return nil
}

func (s *Shell) searchBooks() error {
	query, err := s.prompt("Enter a search term (title, author, or keyword): ")
	if err != nil {
		return err
	}

	books, err := s.cat.SearchBooks(query)
	switch {
	case errors.Is(err, library.ErrValidation):
		fmt.Fprintln(s.out, "Please enter a search term.")
		return nil
	case err != nil:
		return err
	}

	if len(books) == 0 {
		fmt.Fprintln(s.out, "No books found.")
		return nil
	}
	fmt.Fprintln(s.out, "Search Results:")
	for _, b := range books {
		fmt.Fprintf(s.out, "[%d] %s\n", b.ID, library.PrettyBook(b))
	}
	return nil
}

func (s *Shell) viewBook() error {
	id, ok, err := s.bookID("Enter the book ID to view details: ")
	if err != nil || !ok {
		return err
	}

	b, err := s.cat.GetBook(id)
	switch {
	case errors.Is(err, library.ErrNotFound):
		fmt.Fprintln(s.out, "Book not found.")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(s.out, "Title:", b.Title)
	fmt.Fprintln(s.out, "Author:", b.Author)
	fmt.Fprintln(s.out, "Publication Date:", b.PublicationDate)
	fmt.Fprintln(s.out, "Keywords:", b.Keywords)
	return nil
}

func (s *Shell) borrowBook() error {
	userID, err := s.session.RequireUser()
	if err != nil {
		fmt.Fprintln(s.out, "Please log in to borrow a book.")
		return nil
	}
	bookID, ok, err := s.bookID("Enter the book ID to borrow: ")
	if err != nil || !ok {
		return err
	}

	_, err = s.cat.BorrowBook(userID, bookID)
	switch {
	case err == nil:
		fmt.Fprintln(s.out, "Book borrowed successfully.")
	case errors.Is(err, library.ErrNotFound):
		fmt.Fprintln(s.out, "Book not found.")
	default:
		return err
	}
	return nil
}

func (s *Shell) returnBook() error {
	userID, err := s.session.RequireUser()
	if err != nil {
		fmt.Fprintln(s.out, "Please log in to return a book.")
		return nil
	}
	bookID, ok, err := s.bookID("Enter the book ID to return: ")
	if err != nil || !ok {
		return err
	}

	_, err = s.cat.ReturnBook(userID, bookID)
	switch {
	case err == nil:
		fmt.Fprintln(s.out, "Book returned successfully.")
	case errors.Is(err, library.ErrNotFound):
		fmt.Fprintln(s.out, "You haven't borrowed this book or it has already been returned.")
	default:
		return err
	}
	return nil
}

// ------------------ Input ------------------

func (s *Shell) prompt(label string) (string, error) {
	line, err := s.line(label)
	return strings.TrimSpace(line), err
}

// line returns the next input line with only its line ending removed.
func (s *Shell) line(label string) (string, error) {
	fmt.Fprint(s.out, label)
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSuffix(s.sc.Text(), "\r"), nil
}

// bookID reads an id. A non-numeric answer cannot name any book, so it is
// reported as not found and ok is false.
func (s *Shell) bookID(label string) (id int64, ok bool, err error) {
	raw, err := s.prompt(label)
	if err != nil {
		return 0, false, err
	}
	id, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		fmt.Fprintln(s.out, "Book not found.")
		return 0, false, nil
	}
	return id, true, nil
}

// password reads without echo when input is a terminal, otherwise as a line.
// Surrounding whitespace is part of the password.
func (s *Shell) password(label string) (string, error) {
	f, ok := s.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return s.line(label)
	}
	fmt.Fprint(s.out, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(s.out) // Add newline after password input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
