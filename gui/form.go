// Package gui is the desktop front-end: one fixed-size window of labelled
// entries with a button per operation. Each button builds a request value
// and calls the Catalog synchronously on the UI thread.
package gui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"library-catalog/library"
)

const (
	windowWidth  = 460
	windowHeight = 520
)

// Form owns the window, its entries and the window's login session.
type Form struct {
	app     fyne.App
	win     fyne.Window
	cat     library.Catalog
	session library.Session

	username, password            *widget.Entry
	title, author, date, keywords *widget.Entry
	query, bookID                 *widget.Entry

	buttons map[string]*widget.Button

	// notify reports one result to the user; a modal dialog by default.
	notify func(title, message string)
	err    error
}

func New(a fyne.App, cat library.Catalog) *Form {
	f := &Form{
		app:      a,
		cat:      cat,
		username: widget.NewEntry(),
		password: widget.NewPasswordEntry(),
		title:    widget.NewEntry(),
		author:   widget.NewEntry(),
		date:     widget.NewEntry(),
		keywords: widget.NewEntry(),
		query:    widget.NewEntry(),
		bookID:   widget.NewEntry(),
		buttons:  make(map[string]*widget.Button),
	}
	f.keywords.SetPlaceHolder("comma-separated")
	f.query.SetPlaceHolder("title, author, or keyword")

	f.win = a.NewWindow("Library Management System")
	f.notify = func(title, message string) {
		dialog.ShowInformation(title, message, f.win)
	}

	form := widget.NewForm(
		widget.NewFormItem("Username", f.username),
		widget.NewFormItem("Password", f.password),
		widget.NewFormItem("Title", f.title),
		widget.NewFormItem("Author", f.author),
		widget.NewFormItem("Publication Date", f.date),
		widget.NewFormItem("Keywords", f.keywords),
		widget.NewFormItem("Search Term", f.query),
		widget.NewFormItem("Book ID", f.bookID),
	)

	actions := []struct {
		label string
		run   func() error
	}{
		{"Register", f.register},
		{"Login", f.login},
		{"Add Book", f.addBook},
		{"Search", f.search},
		{"View Book", f.viewBook},
		{"Borrow", f.borrowBook},
		{"Return", f.returnBook},
	}
	grid := container.NewGridWithColumns(4)
	for _, act := range actions {
		run := act.run
		b := widget.NewButton(act.label, func() { f.dispatch(run) })
		f.buttons[act.label] = b
		grid.Add(b)
	}

	f.win.SetContent(container.NewVBox(form, grid))
	f.win.Resize(fyne.NewSize(windowWidth, windowHeight))
	f.win.SetFixedSize(true)
	return f
}

// Run shows the window and blocks until it closes. It returns the storage
// failure that closed it, if any.
func (f *Form) Run() error {
	f.win.ShowAndRun()
	return f.err
}

func (f *Form) Session() *library.Session { return &f.session }

// Err reports the storage failure that stopped the form.
func (f *Form) Err() error { return f.err }

// dispatch runs one action. Anything outside the error taxonomy is a
// storage failure: it is shown once and the application quits.
func (f *Form) dispatch(run func() error) {
	if f.err != nil {
		return
	}
	if err := run(); err != nil {
		f.err = err
		dialog.ShowError(err, f.win)
		f.app.Quit()
	}
}

func (f *Form) credentials() library.Credentials {
	return library.Credentials{
		Username: strings.TrimSpace(f.username.Text),
		Password: f.password.Text,
	}
}

func (f *Form) register() error {
	_, err := f.cat.RegisterUser(f.credentials())
	switch {
	case err == nil:
		f.notify("Register", "User registration successful.")
	case errors.Is(err, library.ErrValidation):
		f.notify("Register", "Please fill in all the fields.")
	case errors.Is(err, library.ErrUsernameTaken):
		f.notify("Register", "Username already taken.")
	default:
		return err
	}
	return nil
}

// login keeps any previous session when the attempt fails.
func (f *Form) login() error {
	id, err := f.cat.Authenticate(f.credentials())
	switch {
	case err == nil:
		f.session.Login(id)
		f.notify("Login", "Login successful.")
	case errors.Is(err, library.ErrValidation):
		f.notify("Login", "Please fill in all the fields.")
	case errors.Is(err, library.ErrNotFound):
		f.notify("Login", "Invalid username or password.")
	default:
		return err
	}
	return nil
}

func (f *Form) addBook() error {
	id, err := f.cat.AddBook(library.NewBook{
		Title:           strings.TrimSpace(f.title.Text),
		Author:          strings.TrimSpace(f.author.Text),
		PublicationDate: strings.TrimSpace(f.date.Text),
		Keywords:        strings.TrimSpace(f.keywords.Text),
	})
	switch {
	case err == nil:
		f.notify("Add Book", fmt.Sprintf("Book added to the library with ID %d.", id))
	case errors.Is(err, library.ErrValidation):
		f.notify("Add Book", "Please fill in all the fields.")
	default:
		return err
	}
	return nil
}

func (f *Form) search() error {
	books, err := f.cat.SearchBooks(strings.TrimSpace(f.query.Text))
	switch {
	case errors.Is(err, library.ErrValidation):
		f.notify("Search", "Please enter a search term.")
		return nil
	case err != nil:
		return err
	}
	if len(books) == 0 {
		f.notify("Search", "No books found.")
		return nil
	}
	f.showResults(books)
	return nil
}

// showResults opens a sub-window listing one line per book.
func (f *Form) showResults(books []*library.Book) {
	lines := make([]string, len(books))
	for i, b := range books {
		lines[i] = fmt.Sprintf("[%d] %s", b.ID, library.PrettyBook(b))
	}
	text := widget.NewLabel(strings.Join(lines, "\n"))
	text.Wrapping = fyne.TextWrapWord

	w := f.app.NewWindow("Search Results")
	w.SetContent(container.NewVScroll(text))
	w.Resize(fyne.NewSize(windowWidth, windowHeight/2))
	w.Show()
}

func (f *Form) viewBook() error {
	id, ok := f.parseBookID("View Book")
	if !ok {
		return nil
	}
	b, err := f.cat.GetBook(id)
	switch {
	case errors.Is(err, library.ErrNotFound):
		f.notify("View Book", "Book not found.")
		return nil
	case err != nil:
		return err
	}
	f.notify("Book Details", fmt.Sprintf("Title: %s\nAuthor: %s\nPublication Date: %s\nKeywords: %s",
		b.Title, b.Author, b.PublicationDate, b.Keywords))
	return nil
}

func (f *Form) borrowBook() error {
	userID, err := f.session.RequireUser()
	if err != nil {
		f.notify("Borrow", "Please log in to borrow a book.")
		return nil
	}
	bookID, ok := f.parseBookID("Borrow")
	if !ok {
		return nil
	}
	_, err = f.cat.BorrowBook(userID, bookID)
	switch {
	case err == nil:
		f.notify("Borrow", "Book borrowed successfully.")
	case errors.Is(err, library.ErrNotFound):
		f.notify("Borrow", "Book not found.")
	default:
		return err
	}
	return nil
}

func (f *Form) returnBook() error {
	userID, err := f.session.RequireUser()
	if err != nil {
		f.notify("Return", "Please log in to return a book.")
		return nil
	}
	bookID, ok := f.parseBookID("Return")
	if !ok {
		return nil
	}
	_, err = f.cat.ReturnBook(userID, bookID)
	switch {
	case err == nil:
		f.notify("Return", "Book returned successfully.")
	case errors.Is(err, library.ErrNotFound):
		f.notify("Return", "You haven't borrowed this book or it has already been returned.")
	default:
		return err
	}
	return nil
}

// parseBookID reads the Book ID entry. A non-numeric value cannot name any
// book, so it is reported as not found.
func (f *Form) parseBookID(title string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(f.bookID.Text), 10, 64)
	if err != nil {
		f.notify(title, "Book not found.")
		return 0, false
	}
	return id, true
}
