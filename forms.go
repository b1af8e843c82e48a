package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"library-catalog/library"
)

// The form front-end: each subcommand's flags are one form's fields. The
// command builds the request value and dispatches it synchronously to the
// same Catalog the menu shell uses.

type credentialFlags struct {
	username string
	password string
}

func (c *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&c.password, "password", "p", "", "password (prompted if omitted)")
}

func (c *credentialFlags) credentials(cmd *cobra.Command) (library.Credentials, error) {
	creds := library.Credentials{Username: c.username, Password: c.password}
	if creds.Password == "" {
		pw, err := readPassword(cmd, "Password: ")
		if err != nil {
			return creds, err
		}
		creds.Password = pw
	}
	return creds, nil
}

// login authenticates within this process and returns the session it opened.
func (a *app) login(cmd *cobra.Command, c *credentialFlags) (*library.Session, error) {
	creds, err := c.credentials(cmd)
	if err != nil {
		return nil, err
	}
	id, err := a.mgr.Authenticate(creds)
	if errors.Is(err, library.ErrNotFound) {
		return nil, fmt.Errorf("invalid username or password: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s := &library.Session{}
	s.Login(id)
	return s, nil
}

func (a *app) registerCmd() *cobra.Command {
	var c credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := c.credentials(cmd)
			if err != nil {
				return err
			}
			id, err := a.mgr.RegisterUser(creds)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), map[string]int64{"user_id": id}); ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User registration successful. (ID: %d)\n", id)
			return nil
		},
	}
	c.bind(cmd)
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var c credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.login(cmd, &c)
			if err != nil {
				return err
			}
			id, _ := s.UserID()
			if ok, err := a.printJSON(cmd.OutOrStdout(), map[string]int64{"user_id": id}); ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Login successful. (ID: %d)\n", id)
			return nil
		},
	}
	c.bind(cmd)
	return cmd
}

func (a *app) addBookCmd() *cobra.Command {
	var b library.NewBook
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a book to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.mgr.AddBook(b)
			if err != nil {
				return fmt.Errorf("add book: %w", err)
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), map[string]int64{"book_id": id}); ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Book added to the library with ID %d.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&b.Title, "title", "", "title")
	cmd.Flags().StringVar(&b.Author, "author", "", "author")
	cmd.Flags().StringVar(&b.PublicationDate, "date", "", "publication date")
	cmd.Flags().StringVar(&b.Keywords, "keywords", "", "comma-separated keywords")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search TERM",
		Short: "Find books whose title, author or keywords contain TERM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.mgr.SearchBooks(args[0])
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), books); ok {
				return err
			}
			out := cmd.OutOrStdout()
			if len(books) == 0 {
				fmt.Fprintln(out, "No books found.")
				return nil
			}
			fmt.Fprintln(out, "Search Results:")
			for _, b := range books {
				fmt.Fprintf(out, "[%d] %s\n", b.ID, library.PrettyBook(b))
			}
			return nil
		},
	}
}

func (a *app) viewCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show one book's details",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.mgr.GetBook(id)
			if err != nil {
				return fmt.Errorf("view book: %w", err)
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), b); ok {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Title:", b.Title)
			fmt.Fprintln(out, "Author:", b.Author)
			fmt.Fprintln(out, "Publication Date:", b.PublicationDate)
			fmt.Fprintln(out, "Keywords:", b.Keywords)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "book ID")
	return cmd
}

func (a *app) borrowCmd() *cobra.Command {
	var (
		c      credentialFlags
		bookID int64
	)
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Borrow a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.login(cmd, &c)
			if err != nil {
				return err
			}
			userID, err := s.RequireUser()
			if err != nil {
				return err
			}
			loanID, err := a.mgr.BorrowBook(userID, bookID)
			if err != nil {
				return fmt.Errorf("borrow: %w", err)
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), map[string]int64{"loan_id": loanID}); ok {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Book borrowed successfully.")
			return nil
		},
	}
	c.bind(cmd)
	cmd.Flags().Int64Var(&bookID, "id", 0, "book ID")
	return cmd
}

func (a *app) returnCmd() *cobra.Command {
	var (
		c      credentialFlags
		bookID int64
	)
	cmd := &cobra.Command{
		Use:   "return",
		Short: "Return a borrowed book",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.login(cmd, &c)
			if err != nil {
				return err
			}
			userID, err := s.RequireUser()
			if err != nil {
				return err
			}
			loanID, err := a.mgr.ReturnBook(userID, bookID)
			if err != nil {
				return fmt.Errorf("return: %w", err)
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), map[string]int64{"loan_id": loanID}); ok {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Book returned successfully.")
			return nil
		},
	}
	c.bind(cmd)
	cmd.Flags().Int64Var(&bookID, "id", 0, "book ID")
	return cmd
}

func (a *app) loansCmd() *cobra.Command {
	var c credentialFlags
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List the books you have not returned",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.login(cmd, &c)
			if err != nil {
				return err
			}
			userID, err := s.RequireUser()
			if err != nil {
				return err
			}
			loans, err := a.mgr.OpenLoans(userID)
			if err != nil {
				return fmt.Errorf("list loans: %w", err)
			}
			if ok, err := a.printJSON(cmd.OutOrStdout(), loans); ok {
				return err
			}
			out := cmd.OutOrStdout()
			if len(loans) == 0 {
				fmt.Fprintln(out, "No open loans.")
				return nil
			}
			for _, l := range loans {
				title := "?"
				if b, err := a.mgr.GetBook(l.BookID); err == nil {
					title = b.Title
				}
				fmt.Fprintf(out, "[%d] %s (borrowed %s)\n", l.BookID, title, l.BorrowDate)
			}
			return nil
		},
	}
	c.bind(cmd)
	return cmd
}
