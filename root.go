package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-catalog/config"
	"library-catalog/library"
	"library-catalog/shell"
)

// app carries what the commands share: the resolved config and the single
// storage handle opened for this process.
type app struct {
	configFile string
	jsonOut    bool

	cfg *config.Config
	log *slog.Logger
	db  *library.Database
	mgr *library.LibraryManager
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "library",
		Short: "Personal library catalog",
		Long: `Keep a personal library catalog: register and log in, add and search
books, borrow and return them. Run without a subcommand for the menu shell.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
		RunE: func(cmd *cobra.Command, args []string) error {
			return shell.New(a.mgr, cmd.InOrStdin(), cmd.OutOrStdout()).Run()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./library.yaml if present)")
	pf.String("db", "", "path of the SQLite database file (default: library.db)")
	pf.String("driver", "", "SQLite driver: sqlite3 (cgo) or sqlite (pure Go)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.addBookCmd(),
		a.searchCmd(),
		a.viewCmd(),
		a.borrowCmd(),
		a.returnCmd(),
		a.loansCmd(),
		a.guiCmd(),
	)
	return root
}

// open loads config and opens the catalog before any command runs, except
// those that only print help or completion scripts.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	if !needsCatalog(cmd) {
		return nil
	}
	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.log = cfg.NewLogger(cmd.ErrOrStderr())

	db, err := library.NewDatabase(cfg.Driver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.mgr = library.NewLibraryManager(db, library.Options{Logger: a.log, HashCost: cfg.BcryptCost})
	a.log.Debug("catalog opened", "db_path", cfg.DBPath, "driver", cfg.Driver)
	return nil
}

func needsCatalog(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// printJSON writes v indented when --json is set and reports whether it did.
func (a *app) printJSON(w io.Writer, v any) (bool, error) {
	if !a.jsonOut {
		return false, nil
	}
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, err
	}
	_, err = fmt.Fprintln(w, string(b))
	return true, err
}

// readPassword prompts without echo on a terminal, otherwise reads a line.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return line, nil
}

// readLine reads up to a newline without buffering past it. Only the line
// ending is removed.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSuffix(sb.String(), "\r"), nil
}
