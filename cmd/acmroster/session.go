package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mgrist/acm-roster/chapter"
	sqliteadapter "github.com/mgrist/acm-roster/internal/adapter/driven/sqlite"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// openJournal opens the SQLite refresh journal when ACMROSTER_JOURNAL_PATH is
// set. The returned close function is never nil.
func (a *app) openJournal(ctx context.Context) (chapter.RefreshJournal, func(), error) {
	if a.cfg.JournalPath == "" {
		return nil, func() {}, nil
	}

	db, err := sqliteadapter.OpenJournal(ctx, a.cfg.JournalPath)
	if err != nil {
		return nil, nil, err
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			a.logger.Error("error closing journal", "error", err)
		}
	}
	return sqliteadapter.NewJournalRepo(db), closeDB, nil
}

// newChapter builds an unauthenticated Chapter from the configuration.
func (a *app) newChapter(journal chapter.RefreshJournal) (*chapter.Chapter, error) {
	opts := []chapter.Option{
		chapter.WithBaseURL(a.cfg.BaseURL),
		chapter.WithLoginPath(a.cfg.LoginPath),
		chapter.WithExportPath(a.cfg.ExportPath),
		chapter.WithTimeout(a.cfg.RequestTimeout),
		chapter.WithLogger(a.logger),
	}
	if journal != nil {
		opts = append(opts, chapter.WithJournal(journal))
	}
	return chapter.New(opts...)
}

// connect opens the journal, builds a Chapter and logs in. The returned close
// function releases the journal.
func (a *app) connect(cmd *cobra.Command) (*chapter.Chapter, func(), error) {
	ctx := cmd.Context()

	journal, closeJournal, err := a.openJournal(ctx)
	if err != nil {
		return nil, nil, err
	}

	c, err := a.newChapter(journal)
	if err != nil {
		closeJournal()
		return nil, nil, err
	}

	username, password, err := a.credentials(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		closeJournal()
		return nil, nil, err
	}

	if _, err := c.Login(ctx, username, password); err != nil {
		closeJournal()
		return nil, nil, err
	}
	return c, closeJournal, nil
}

// credentials returns the configured username and password, prompting on w
// for whichever is missing.
func (a *app) credentials(r io.Reader, w io.Writer) (string, string, error) {
	username := a.cfg.Username
	if username == "" {
		if _, err := fmt.Fprint(w, "Panel username: "); err != nil {
			return "", "", err
		}
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", "", fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	password := a.cfg.Password
	if password == "" {
		if _, err := fmt.Fprint(w, "Panel password: "); err != nil {
			return "", "", err
		}
		pw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", "", fmt.Errorf("reading password (set ACMROSTER_PASSWORD when not on a terminal): %w", err)
		}
		password = string(pw)
	}

	return username, password, nil
}
