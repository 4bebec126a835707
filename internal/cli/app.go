// Package cli is the interactive FinTrack client. It keeps the session in
// an authsdk.AuthState backed by cookie, SQLite and in-memory storage, so a
// "remember me" login survives restarts.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"

	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk/storage"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
	"golang.org/x/term"
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

type App struct {
	client *authsdk.Client
	state  *authsdk.AuthState
	store  *storage.Adapter
	logger *slog.Logger

	in  *bufio.Reader
	out io.Writer

	// readSecret prompts for input that must not echo.
	readSecret func(prompt string) (string, error)

	commands map[string]command
	closers  []io.Closer
}

// NewApp wires the client, storage and session state, and restores any
// saved session.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	logger := slogx.New(slogx.Config{
		Service: "fintrack",
		Level:   cfg.LogLevel,
		Format:  "text",
		Output:  os.Stderr,
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := authsdk.NewClient(cfg.ServerURL, authsdk.WithHTTPClient(&http.Client{
		Jar:     jar,
		Timeout: cfg.Timeout,
	}))

	cookies, err := storage.NewCookieBackend(jar, cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DataFile), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	persistent, err := storage.OpenSQLite(ctx, cfg.DataFile)
	if err != nil {
		return nil, err
	}

	store := storage.NewAdapter(cookies, persistent, storage.NewMemoryBackend(), logger)
	a := newApp(client, store, logger, os.Stdin, os.Stdout,
		authsdk.WithMinLoading(cfg.MinLoading))
	a.closers = append(a.closers, persistent)

	a.state.Restore(ctx)
	return a, nil
}

func newApp(client *authsdk.Client, store *storage.Adapter, logger *slog.Logger, in io.Reader, out io.Writer, opts ...authsdk.StateOption) *App {
	opts = append(opts, authsdk.WithLogger(logger))
	a := &App{
		client: client,
		state:  authsdk.NewAuthState(client, store, opts...),
		store:  store,
		logger: logger,
		in:     bufio.NewReader(in),
		out:    out,
	}
	a.readSecret = a.promptHidden
	a.commands = commandTable()
	return a
}

func (a *App) Close() error {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// prompt prints label and reads one trimmed line.
func (a *App) prompt(label string) (string, error) {
	a.printf("%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptHidden reads without echo when stdin is a terminal, and falls back
// to a plain line read when input is piped.
func (a *App) promptHidden(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.prompt(label)
	}
	a.printf("%s: ", label)
	b, err := readPassword(fd)
	a.printf("\n")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// status is shown in the prompt.
func (a *App) status() string {
	switch a.state.State() {
	case authsdk.StateAuthenticated:
		u, _ := a.state.User()
		return u.Email
	case authsdk.StatePendingTwoFactor:
		return "2fa"
	default:
		return "signed out"
	}
}
