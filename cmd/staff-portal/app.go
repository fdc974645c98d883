package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hospital/staffportal/internal/config"
	"github.com/hospital/staffportal/internal/domain/account"
	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/platform/dialog"
	"github.com/hospital/staffportal/internal/portal/action"
)

const userAgent = "staff-portal/1.0"

// app carries what every command needs: configuration, the logger, the
// session store and the terminal streams.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	envFile string
	baseURL string
	verbose bool

	cfg    *config.Config
	logger zerolog.Logger
	store  auth.Store
	term   *dialog.Terminal
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, logger: zerolog.Nop()}
}

func (a *app) init() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(a.baseURL, "/")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Level()
	if a.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(a.errOut).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: a.errOut}).With().Timestamp().Logger()
	}
	a.logger = logger.Level(level)

	if a.store == nil {
		path, err := cfg.SessionPath()
		if err != nil {
			return err
		}
		a.store = auth.NewFileStore(path)
	}
	a.term = dialog.NewTerminal(a.in, a.out)
	return nil
}

// public returns a client that sends no bearer token.
func (a *app) public() (*apiclient.Client, error) {
	return apiclient.New(a.cfg.BaseURL,
		apiclient.WithTimeout(a.cfg.HTTPTimeout),
		apiclient.WithLogger(a.logger),
		apiclient.WithUserAgent(userAgent),
	)
}

// manager returns the session manager of realm, able to refresh expired
// tokens.
func (a *app) manager(realm auth.Realm) (*auth.Manager, *account.API, error) {
	pub, err := a.public()
	if err != nil {
		return nil, nil, err
	}
	accounts := account.NewAPI(pub)
	m := auth.NewManager(a.store, realm, auth.WithManagerLogger(a.logger), auth.WithRefresher(accounts))
	return m, accounts, nil
}

// client returns an authenticated client for realm. It fails early when
// nobody is logged in to that realm.
func (a *app) client(realm auth.Realm) (*apiclient.Client, error) {
	m, _, err := a.manager(realm)
	if err != nil {
		return nil, err
	}
	if _, err := m.Session(); err != nil {
		return nil, a.authHint(realm, err)
	}
	pub, err := a.public()
	if err != nil {
		return nil, err
	}
	return pub.WithTokens(m), nil
}

// authHint turns session errors into a message telling the user how to
// log in again. Other errors pass through.
func (a *app) authHint(realm auth.Realm, err error) error {
	if err == nil {
		return nil
	}
	if auth.IsAuthError(err) || errors.Is(err, apiclient.ErrUnauthorized) {
		return fmt.Errorf("%w\nVui lòng đăng nhập lại: staff-portal login --realm %s", err, realm)
	}
	return err
}

// dialog answers from the command's --yes/--note flags first and asks on
// the terminal for the rest.
func (a *app) dialog(f *actionFlags) dialog.Dialog {
	p := &dialog.Preset{AssumeYes: f.yes, Fallback: a.term}
	if f.note != "" {
		p.Answers = map[string]string{"*": f.note}
	}
	return p
}

// reportedError is an action failure the dialog has already shown.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// runAction dispatches spec and maps the outcome to the command's result.
// A declined confirmation is not an error.
func (a *app) runAction(ctx context.Context, realm auth.Realm, f *actionFlags, spec action.Spec, refresh action.Refresher) error {
	d := action.NewDispatcher(a.dialog(f), refresh, a.logger)
	outcome, err := d.Run(ctx, spec)
	switch outcome {
	case action.Succeeded:
		return nil
	case action.Cancelled:
		if err == nil || errors.Is(err, action.ErrCancelled) {
			fmt.Fprintln(a.out, "Đã hủy thao tác")
			return nil
		}
		return err
	default:
		if err == nil {
			err = fmt.Errorf("%s %s", spec.Name, outcome)
		}
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return a.authHint(realm, err)
		}
		return &reportedError{err: err}
	}
}
