// Package console attaches the local terminal to a remote console: it logs
// in, picks or creates a console, locates its socket backend, dials it, runs
// the handshake and then hands the socket to a terminal session.
package console

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"anywhere-shell/pkg/client"
	"anywhere-shell/pkg/endpoint"
	"anywhere-shell/pkg/handshake"
	"anywhere-shell/pkg/socket"
	"anywhere-shell/pkg/terminal"
)

// Browser is the HTTP side of the service: the web session and the consoles
// API. *client.Client implements it.
type Browser interface {
	Login(ctx context.Context, password string) error
	SessionCookie() (string, error)
	ListConsoles(ctx context.Context) ([]client.Console, error)
	GetConsole(ctx context.Context, id int) (*client.Console, error)
	CreateConsole(ctx context.Context, executable string) (*client.Console, error)
	FetchFrame(ctx context.Context, frameURL string) (string, error)
	URL(path string) string
}

// Dialer opens the console socket.
type Dialer interface {
	Dial(ctx context.Context, url string) (socket.Conn, error)
}

// WebSocketDialer adapts *socket.Dialer to Dialer.
type WebSocketDialer struct {
	Dialer *socket.Dialer
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (socket.Conn, error) {
	conn, err := d.Dialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options select the console and tune the session.
type Options struct {
	Password string

	// ConsoleID attaches to a specific console. Zero picks the first
	// existing console, creating one when there is none.
	ConsoleID int

	// ForceNew always creates a new console.
	ForceNew bool

	// Executable for newly created consoles; empty means bash.
	Executable string

	// Commands are sent once the console is ready.
	Commands []string

	ReplayTimeout time.Duration
	Prompt        string
	ExitKeyword   string
	Grace         time.Duration
}

// Runner drives one console session end to end.
type Runner struct {
	browser Browser
	dialer  Dialer

	Stdin  io.Reader
	Stdout io.Writer

	// Rand picks the socket URL's server and session tokens; nil uses the
	// global source.
	Rand *rand.Rand

	// Now overrides the clock printed on connection.
	Now func() time.Time
}

// New creates a Runner on the process's stdin and stdout.
func New(browser Browser, dialer Dialer) *Runner {
	return &Runner{
		browser: browser,
		dialer:  dialer,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	}
}

// Run performs the whole session. It returns nil when the operator exits,
// the console closes or ctx is cancelled once a socket is open.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	logger := log.With().Str("session", uuid.NewString()).Logger()

	if err := r.browser.Login(ctx, opts.Password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	cookie, err := r.browser.SessionCookie()
	if err != nil {
		return err
	}

	console, err := r.selectConsole(ctx, opts)
	if err != nil {
		return err
	}
	logger = logger.With().Int("console_id", console.ID).Logger()
	fmt.Fprintf(r.Stdout, "Console on HTTP URL: %s\n", r.browser.URL(console.URL))

	html, err := r.browser.FetchFrame(ctx, console.FrameURL)
	if err != nil {
		return err
	}
	wssURL, err := endpoint.Resolve(html, r.Rand)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "Console on WSS URL: %s\n\n", wssURL)

	logger.Debug().Str("url", wssURL).Msg("Dialing console socket")
	conn, err := r.dialer.Dial(ctx, wssURL)
	if err != nil {
		return fmt.Errorf("failed to connect to console: %w", err)
	}
	defer conn.Close()

	seq := handshake.New(conn, r.Stdout)
	seq.ReplayTimeout = opts.ReplayTimeout
	if r.Now != nil {
		seq.Now = r.Now
	}

	err = seq.Run(ctx, handshake.Params{
		SessionCookie: cookie,
		ConsoleID:     console.ID,
		Commands:      opts.Commands,
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug().Stringer("state", seq.State()).Msg("Interrupted during handshake")
			terminal.CloseAndDrain(conn, r.Stdout)
			return nil
		}
		return fmt.Errorf("handshake failed: %w", err)
	}
	logger.Info().Int("receives", seq.Receives()).Msg("Console ready")

	return r.runSession(ctx, conn, opts, logger)
}

func (r *Runner) runSession(ctx context.Context, conn socket.Conn, opts Options, logger zerolog.Logger) error {
	session := terminal.NewSessionWithIO(conn, r.Stdin, r.Stdout)
	if opts.Prompt != "" {
		session.Prompt = opts.Prompt
	}
	if opts.ExitKeyword != "" {
		session.ExitKeyword = opts.ExitKeyword
	}
	if opts.Grace > 0 {
		session.Grace = opts.Grace
	}

	err := session.Run(ctx)
	logger.Info().Err(err).Msg("Session ended")
	return err
}

// selectConsole resolves which console to attach to.
func (r *Runner) selectConsole(ctx context.Context, opts Options) (*client.Console, error) {
	if opts.ConsoleID > 0 {
		console, err := r.browser.GetConsole(ctx, opts.ConsoleID)
		if err != nil {
			return nil, fmt.Errorf("console %d: %w", opts.ConsoleID, err)
		}
		return console, nil
	}

	if !opts.ForceNew {
		consoles, err := r.browser.ListConsoles(ctx)
		if err != nil {
			return nil, err
		}
		if len(consoles) > 0 {
			return &consoles[0], nil
		}
		fmt.Fprintln(r.Stdout, "No console available. Creating new..")
	}

	return r.browser.CreateConsole(ctx, opts.Executable)
}
