// Package handshake drives the ordered exchange that binds a freshly opened
// console socket to an authenticated console and waits until the console
// accepts input.
//
// The exchange is:
//
//  1. receive the open marker
//  2. send the authentication frame (session cookie + console id)
//  3. receive; a "tarpit" payload costs one extra receive
//  4. receive the history frame; an empty history means the console is cold
//     starting, so frames are discarded until one starts with the ready prefix
//  5. ready: announce the connection
//  6. send the startup commands
//
// Every step is strictly sequential and nothing is retried: a failure leaves
// the socket unusable and is returned to the caller.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"anywhere-shell/pkg/frame"
	"anywhere-shell/pkg/socket"
)

// State is the position of a Sequencer in the exchange.
type State int

const (
	StateAwaitingOpen State = iota
	StateAwaitingTarpitOrHistory
	StateTarpitWait
	StateAwaitingHistoryOrReplay
	StateReplayWait
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAwaitingOpen:
		return "awaiting-open"
	case StateAwaitingTarpitOrHistory:
		return "awaiting-tarpit-or-history"
	case StateTarpitWait:
		return "tarpit-wait"
	case StateAwaitingHistoryOrReplay:
		return "awaiting-history-or-replay"
	case StateReplayWait:
		return "replay-wait"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Params identify the console the socket is bound to.
type Params struct {
	SessionCookie string
	ConsoleID     int

	// Commands are sent once the console is ready.
	Commands []string
}

// Sequencer runs the handshake once on one socket.
type Sequencer struct {
	conn socket.Conn
	out  io.Writer

	// Now returns the time printed on connection. Defaults to time.Now.
	Now func() time.Time

	// ReplayTimeout bounds the cold-start wait. Zero waits until the
	// console is ready or the socket closes.
	ReplayTimeout time.Duration

	state    State
	receives int
}

// New creates a Sequencer that talks on conn and reports to out.
func New(conn socket.Conn, out io.Writer) *Sequencer {
	return &Sequencer{
		conn: conn,
		out:  out,
		Now:  time.Now,
	}
}

// State returns the current state.
func (s *Sequencer) State() State {
	return s.state
}

// Receives returns the number of frames received so far, including the
// open marker.
func (s *Sequencer) Receives() int {
	return s.receives
}

// Run executes the handshake. It returns nil once the console is ready and
// the startup commands are sent.
func (s *Sequencer) Run(ctx context.Context, p Params) error {
	logger := log.With().Int("console_id", p.ConsoleID).Logger()

	s.state = StateAwaitingOpen
	if _, err := s.receive(ctx); err != nil {
		return err
	}

	auth, err := frame.AuthFrame(p.SessionCookie, p.ConsoleID)
	if err != nil {
		return err
	}
	if err := s.send(ctx, auth); err != nil {
		return err
	}
	s.transition(logger, StateAwaitingTarpitOrHistory)

	second, err := s.receive(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(second, frame.TarpitMarker) {
		s.transition(logger, StateTarpitWait)
		fmt.Fprintln(s.out, "In Tarpit. Starting Slowly...")
		if _, err := s.receive(ctx); err != nil {
			return err
		}
	}

	s.transition(logger, StateAwaitingHistoryOrReplay)
	history, err := s.receive(ctx)
	if err != nil {
		return err
	}
	if history == frame.EmptyHistory {
		s.transition(logger, StateReplayWait)
		if err := s.awaitReady(ctx); err != nil {
			return err
		}
	}

	s.transition(logger, StateReady)
	fmt.Fprintln(s.out, "Connected Successfully. (Type `bye` to exit)")
	fmt.Fprintf(s.out, "%s  ", s.Now().UTC().Format("15:04"))

	return s.sendCommands(ctx, p.Commands)
}

// awaitReady discards frames until the console sends its first prompt.
func (s *Sequencer) awaitReady(ctx context.Context) error {
	if s.ReplayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ReplayTimeout)
		defer cancel()
	}

	for {
		data, err := s.receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("console not ready after %s: %w", s.ReplayTimeout, err)
			}
			return err
		}
		if strings.HasPrefix(data, frame.ReadyPrefix) {
			return nil
		}
		log.Debug().Str("frame", data).Msg("Discarding frame while console starts")
	}
}

// sendCommands sends every command concurrently and waits for all of them.
func (s *Sequencer) sendCommands(ctx context.Context, commands []string) error {
	if len(commands) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, cmd := range commands {
		wg.Add(1)
		go func(cmd string) {
			defer wg.Done()
			if err := s.sendCommand(ctx, cmd); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(cmd)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (s *Sequencer) sendCommand(ctx context.Context, cmd string) error {
	data, err := frame.Encode(cmd)
	if err != nil {
		return err
	}
	return s.send(ctx, data)
}

func (s *Sequencer) receive(ctx context.Context) (string, error) {
	msg := s.conn.Receive(ctx)
	s.receives++

	if msg.Type != socket.MessageText {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &TransportError{Op: "receive", State: s.state, Err: ctxErr}
		}
		return "", &TransportError{Op: "receive", State: s.state, Message: msg.Type, Err: msg.Err}
	}

	log.Debug().Stringer("state", s.state).Str("frame", msg.Data).Msg("Handshake frame received")
	return msg.Data, nil
}

func (s *Sequencer) send(ctx context.Context, data string) error {
	if err := s.conn.SendText(ctx, data); err != nil {
		return &TransportError{Op: "send", State: s.state, Err: err}
	}
	return nil
}

func (s *Sequencer) transition(logger zerolog.Logger, next State) {
	logger.Debug().Stringer("from", s.state).Stringer("to", next).Msg("Handshake state change")
	s.state = next
}
