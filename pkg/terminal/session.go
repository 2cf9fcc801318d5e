package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"anywhere-shell/pkg/frame"
	"anywhere-shell/pkg/socket"
)

const (
	// DefaultPrompt is printed before each input line.
	DefaultPrompt = "$ "

	// DefaultExitKeyword ends the session when typed on its own line.
	DefaultExitKeyword = "bye"

	// DefaultGrace is how long the output loop lingers after the socket
	// closes, so a pending input-loop shutdown is observed first.
	DefaultGrace = 50 * time.Millisecond
)

// Session bridges line-based operator input and console output over one
// socket.
//
// Two goroutines share the socket:
//   - the input loop reads lines, sends them as frames and closes the socket
//     when the exit keyword is typed
//   - the output loop receives frames, strips colour sequences and writes the
//     text to the terminal
//
// Cancelling the context passed to Run is the interrupt: the socket is
// closed, drained once and Run returns without further waiting.
type Session struct {
	conn   socket.Conn
	stdin  io.Reader
	stdout *syncWriter

	Prompt      string
	ExitKeyword string
	Grace       time.Duration

	linesOnce sync.Once
	lines     chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewSession creates a session on conn using os.Stdin and os.Stdout.
func NewSession(conn socket.Conn) *Session {
	return NewSessionWithIO(conn, os.Stdin, os.Stdout)
}

// NewSessionWithIO creates a session with custom I/O streams.
func NewSessionWithIO(conn socket.Conn, stdin io.Reader, stdout io.Writer) *Session {
	return &Session{
		conn:        conn,
		stdin:       stdin,
		stdout:      &syncWriter{w: stdout},
		Prompt:      DefaultPrompt,
		ExitKeyword: DefaultExitKeyword,
		Grace:       DefaultGrace,
	}
}

// Run starts both loops and blocks until both have finished. It waits for
// the input loop first, then the output loop.
//
// Run returns nil when the session ends through the exit keyword, end of
// input, a remote close or an interrupt. It returns an error when a frame
// cannot be decoded or an input line cannot be sent.
func (s *Session) Run(ctx context.Context) error {
	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	stopWatch := context.AfterFunc(ctx, func() {
		log.Debug().Msg("Interrupt received, closing socket")
		_ = s.conn.Close()
	})
	defer stopWatch()

	inputDone := make(chan error, 1)
	outputDone := make(chan error, 1)

	go func() {
		inputDone <- s.inputLoop(loopCtx)
	}()
	go func() {
		err := s.outputLoop(ctx)
		// Output ending means the socket is gone; stop waiting for input.
		cancelLoops()
		outputDone <- err
	}()

	inputErr := <-inputDone
	if inputErr != nil && ctx.Err() == nil && !errors.Is(inputErr, context.Canceled) {
		// The output loop only ends with the socket.
		_ = s.conn.Close()
	}
	outputErr := <-outputDone

	if ctx.Err() != nil {
		CloseAndDrain(s.conn, s.stdout)
		return nil
	}

	if errors.Is(inputErr, context.Canceled) {
		inputErr = nil
	}
	return errors.Join(outputErr, inputErr)
}

// inputLoop reads operator lines and forwards them until the exit keyword,
// end of input or cancellation.
func (s *Session) inputLoop(ctx context.Context) error {
	lines := s.readLines()

	for {
		s.stdout.WriteString(s.Prompt)

		var res lineResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res = <-lines:
		}

		if res.err != nil {
			if !errors.Is(res.err, io.EOF) {
				return fmt.Errorf("failed to read input: %w", res.err)
			}
			// End of input ends the session like the exit keyword.
			res.line = s.ExitKeyword
		}

		if res.line == s.ExitKeyword {
			s.stdout.WriteString("\nExiting...\n")
			if err := s.conn.Close(); err != nil {
				log.Debug().Err(err).Msg("Socket close reported an error")
			}
			return nil
		}

		data, err := frame.Encode(res.line)
		if err != nil {
			return err
		}
		if err := s.conn.SendText(ctx, data); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to send input: %w", err)
		}
	}
}

// outputLoop renders console output until the socket reports an error or a
// close. ctx is the caller's context: its cancellation means interrupt.
func (s *Session) outputLoop(ctx context.Context) error {
	// Reads are ended by closing the socket, not by ctx, so the interrupt
	// path can still drain it.
	recvCtx := context.WithoutCancel(ctx)

	for {
		msg := s.conn.Receive(recvCtx)

		switch msg.Type {
		case socket.MessageText:
			if err := s.render(msg.Data); err != nil {
				_ = s.conn.Close()
				return err
			}

		default:
			s.stdout.WriteString(msg.String() + "\n")
			if msg.Type == socket.MessageError {
				log.Warn().Err(msg.Err).Msg("Console socket failed")
			}
			if ctx.Err() != nil {
				return nil
			}
			s.linger(ctx)
			return nil
		}
	}
}

// render writes the text payload of a raw frame, if it has one.
func (s *Session) render(raw string) error {
	env, err := frame.Parse(raw)
	if err != nil {
		return err
	}

	switch env.Kind {
	case frame.KindData:
		for _, text := range env.Messages {
			if strings.HasPrefix(text, frame.Escape) {
				text = StripEscapes(text)
			}
			s.stdout.WriteString(text)
		}
	case frame.KindClose:
		log.Info().Int("code", env.CloseCode).Str("reason", env.CloseReason).Msg("Console announced close")
	default:
		log.Debug().Stringer("kind", env.Kind).Msg("Skipping control frame")
	}
	return nil
}

// linger pauses for the grace period unless interrupted meanwhile.
func (s *Session) linger(ctx context.Context) {
	if s.Grace <= 0 {
		return
	}
	timer := time.NewTimer(s.Grace)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// readLines starts the stdin reader once. Reads from stdin cannot be
// interrupted, so the reader goroutine outlives a cancelled session and hands
// its next line to whoever reads the channel.
func (s *Session) readLines() <-chan lineResult {
	s.linesOnce.Do(func() {
		s.lines = make(chan lineResult)
		go func() {
			scanner := bufio.NewScanner(s.stdin)
			for scanner.Scan() {
				s.lines <- lineResult{line: strings.TrimSuffix(scanner.Text(), "\r")}
			}
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			s.lines <- lineResult{err: err}
		}()
	})
	return s.lines
}

// CloseAndDrain closes conn, receives once to confirm the close and reports
// both on out.
func CloseAndDrain(conn socket.Conn, out io.Writer) {
	fmt.Fprint(out, "\n\nExiting....\n")
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Socket close reported an error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	fmt.Fprintln(out, conn.Receive(ctx).String())
}

// drainTimeout bounds the confirmation receive after an interrupt.
const drainTimeout = time.Second

// syncWriter serialises writes from the two loops. Writes go straight to the
// underlying writer, which for os.Stdout is unbuffered.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func (w *syncWriter) WriteString(s string) {
	_, _ = w.Write([]byte(s))
}
