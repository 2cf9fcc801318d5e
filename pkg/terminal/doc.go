// Package terminal provides line-based interactive access to a remote
// console over an established, handshaken socket.
//
// It implements a session handler that bridges the console socket with local
// terminal I/O, so a shell running in the cloud can be driven from the
// command line.
//
// # ARCHITECTURE
//
//	CLI (stdin/stdout) ↔ Session ↔ socket.Conn ↔ console backend
//
// Key components:
//   - Line input: one operator line becomes one data frame
//   - Output rendering: data frames are decoded and written without adding
//     newlines; colour sequences are removed when a message starts with ESC
//   - Clean exit: typing `bye` (or closing stdin) closes the socket
//
// # USAGE
//
//	conn, err := dialer.Dial(ctx, wssURL)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	// ... run the handshake ...
//
//	session := terminal.NewSession(conn)
//	if err := session.Run(ctx); err != nil {
//	    return err
//	}
//
// # SHUTDOWN
//
// There are three ways a session ends:
//   - the operator types the exit keyword: the input loop closes the socket,
//     the output loop observes the close, pauses for the grace period and
//     returns
//   - the backend closes the socket: the output loop prints the terminal
//     message, pauses and stops the input loop
//   - the context is cancelled (Ctrl+C): the socket is closed, one final
//     receive drains it and Run returns without the grace pause
//
// # THREAD SAFETY
//
// Session runs two goroutines:
//   - inputLoop: reads stdin → writes to the socket
//   - outputLoop: reads the socket → writes to stdout
//
// Only the output loop receives. Writes to stdout go through a mutex so the
// prompt and console output never interleave mid-write.
package terminal
