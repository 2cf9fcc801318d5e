// Package frame implements the SockJS-style envelope exchanged with the
// console backend.
//
// Outbound messages are a JSON array holding one string. Inbound frames are
// tagged by their first byte: 'o' opens the session, 'h' is a heartbeat,
// 'a' carries a JSON array of text payloads and 'c' announces a close.
package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Escape is the terminal escape character that starts SGR sequences.
const Escape = "\u001b"

// Handshake string contracts. They are matched against raw frame text, so
// the escape character appears in its JSON-escaped form.
const (
	// TarpitMarker appears in the frame that follows authentication when the
	// server is delaying connection setup.
	TarpitMarker = "tarpit"

	// EmptyHistory is the history frame sent by a console with nothing to
	// replay.
	EmptyHistory = `a[""]`

	// ReadyPrefix starts the first frame a cold-starting console sends once
	// it accepts input.
	ReadyPrefix = `a["\u001b[`
)

// lineEnding is appended to every outbound command.
const lineEnding = "\r\n"

// Kind identifies the type of an inbound frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindOpen
	KindHeartbeat
	KindData
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindHeartbeat:
		return "heartbeat"
	case KindData:
		return "data"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// Envelope is a parsed inbound frame.
type Envelope struct {
	Kind Kind
	Raw  string

	// Messages holds the payloads of a data frame. A server may batch
	// several messages into one frame.
	Messages []string

	// CloseCode and CloseReason are set for close frames.
	CloseCode   int
	CloseReason string
}

// Text returns the concatenated payloads of a data frame.
func (e Envelope) Text() string {
	return strings.Join(e.Messages, "")
}

// HasText reports whether the envelope carries anything to render.
func (e Envelope) HasText() bool {
	return e.Kind == KindData && len(e.Messages) > 0
}

// Encode wraps text plus a CRLF as the sole element of a JSON array.
func Encode(text string) (string, error) {
	return marshalArray(text + lineEnding)
}

// AuthFrame builds the frame that binds the socket to a console: the session
// cookie and console id behind an escape-bracket prefix.
func AuthFrame(sessionCookie string, consoleID int) (string, error) {
	return marshalArray(Escape + "[" + sessionCookie + ";" + strconv.Itoa(consoleID) + ";;a")
}

func marshalArray(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string{s}); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode returns the text payload of a data frame. Frames that do not start
// with 'a' carry nothing to render and yield ok == false. A data frame that
// is not a non-empty JSON string array returns a *ProtocolDesyncError.
func Decode(raw string) (text string, ok bool, err error) {
	if !strings.HasPrefix(raw, "a") {
		return "", false, nil
	}
	msgs, err := decodeArray(raw)
	if err != nil {
		return "", false, err
	}
	return msgs[0], true, nil
}

// Parse classifies a raw frame and decodes its payload.
func Parse(raw string) (Envelope, error) {
	env := Envelope{Raw: raw}
	if raw == "" {
		return env, nil
	}

	switch raw[0] {
	case 'o':
		env.Kind = KindOpen
	case 'h':
		env.Kind = KindHeartbeat
	case 'a':
		msgs, err := decodeArray(raw)
		if err != nil {
			return env, err
		}
		env.Kind = KindData
		env.Messages = msgs
	case 'c':
		env.Kind = KindClose
		var payload []json.RawMessage
		if err := json.Unmarshal([]byte(raw[1:]), &payload); err != nil {
			return env, &ProtocolDesyncError{Frame: raw, Err: err}
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload[0], &env.CloseCode)
		}
		if len(payload) > 1 {
			_ = json.Unmarshal(payload[1], &env.CloseReason)
		}
	}

	return env, nil
}

func decodeArray(raw string) ([]string, error) {
	var msgs []string
	if err := json.Unmarshal([]byte(raw[1:]), &msgs); err != nil {
		return nil, &ProtocolDesyncError{Frame: raw, Err: err}
	}
	if len(msgs) == 0 {
		return nil, &ProtocolDesyncError{Frame: raw, Err: errEmptyArray}
	}
	return msgs, nil
}
