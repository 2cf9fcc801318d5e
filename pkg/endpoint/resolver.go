// Package endpoint resolves the socket backend of a console from its frame
// page and builds the per-session WebSocket URL.
package endpoint

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

const (
	// bucketAlphabet is the character set of the session bucket token.
	bucketAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789_"

	// bucketLength is the length of the session bucket token.
	bucketLength = 8

	// maxServerID is the upper bound (inclusive) of the numeric server segment.
	maxServerID = 999
)

// loadConsolePattern captures the first argument of the page's console
// bootstrap call, e.g. Anywhere.LoadConsole('host.example.com', ...).
var loadConsolePattern = regexp.MustCompile(`Anywhere\.LoadConsole\((.+?),`)

// ExtractHostname returns the console backend hostname embedded in a frame
// page. It returns a *ResolutionError when the bootstrap call is missing.
func ExtractHostname(html string) (string, error) {
	m := loadConsolePattern.FindStringSubmatch(html)
	if m == nil {
		return "", &ResolutionError{Reason: "LoadConsole call not found in console frame"}
	}

	host := strings.TrimSpace(m[1])
	host = strings.Trim(host, `'"`)
	if host == "" {
		return "", &ResolutionError{Reason: "LoadConsole call has an empty hostname"}
	}
	return host, nil
}

// SocketURL builds wss://{host}/sj/{0..999}/{token}/websocket. A nil rng
// uses the package-level random source.
func SocketURL(host string, rng *rand.Rand) string {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	var token strings.Builder
	token.Grow(bucketLength)
	for i := 0; i < bucketLength; i++ {
		token.WriteByte(bucketAlphabet[intN(len(bucketAlphabet))])
	}

	return fmt.Sprintf("wss://%s/sj/%d/%s/websocket", host, intN(maxServerID+1), token.String())
}

// Resolve extracts the hostname from html and returns a fresh socket URL.
func Resolve(html string, rng *rand.Rand) (string, error) {
	host, err := ExtractHostname(html)
	if err != nil {
		return "", err
	}
	return SocketURL(host, rng), nil
}
