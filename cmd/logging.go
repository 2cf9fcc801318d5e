package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogging sends logs to stderr so they never mix with console output.
func setupLogging(verbose, debug bool, configured string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "3:04PM"})

	zerolog.SetGlobalLevel(logLevel(verbose, debug, configured))
}

// logLevel picks the level from the flags first, then the log.level setting.
func logLevel(verbose, debug bool, configured string) zerolog.Level {
	switch {
	case debug:
		return zerolog.DebugLevel
	case verbose:
		return zerolog.InfoLevel
	}

	if configured != "" {
		if level, err := zerolog.ParseLevel(strings.ToLower(configured)); err == nil {
			return level
		}
		log.Warn().Str("level", configured).Msg("Unknown log level in config, using warn")
	}
	return zerolog.WarnLevel
}
