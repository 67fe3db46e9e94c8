package output

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger returns a stderr logger for the given -v count: warnings only by
// default, function-call summaries at 1, full payloads at 2 and above.
func NewLogger(w io.Writer, verbosity int) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "funcall",
		ReportTimestamp: verbosity > 1,
	})
	logger.SetLevel(Level(verbosity))
	return logger
}

// Level maps a -v count to a log level.
func Level(verbosity int) log.Level {
	switch {
	case verbosity <= 0:
		return log.WarnLevel
	case verbosity == 1:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}
