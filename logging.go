package recipeassistant

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger returns a slog logger backed by a charmbracelet/log handler
// writing to w. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})

	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	handler.SetLevel(lvl)

	return slog.New(handler)
}
