package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kliewerdaniel/steinbot/internal/config"
)

// Setup installs the process-wide logger used by the package-level log calls.
func Setup(cfg config.LogConfig) *log.Logger {
	logger := New(os.Stderr, cfg)
	log.SetDefault(logger)
	return logger
}

// New builds a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, cfg config.LogConfig) *log.Logger {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Formatter:       formatter,
	})
}
