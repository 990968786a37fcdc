package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFilePath returns where the JSON log is written. Non-root users log under
// $XDG_STATE_HOME (or ~/.local/state).
func LogFilePath(userMode bool) string {
	if !userMode {
		return "/var/log/memguard.log"
	}

	xdgStateHome := os.Getenv("XDG_STATE_HOME")
	if xdgStateHome == "" {
		xdgStateHome = filepath.Join(os.Getenv("HOME"), ".local", "state")
	}

	return filepath.Join(xdgStateHome, "memguard", "memguard.log")
}

// logLevel parses MEMGUARD_LOGLEVEL, defaulting to info.
func logLevel() (zerolog.Level, bool) {
	lvl := os.Getenv("MEMGUARD_LOGLEVEL")
	if lvl == "" {
		return zerolog.InfoLevel, true
	}

	level, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return zerolog.InfoLevel, false
	}
	return level, true
}

func noColor() bool {
	v := os.Getenv("MEMGUARD_NOCOLOR")
	return v == "true" || v == "1"
}

// InitZerolog configures the global zerolog logger: human readable output on
// stdout and JSON lines in a size-rotated log file.
func InitZerolog() {
	userMode := os.Geteuid() != 0

	level, valid := logLevel()
	zerolog.SetGlobalLevel(level)

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + fmt.Sprintf("%d", line)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.ErrorFieldName = "error"

	logfilePath := LogFilePath(userMode)

	var fileWriter io.Writer
	if err := os.MkdirAll(filepath.Dir(logfilePath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory for %s: %v, falling back to stderr\n", logfilePath, err)
		fileWriter = os.Stderr
	} else {
		fileWriter = &lumberjack.Logger{
			Filename:   logfilePath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     20, // days
			Compress:   true,
		}
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    noColor(),
		FieldsExclude: []string{
			"component",
		},
	}

	output := zerolog.MultiLevelWriter(consoleWriter, fileWriter)

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("component", "memguard").
		Str("version", Version).
		Int("pid", os.Getpid()).
		Bool("user_mode", userMode)

	if hostname, err := os.Hostname(); err == nil {
		logger = logger.Str("hostname", hostname)
	}

	log.Logger = logger.Logger()

	if !valid {
		log.Warn().
			Str("provided_level", os.Getenv("MEMGUARD_LOGLEVEL")).
			Str("default_level", level.String()).
			Msg("Invalid log level provided, using default")
	}

	log.Debug().
		Str("component", "logging").
		Str("level", level.String()).
		Str("log_file", logfilePath).
		Bool("user_mode", userMode).
		Bool("colors_enabled", !noColor()).
		Msg("Zerolog initialized")
}
