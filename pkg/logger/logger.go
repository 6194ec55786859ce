package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with helpers for the fields we attach everywhere.
type Logger struct {
	zerolog.Logger
}

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

func New(cfg Config) *Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg Config, out io.Writer) *Logger {
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: l}
}

// Nop discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With().Str("component", component).Logger()}
}

func (l *Logger) WithPost(postID, platform string) *Logger {
	return &Logger{
		Logger: l.With().
			Str("post_id", postID).
			Str("platform", platform).
			Logger(),
	}
}

func (l *Logger) WithQueueID(id string) *Logger {
	return &Logger{Logger: l.With().Str("queue_id", id).Logger()}
}

// Asynq adapts the logger to asynq's Logger interface.
func (l *Logger) Asynq() *AsynqLogger {
	return &AsynqLogger{l: l.WithComponent("asynq")}
}

type AsynqLogger struct {
	l *Logger
}

func (a *AsynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a *AsynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a *AsynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a *AsynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a *AsynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
