package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

type cronLogger struct {
	log *slog.Logger
}

// Cron exposes a slog logger as a cron.Logger. Cron's routine Info chatter
// (wake/run/schedule) goes to Debug.
func Cron(log *slog.Logger) cron.Logger {
	return cronLogger{log: log.With("component", "cron")}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
