package main

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var logger log.Logger = log.NewNopLogger()

// newLogger builds a logfmt logger filtered to the given level name.
// Python-style names (WARNING, CRITICAL) are accepted.
func newLogger(w io.Writer, levelName string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(l, levelOption(levelName))
}

func levelOption(name string) level.Option {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return level.AllowDebug()
	case "WARN", "WARNING":
		return level.AllowWarn()
	case "ERROR", "CRITICAL", "FATAL":
		return level.AllowError()
	case "NONE", "OFF":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

func setupLogging(levelName string) {
	logger = newLogger(os.Stderr, levelName)
}

func logDebug(msg string, kv ...interface{}) {
	level.Debug(logger).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func logInfo(msg string, kv ...interface{}) {
	level.Info(logger).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func logWarn(msg string, kv ...interface{}) {
	level.Warn(logger).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func logError(msg string, err error, kv ...interface{}) {
	level.Error(logger).Log(append([]interface{}{"msg", msg, "err", err}, kv...)...)
}
