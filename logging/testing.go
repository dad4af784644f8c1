package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// NewTestAppender returns an Appender that writes formatted lines with tb.Log, so each line is
// attributed to the test that produced it.
func NewTestAppender(tb testing.TB) Appender {
	return testAppender{tb}
}

type testAppender struct {
	tb testing.TB
}

func (app testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	app.tb.Helper()
	line, err := formatEntry(entry, fields)
	app.tb.Log(line)
	return err
}

func (app testAppender) Sync() error {
	return nil
}
