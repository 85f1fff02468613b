/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger wraps github.com/sirupsen/logrus with the connector's own
// leveled-entry builder, splitting an Entry builder from a Fields set
// rather than calling logrus directly from application code. The client
// state machine, slot table, and dispatcher all log through this package.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin, leveled wrapper around a *logrus.Logger producing
// chained Entry builders.
type Logger struct {
	log *logrus.Logger
}

// New creates a Logger writing to os.Stderr at level, with the
// text formatter logrus defaults to. A nil *Logger receiver is valid for
// every method below and discards everything, so callers that don't wire
// a logger never need a nil check.
func New(level Level) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level.Logrus())
	return &Logger{log: l}
}

// SetOutput configures where log lines are written to; configuration (see
// the config package) ties this to the external log-configuration path.
func (l *Logger) SetOutput(dst interface {
	Write([]byte) (int, error)
}) {
	if l == nil {
		return
	}
	l.log.SetOutput(dst)
}

// SetLevel changes the minimum level that is actually logged.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.log.SetLevel(level.Logrus())
}

func (l *Logger) entry(level Level) *Entry {
	if l == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		return &Entry{log: discard, level: level}
	}
	return &Entry{log: l.log, level: level}
}

// Debug starts a DebugLevel entry.
func (l *Logger) Debug() *Entry { return l.entry(DebugLevel) }

// Info starts an InfoLevel entry.
func (l *Logger) Info() *Entry { return l.entry(InfoLevel) }

// Warn starts a WarnLevel entry.
func (l *Logger) Warn() *Entry { return l.entry(WarnLevel) }

// Error starts an ErrorLevel entry.
func (l *Logger) Error() *Entry { return l.entry(ErrorLevel) }

// Printf adapts Logger to the dispatch.Logger / Table.WarnFunc-shaped
// "format string, args" callback signatures used elsewhere in this
// codebase, logging at WarnLevel.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Warn().Logf(format, args...)
}
