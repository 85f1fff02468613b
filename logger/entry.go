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

package logger

import "github.com/sirupsen/logrus"

// Entry is one in-progress log record: a level, a base set of structured
// fields, and an optional error, built up with chained FieldAdd/SetError
// calls and emitted with Log.
type Entry struct {
	log    *logrus.Logger
	level  Level
	fields Fields
	err    error
}

// FieldAdd attaches one structured field and returns the same Entry for
// chaining.
func (e *Entry) FieldAdd(key string, val interface{}) *Entry {
	e.fields = e.fields.Add(key, val)
	return e
}

// FieldMerge folds another Fields set into this entry.
func (e *Entry) FieldMerge(fields Fields) *Entry {
	e.fields = e.fields.Merge(fields)
	return e
}

// SetError attaches the error this entry reports, added as the "error"
// field when the entry is logged.
func (e *Entry) SetError(err error) *Entry {
	e.err = err
	return e
}

// Log emits the entry at its level with message, through logrus.
func (e *Entry) Log(message string) {
	fields := e.fields
	if e.err != nil {
		fields = fields.Add("error", e.err.Error())
	}
	e.log.WithFields(fields.Logrus()).Log(e.level.Logrus(), message)
}

// Logf formats message with args (fmt.Sprintf semantics) and logs it.
func (e *Entry) Logf(format string, args ...interface{}) {
	fields := e.fields
	if e.err != nil {
		fields = fields.Add("error", e.err.Error())
	}
	e.log.WithFields(fields.Logrus()).Logf(e.level.Logrus(), format, args...)
}
