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

// Package console is the default, developer-facing implementation of
// alert.Sink: it renders Good messages in green and Bad messages in red on
// a terminal, through github.com/fatih/color over a
// github.com/mattn/go-colorable writer so colors still render on Windows
// consoles that don't natively understand ANSI escapes.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"

	"github.com/sabouaram/connector/ioutils/iowrapper"
)

// Sink writes alert messages to a terminal. The underlying writer is held
// behind an iowrapper.IOWrapper so tests can substitute a buffer for the
// real terminal (SetWrite) without touching the write path below.
type Sink struct {
	mu      sync.Mutex
	out     iowrapper.IOWrapper
	enabled bool

	good *color.Color
	bad  *color.Color
}

// New wraps colorable.NewColorable(os.Stdout) for cross-platform ANSI
// output.
func New() *Sink {
	return NewWithWriter(colorable.NewColorable(os.Stdout))
}

// NewWithWriter wraps an arbitrary io.Writer, used by tests to capture
// output instead of writing to a real terminal.
func NewWithWriter(w io.Writer) *Sink {
	return &Sink{
		out:  iowrapper.New(w),
		good: color.New(color.FgGreen),
		bad:  color.New(color.FgRed),
	}
}

// Enable arms message delivery.
func (s *Sink) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

// Disable silences message delivery; alert.Router still logs disabled
// messages, this Sink just never prints them.
func (s *Sink) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// Good prints message in green, prefixed "OK: ".
func (s *Sink) Good(message string) {
	s.write(s.good, "OK: "+message)
}

// Bad prints message in red, prefixed "ERROR: ".
func (s *Sink) Bad(message string) {
	s.write(s.bad, "ERROR: "+message)
}

func (s *Sink) write(c *color.Color, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	_, _ = fmt.Fprintln(s.out, c.Sprint(line))
}
