// Package console prints the user-facing build log.
//
// Every line starts with a level symbol: i for progress, √ for a finished
// step, ! for a warning and X for a failure. Stages are separated by a
// divider and closed with their duration.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the number of dashes in a divider line.
const DividerWidth = 71

// Console writes styled log lines. It is safe for concurrent use.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	info    lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	divider lipgloss.Style
}

// New creates a Console writing to w. Colors are emitted only when color is
// true and w is a terminal.
func New(w io.Writer, color bool) *Console {
	r := lipgloss.NewRenderer(w)
	c := &Console{
		w:       w,
		info:    r.NewStyle(),
		ok:      r.NewStyle(),
		warn:    r.NewStyle(),
		err:     r.NewStyle(),
		divider: r.NewStyle(),
	}
	if color {
		c.info = c.info.Foreground(lipgloss.Color("4"))
		c.ok = c.ok.Foreground(lipgloss.Color("2"))
		c.warn = c.warn.Foreground(lipgloss.Color("3"))
		c.err = c.err.Foreground(lipgloss.Color("1")).Bold(true)
		c.divider = c.divider.Bold(true)
	}
	return c
}

// Discard returns a Console that drops everything.
func Discard() *Console {
	return New(io.Discard, false)
}

func (c *Console) line(style lipgloss.Style, symbol, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, style.Render(symbol)+" "+style.Render(msg))
}

// Info prints a progress message.
func (c *Console) Info(format string, args ...any) {
	c.line(c.info, "i", format, args...)
}

// Ok prints a success message.
func (c *Console) Ok(format string, args ...any) {
	c.line(c.ok, "√", format, args...)
}

// Warn prints a warning.
func (c *Console) Warn(format string, args ...any) {
	c.line(c.warn, "!", format, args...)
}

// Error prints a failure.
func (c *Console) Error(format string, args ...any) {
	c.line(c.err, "X", format, args...)
}

// Divider prints a separator line.
func (c *Console) Divider() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, c.divider.Render(strings.Repeat("-", DividerWidth)))
}

// Finished prints the elapsed time of a step.
func (c *Console) Finished(d time.Duration) {
	c.Ok("Finished in %ss", Seconds(d))
}

// Raw writes pre-formatted text, such as tool output, unchanged.
func (c *Console) Raw(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, text)
	if !strings.HasSuffix(text, "\n") {
		io.WriteString(c.w, "\n")
	}
}

// Seconds formats d as seconds with millisecond precision and no trailing zeros.
func Seconds(d time.Duration) string {
	ms := d.Round(time.Millisecond).Milliseconds()
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}
