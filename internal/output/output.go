// Package output provides consistent CLI output formatting and progress
// indicators.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out         io.Writer
	interactive bool
}

// New creates a new output Writer. Progress bars are only drawn when out is
// a terminal.
func New(out io.Writer) *Writer {
	return &Writer{
		out:         out,
		interactive: IsTTY(out),
	}
}

// IsTTY checks if w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress tracks a long-running operation. A nil *Progress is valid and
// does nothing.
type Progress struct {
	bar *progressbar.ProgressBar
}

// Progress starts a progress bar over total bytes, or a spinner when total
// is unknown (negative). Off a terminal it returns nil.
func (w *Writer) Progress(total int64, description string) *Progress {
	if !w.interactive {
		return nil
	}
	out := w.out
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(total >= 0),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(out)
		}),
	)
	return &Progress{bar: bar}
}

// Set moves the bar to n.
func (p *Progress) Set(n int64) {
	if p == nil {
		return
	}
	_ = p.bar.Set64(n)
}

// Finish completes the bar.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
