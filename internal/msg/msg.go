package msg

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Logger is the sink the build stages report progress to
type Logger interface {
	Info(format string, a ...any)
	Warn(format string, a ...any)
	Error(format string, a ...any)
	Debug(format string, a ...any)
}

// Console writes colored, level-prefixed lines to W (stdout when nil)
type Console struct {
	W       io.Writer
	Verbose bool

	mu sync.Mutex
}

// Default is the console used by the package-level helpers
var Default = &Console{}

func (c *Console) writer() io.Writer {
	if c.W == nil {
		return os.Stdout
	}
	return c.W
}

func (c *Console) print(level string, format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.writer()
	fmt.Fprint(w, level)
	fmt.Fprint(w, ": ")
	fmt.Fprintf(w, format, a...)
	fmt.Fprint(w, "\n")
}

func (c *Console) Error(format string, a ...any) {
	c.print(color.HiRedString("error"), format, a...)
}

func (c *Console) Warn(format string, a ...any) {
	c.print(color.YellowString("warn"), format, a...)
}

func (c *Console) Info(format string, a ...any) {
	c.print(color.HiGreenString("info"), format, a...)
}

// Debug is only printed in verbose mode
func (c *Console) Debug(format string, a ...any) {
	if !c.Verbose {
		return
	}
	c.print(color.HiBlackString("debug"), format, a...)
}

// Discard drops everything
type Discard struct{}

func (Discard) Info(string, ...any)  {}
func (Discard) Warn(string, ...any)  {}
func (Discard) Error(string, ...any) {}
func (Discard) Debug(string, ...any) {}

func Error(format string, a ...any) { Default.Error(format, a...) }
func Warn(format string, a ...any)  { Default.Warn(format, a...) }
func Info(format string, a ...any)  { Default.Info(format, a...) }

func Fatal(format string, a ...any) {
	Default.print(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	buf := make([]byte, 0, len(p)+len(w.Indent))
	for _, c := range p {
		if !w.didIndent {
			buf = append(buf, w.Indent...)
			w.didIndent = true
		}
		buf = append(buf, c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
