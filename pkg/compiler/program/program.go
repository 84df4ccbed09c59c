package program

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/lexer"
	"github.com/gtamodding/gta3sc/pkg/compiler/models"
)

// ErrHalt is returned by Fatal and aborts the current compilation job.
// Other jobs keep running; the driver aggregates the exit status.
var ErrHalt = errors.New("compilation job halted")

// tooManyErrors is the cutoff after which a job gives up. Matches the
// intent of the original compiler's disabled bound.
const tooManyErrors = 100

// Location is the diagnostic context of a message. The zero value means
// "no context"; partially filled values degrade the format gracefully
// (file only, file+line, file+line+column).
type Location struct {
	File       string
	Line       int
	Column     int
	SourceLine string // echoed under the message with a caret when set
}

// NoContext is the empty diagnostic location.
func NoContext() Location {
	return Location{}
}

// InFile is a file-level location with no line information.
func InFile(path string) Location {
	return Location{File: path}
}

// At builds a full location from a token and the source it came from.
func At(file string, tok lexer.Token, source string) Location {
	loc := Location{File: file, Line: tok.Line, Column: tok.Column}
	if tok.Line > 0 {
		lines := strings.Split(source, "\n")
		if tok.Line <= len(lines) {
			loc.SourceLine = strings.TrimSuffix(lines[tok.Line-1], "\r")
		}
	}
	return loc
}

// Context is the shared state of one compiler invocation.
type Context struct {
	Opt      Options
	Commands *commands.Table
	Models   *models.Registry

	errorCount atomic.Uint32
	warnCount  atomic.Uint32
	fatalCount atomic.Uint32

	mu  sync.Mutex
	out io.Writer
}

// NewContext builds a Context. Passing a nil registry yields an empty
// one; diagnostics go to stderr unless redirected with SetOutput.
func NewContext(opt Options, table *commands.Table, registry *models.Registry) *Context {
	if registry == nil {
		registry = models.NewRegistry()
	}
	return &Context{Opt: opt, Commands: table, Models: registry, out: os.Stderr}
}

// SetOutput redirects diagnostic output, mainly for tests.
func (c *Context) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

// ErrorCount returns the number of errors reported so far.
func (c *Context) ErrorCount() uint32 { return c.errorCount.Load() }

// WarnCount returns the number of warnings reported so far.
func (c *Context) WarnCount() uint32 { return c.warnCount.Load() }

// FatalCount returns the number of fatal errors reported so far.
func (c *Context) FatalCount() uint32 { return c.fatalCount.Load() }

// HasError reports whether emission must be suppressed.
func (c *Context) HasError() bool {
	return c.errorCount.Load() > 0 || c.fatalCount.Load() > 0
}

// ShouldHalt reports whether the error cutoff has been reached. Passes
// poll it at statement boundaries and stop analysing when it trips.
func (c *Context) ShouldHalt() bool {
	return c.errorCount.Load() >= tooManyErrors
}

// Note emits a contextual note. Notes are not counted.
func (c *Context) Note(loc Location, format string, args ...any) {
	c.puts(formatDiag("note", loc, format, args...))
}

// Warning emits a nonblocking warning.
func (c *Context) Warning(loc Location, format string, args ...any) {
	c.warnCount.Add(1)
	c.puts(formatDiag("warning", loc, format, args...))
}

// Error emits an error. Analysis continues; emission is suppressed.
func (c *Context) Error(loc Location, format string, args ...any) {
	if c.errorCount.Add(1) == tooManyErrors {
		c.puts(formatDiag("error", loc, format, args...))
		c.puts(formatDiag("fatal error", NoContext(), "too many errors"))
		c.fatalCount.Add(1)
		return
	}
	c.puts(formatDiag("error", loc, format, args...))
}

// RegisterErrors adds n externally produced errors (e.g. parser errors)
// to the counter. n may be zero.
func (c *Context) RegisterErrors(n uint32) {
	if n > 0 {
		c.errorCount.Add(n)
	}
}

// Fatal emits a fatal error and returns ErrHalt for the job to unwind
// with.
func (c *Context) Fatal(loc Location, format string, args ...any) error {
	c.fatalCount.Add(1)
	c.puts(formatDiag("fatal error", loc, format, args...))
	return ErrHalt
}

// Internal reports a compiler bug. It counts as fatal and is never
// silenced.
func (c *Context) Internal(loc Location, format string, args ...any) error {
	c.fatalCount.Add(1)
	c.puts(formatDiag("internal_error", loc, format, args...))
	return ErrHalt
}

// SupportedCommand resolves a command name that the compiler itself
// needs (GOTO, ANDOR, SWITCH_START, ...). A missing or unsupported
// command is a fatal error.
func (c *Context) SupportedCommand(loc Location, name string) (*commands.Command, error) {
	cmd, ok := c.Commands.FindCommand(name)
	if !ok || !cmd.Supported {
		return nil, c.Fatal(loc, "command '%s' undefined or unsupported", name)
	}
	return cmd, nil
}

// SupportedAlternator resolves an alternator the compiler itself needs.
func (c *Context) SupportedAlternator(loc Location, name string) (*commands.Alternator, error) {
	alt, ok := c.Commands.FindAlternator(name)
	if !ok {
		return nil, c.Fatal(loc, "alternator '%s' undefined or unsupported", name)
	}
	return alt, nil
}

// puts writes one diagnostic message. Messages are atomic: concurrent
// jobs never interleave within a line.
func (c *Context) puts(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, msg)
}

// formatDiag renders a diagnostic in the canonical shape:
//
//	{file}:{line}:{col}: {kind}: {message}
//	 {source-line}
//	 {caret}
func formatDiag(kind string, loc Location, format string, args ...any) string {
	var b strings.Builder

	if loc.File != "" {
		b.WriteString(loc.File)
		b.WriteByte(':')
	} else {
		b.WriteString("gta3sc:")
	}
	if loc.Line > 0 {
		fmt.Fprintf(&b, "%d:", loc.Line)
		if loc.Column > 0 {
			fmt.Fprintf(&b, "%d:", loc.Column)
		}
	}
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteString(": ")
	fmt.Fprintf(&b, format, args...)

	if loc.SourceLine != "" && loc.Line > 0 {
		fmt.Fprintf(&b, "\n %s", loc.SourceLine)
		if loc.Column > 0 {
			fmt.Fprintf(&b, "\n %*s", loc.Column, "^")
		}
	}
	return b.String()
}
