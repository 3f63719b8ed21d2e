package cli

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/docker/mdstream/pkg/perf"
)

var (
	bold   = color.New(color.Bold).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
	faint  = color.New(color.Faint).SprintfFunc()
)

type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out: out,
	}
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Print(a ...any) {
	fmt.Fprint(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) {
	p.Printf("❌ %s\n", red("%s", err))
}

// PrintWarning prints a non fatal problem
func (p *Printer) PrintWarning(format string, a ...any) {
	p.Printf("⚠️  %s\n", yellow(format, a...))
}

// PrintHeader prints a section title, used to separate outputs being compared.
func (p *Printer) PrintHeader(title string) {
	p.Printf("\n%s\n", bold("── %s ──", title))
}

// Summary describes a finished rendering session.
type Summary struct {
	Source     string
	Renders    int
	Tokens     int
	Incomplete int
	Dropped    int
	Errors     map[string]int
	Operations map[string]perf.OperationSummary
}

// PrintSummary prints the session statistics, one line per fact.
func (p *Printer) PrintSummary(s Summary) {
	p.Printf("\n%s %s\n", green("✔"), bold("%s", s.Source))
	p.Printf("  renders: %d, tokens: %d", s.Renders, s.Tokens)
	if s.Incomplete > 0 {
		p.Printf(", %s", yellow("%d incomplete", s.Incomplete))
	}
	if s.Dropped > 0 {
		p.Printf(", %d dropped events", s.Dropped)
	}
	p.Println()

	for _, code := range slices.Sorted(maps.Keys(s.Errors)) {
		p.Printf("  %s\n", red("%s: %d", code, s.Errors[code]))
	}
	for _, op := range slices.Sorted(maps.Keys(s.Operations)) {
		o := s.Operations[op]
		p.Printf("  %s\n", faint("%s: %d× mean %s p95 %s max %s", op, o.Count, round(o.Mean), round(o.P95), round(o.Max)))
	}
}

func round(d time.Duration) time.Duration {
	if d > time.Millisecond {
		return d.Round(10 * time.Microsecond)
	}
	return d.Round(time.Microsecond)
}

type fder interface {
	Fd() uintptr
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorEnabled reports whether styled output should be written to w.
func ColorEnabled(w io.Writer) bool {
	return IsTerminal(w) && os.Getenv("NO_COLOR") == ""
}

// TerminalSize returns the size of the terminal w writes to, or fallback
// and 0 when w is not a terminal.
func TerminalSize(w io.Writer, fallback int) (int, int) {
	if !IsTerminal(w) {
		return fallback, 0
	}
	width, height, err := term.GetSize(int(w.(fder).Fd()))
	if err != nil || width <= 0 {
		return fallback, 0
	}
	return width, height
}
