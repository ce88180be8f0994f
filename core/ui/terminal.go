// Package ui - Terminal user interface
// CLI output with tables, colors and a loading spinner.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

// Colors for terminal output
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
)

// Writer is the UI output destination
type Writer struct {
	out       io.Writer
	noColor   bool
	verbosity int
}

// NewWriter creates a UI writer. Color is also disabled when out is not a
// terminal.
func NewWriter(out io.Writer, noColor bool) *Writer {
	if out == nil {
		out = os.Stdout
	}
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		noColor = true
	}
	return &Writer{
		out:       out,
		noColor:   noColor,
		verbosity: 1,
	}
}

// SetVerbosity sets output verbosity (0=quiet, 1=normal, 2=verbose)
func (w *Writer) SetVerbosity(level int) {
	w.verbosity = level
}

// Color applies color if enabled
func (w *Writer) Color(c, text string) string {
	if w.noColor {
		return text
	}
	return c + text + Reset
}

// Print writes formatted text
func (w *Writer) Print(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

// Println writes a line with newline
func (w *Writer) Println(format string, args ...any) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Header prints a section header
func (w *Writer) Header(title string) {
	w.Println("")
	w.Println("%s", w.Color(Bold+Cyan, "━━━ "+title+" ━━━"))
	w.Println("")
}

// SubHeader prints a subsection header
func (w *Writer) SubHeader(title string) {
	w.Println("%s", w.Color(Bold, "▸ "+title))
}

// Success prints a success message
func (w *Writer) Success(format string, args ...any) {
	w.Println("%s%s", w.Color(Green, "✓ "), fmt.Sprintf(format, args...))
}

// Warning prints a warning
func (w *Writer) Warning(format string, args ...any) {
	w.Println("%s%s", w.Color(Yellow, "⚠ "), fmt.Sprintf(format, args...))
}

// Error prints an error
func (w *Writer) Error(format string, args ...any) {
	w.Println("%s%s", w.Color(Red, "✗ "), fmt.Sprintf(format, args...))
}

// Info prints an info message
func (w *Writer) Info(format string, args ...any) {
	if w.verbosity < 1 {
		return
	}
	w.Println("%s%s", w.Color(Blue, "ℹ "), fmt.Sprintf(format, args...))
}

// Debug prints a debug message
func (w *Writer) Debug(format string, args ...any) {
	if w.verbosity < 2 {
		return
	}
	w.Println("%s", w.Color(Dim, "  "+fmt.Sprintf(format, args...)))
}

// Table renders a table
type Table struct {
	w       *Writer
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a table
func (w *Writer) NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	return &Table{
		w:       w,
		headers: headers,
		rows:    [][]string{},
		widths:  widths,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	// Pad or truncate cells to match header count
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
		if n := runewidth.StringWidth(row[i]); n > t.widths[i] {
			t.widths[i] = n
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows added
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) line(cells []string) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteString(" │ ")
		}
		b.WriteString(runewidth.FillRight(c, t.widths[i]))
	}
	return b.String()
}

// Render prints the table
func (t *Table) Render() {
	t.w.Println("%s", t.w.Color(Bold, t.line(t.headers)))

	sep := make([]string, len(t.widths))
	for i, w := range t.widths {
		sep[i] = strings.Repeat("─", w)
	}
	t.w.Println("%s", strings.Join(sep, "─┼─"))

	for _, row := range t.rows {
		t.w.Println("%s", t.line(row))
	}
}

// QuoteSummary renders the totals of a priced batch
type QuoteSummary struct {
	w *Writer

	Shipments      string
	Priced         int
	Failed         int
	TotalFinal     string
	TotalSavings   string
	SavingsPercent string
	Reference      string
	RunID          string
}

// NewQuoteSummary creates a quote summary
func (w *Writer) NewQuoteSummary() *QuoteSummary {
	return &QuoteSummary{w: w}
}

// Render prints the quote summary
func (s *QuoteSummary) Render() {
	s.w.Header("Rate Quote Summary")

	s.w.Println("%s", s.w.Color(Bold, "╭─────────────────────────────────────╮"))
	s.w.Println("%s%s%s", s.w.Color(Bold, "│"), s.w.Color(Green, fmt.Sprintf("  Total Quoted: %-21s", s.TotalFinal)), s.w.Color(Bold, "│"))
	if s.TotalSavings != "" {
		savings := s.TotalSavings
		if s.SavingsPercent != "" {
			savings += " (" + s.SavingsPercent + ")"
		}
		s.w.Println("%s%s%s", s.w.Color(Bold, "│"), s.w.Color(Dim, fmt.Sprintf("  Savings:      %-21s", savings)), s.w.Color(Bold, "│"))
	}
	s.w.Println("%s", s.w.Color(Bold, "╰─────────────────────────────────────╯"))
	s.w.Println("")

	s.w.Println("%s", s.w.Color(Dim, fmt.Sprintf("  Shipments: %s (%d priced)", s.Shipments, s.Priced)))
	if s.Reference != "" {
		s.w.Println("%s", s.w.Color(Dim, fmt.Sprintf("  Reference: %s  Run: %s", s.Reference, s.RunID)))
	}
	if s.Failed > 0 {
		s.w.Warning("%d shipments could not be priced", s.Failed)
	}
}

// Spinner shows a loading spinner
type Spinner struct {
	w       *Writer
	label   string
	frames  []string
	current int
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner
func (w *Writer) NewSpinner(label string) *Spinner {
	return &Spinner{
		w:      w,
		label:  label,
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start starts the spinner. Without a terminal it prints nothing until Stop.
func (s *Spinner) Start() {
	go func() {
		defer close(s.done)
		if s.w.noColor {
			<-s.stop
			return
		}
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.current = (s.current + 1) % len(s.frames)
				fmt.Fprintf(s.w.out, "\r%s %s", s.w.Color(Cyan, s.frames[s.current]), s.label)
			}
		}
	}()
}

// Stop stops the spinner
func (s *Spinner) Stop(success bool) {
	close(s.stop)
	<-s.done

	icon := s.w.Color(Green, "✓")
	if !success {
		icon = s.w.Color(Red, "✗")
	}
	fmt.Fprintf(s.w.out, "\r%s %s\n", icon, s.label)
}
