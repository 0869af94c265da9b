package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"infrar/internal/diag"
	"infrar/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	codeColor    = color.New(color.Bold)
	caretColor   = color.New(color.FgGreen, color.Bold)
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes с
// аналогичным форматом. Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		printHeader(w, fs, d.Severity.String(), d.Code.String(), d.Message, d.Primary, opts, severityColor(d.Severity))
		if !opts.NoContext {
			printContext(w, fs, d.Primary, opts)
		}
		if opts.ShowNotes {
			for _, note := range d.Notes {
				printHeader(w, fs, "NOTE", "", note.Msg, note.Span, opts, infoColor)
				if !opts.NoContext {
					printContext(w, fs, note.Span, opts)
				}
			}
		}
	}
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

func printHeader(w io.Writer, fs *source.FileSet, sev, code, msg string, sp source.Span, opts PrettyOpts, sevColor *color.Color) {
	sevText := sev
	codeText := code
	if opts.Color {
		sevText = sevColor.Sprint(sev)
		if code != "" {
			codeText = codeColor.Sprint(code)
		}
	}

	label := sevText
	if codeText != "" {
		label += " " + codeText
	}

	if loc, ok := formatLocation(fs, sp, opts.PathMode); ok {
		fmt.Fprintf(w, "%s: %s: %s\n", loc, label, msg)
		return
	}
	// Run-level диагностика: позиции нет.
	fmt.Fprintf(w, "%s: %s\n", label, msg)
}

// formatLocation renders "<path>:<line>:<col>" for spans bound to a file.
func formatLocation(fs *source.FileSet, sp source.Span, mode PathMode) (string, bool) {
	if fs == nil || fs.Len() == 0 || (sp == source.Span{}) {
		return "", false
	}
	f := fs.Get(sp.File)
	start, _ := fs.Resolve(sp)

	var path string
	switch mode {
	case PathModeAbsolute:
		path = f.FormatPath("absolute", "")
	case PathModeRelative:
		path = f.FormatPath("relative", fs.BaseDir())
	case PathModeBasename:
		path = f.FormatPath("basename", "")
	default:
		path = f.FormatPath("auto", "")
	}
	return fmt.Sprintf("%s:%d:%d", path, start.Line, start.Col), true
}

// printContext shows the source line of the span with a ^~~~ underline.
func printContext(w io.Writer, fs *source.FileSet, sp source.Span, opts PrettyOpts) {
	if fs == nil || fs.Len() == 0 || (sp == source.Span{}) {
		return
	}
	f := fs.Get(sp.File)
	start, end := fs.Resolve(sp)
	line := f.GetLine(start.Line)
	if line == "" {
		return
	}

	display := strings.ReplaceAll(line, "\t", "    ")
	if opts.Width > 0 {
		display = runewidth.Truncate(display, int(opts.Width), "…")
	}
	fmt.Fprintf(w, "  %s\n", display)

	// Подчёркивание только в пределах первой строки span'а.
	underlineLen := 1
	if end.Line == start.Line && end.Col > start.Col {
		underlineLen = int(end.Col - start.Col)
	}
	pad := visualCol(line, int(start.Col)-1)
	if opts.Width > 0 && pad >= int(opts.Width) {
		return
	}
	underline := "^"
	if underlineLen > 1 {
		underline += strings.Repeat("~", underlineLen-1)
	}
	if opts.Color {
		underline = caretColor.Sprint(underline)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", pad), underline)
}

// visualCol maps a byte column onto the display column after tab expansion.
func visualCol(line string, col int) int {
	if col > len(line) {
		col = len(line)
	}
	width := 0
	for _, r := range line[:col] {
		if r == '\t' {
			width += 4
			continue
		}
		width += runewidth.RuneWidth(r)
	}
	return width
}
