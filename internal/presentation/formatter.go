// Package presentation renders registries, resolutions and ordering diffs
// for the command line, as styled text or JSON.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/zjrosen/multidispatch/internal/dispatch"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	json   bool
}

// NewFormatter creates a text formatter.
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer}
}

// NewJSONFormatter creates a formatter that writes indented JSON.
func NewJSONFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer, json: true}
}

// FormatJSON writes v as indented JSON.
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatOperations writes each operation's ordering and ambiguities.
func (f *Formatter) FormatOperations(ops []OperationDTO) error {
	if f.json {
		return f.FormatJSON(ops)
	}
	for i, op := range ops {
		if i > 0 {
			fmt.Fprintln(f.writer)
		}
		f.writeOperation(op)
	}
	return nil
}

func (f *Formatter) writeOperation(op OperationDTO) {
	title := op.Operation
	if op.Method {
		title += " (method)"
	}
	fmt.Fprintf(f.writer, "%s %s\n", HeadingStyle.Render(title),
		MutedStyle.Render(fmt.Sprintf("%d signatures", len(op.Ordering))))

	width := 0
	for _, v := range op.Ordering {
		width = max(width, runewidth.StringWidth(displayKey(v.Signature)))
	}
	for i, v := range op.Ordering {
		line := fmt.Sprintf("  %2d. %s  %s", i+1,
			SignatureStyle.Render(pad(displayKey(v.Signature), width)), v.Variant)
		if v.Declared != "" {
			line += MutedStyle.Render(" from " + v.Declared)
		}
		fmt.Fprintln(f.writer, line)
	}

	for _, a := range op.Ambiguities {
		line := fmt.Sprintf("  %s [%s] <> [%s]", WarningStyle.Render("ambiguous"), a.Left, a.Right)
		if a.Suggest != "" {
			line += MutedStyle.Render(fmt.Sprintf("  suggest %s(%s)", op.Operation, a.Suggest))
		}
		fmt.Fprintln(f.writer, line)
	}
}

// FormatResolution writes the outcome of a resolve.
func (f *Formatter) FormatResolution(res ResolutionDTO) error {
	if f.json {
		return f.FormatJSON(res)
	}
	call := fmt.Sprintf("%s(%s)", res.Operation, strings.Join(res.Types, ", "))
	if res.Error != "" {
		fmt.Fprintf(f.writer, "%s %s\n", ErrorStyle.Render("unresolved"), res.Error)
	} else {
		fmt.Fprintf(f.writer, "%s -> %s %s\n", call, SuccessStyle.Render(res.Variant),
			SignatureStyle.Render("["+res.Signature+"]"))
	}
	if len(res.Candidates) > 1 {
		fmt.Fprintf(f.writer, "%s %s\n", MutedStyle.Render("candidates:"), strings.Join(res.Candidates, " | "))
	}
	return nil
}

// FormatReport writes an ambiguity report as a warning block.
func (f *Formatter) FormatReport(rep dispatch.AmbiguityReport) error {
	if f.json {
		return f.FormatJSON(struct {
			Operation string `json:"operation"`
			Text      string `json:"text"`
		}{rep.Operation, rep.Text})
	}
	_, err := fmt.Fprint(f.writer, WarningStyle.Render("warning:")+" "+rep.Text)
	return err
}

// FormatDiff writes an ordering diff with +/- markers.
func (f *Formatter) FormatDiff(operation string, lines []DiffLine) error {
	if f.json {
		type jsonLine struct {
			Op        string `json:"op"`
			Signature string `json:"signature"`
		}
		out := make([]jsonLine, len(lines))
		for i, l := range lines {
			out[i] = jsonLine{Op: l.Kind.String(), Signature: l.Text}
		}
		return f.FormatJSON(struct {
			Operation string     `json:"operation"`
			Lines     []jsonLine `json:"lines"`
		}{operation, out})
	}

	fmt.Fprintln(f.writer, HeadingStyle.Render(operation))
	for _, l := range lines {
		text := marker(l.Kind) + " " + displayKey(l.Text)
		switch l.Kind {
		case LineAdded:
			text = DiffInsertStyle.Render(text)
		case LineDeleted:
			text = DiffDeleteStyle.Render(text)
		}
		fmt.Fprintln(f.writer, "  "+text)
	}
	return nil
}

func marker(k LineKind) string {
	switch k {
	case LineAdded:
		return "+"
	case LineDeleted:
		return "-"
	default:
		return " "
	}
}

// displayKey shows the empty signature as "()".
func displayKey(key string) string {
	if key == "" {
		return "()"
	}
	return key
}

// pad right-pads s to width terminal cells.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// FormatHistory writes stored snapshots of an operation, newest first.
func (f *Formatter) FormatHistory(operation string, snaps []SnapshotDTO) error {
	if f.json {
		if snaps == nil {
			snaps = []SnapshotDTO{}
		}
		return f.FormatJSON(snaps)
	}
	fmt.Fprintln(f.writer, HeadingStyle.Render(operation))
	if len(snaps) == 0 {
		fmt.Fprintln(f.writer, MutedStyle.Render("  no snapshots"))
		return nil
	}
	for _, s := range snaps {
		fmt.Fprintf(f.writer, "  %s  %s  %d entries\n",
			MutedStyle.Render(s.CreatedAt.Format("2006-01-02 15:04:05")), s.GUID, s.Entries)
	}
	return nil
}
