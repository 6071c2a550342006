package presentation

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineKind classifies a line of an ordering diff.
type LineKind int

const (
	LineEqual LineKind = iota
	LineDeleted
	LineAdded
)

func (k LineKind) String() string {
	switch k {
	case LineDeleted:
		return "deleted"
	case LineAdded:
		return "added"
	default:
		return "equal"
	}
}

// DiffLine is one signature key in an ordering diff.
type DiffLine struct {
	Kind LineKind
	Text string
}

// OrderingDiff compares a saved ordering with the current one, one
// signature per line.
func OrderingDiff(saved, current []string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(joinLines(saved), joinLines(current))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		kind := LineEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = LineDeleted
		case diffmatchpatch.DiffInsert:
			kind = LineAdded
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Kind: kind, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// HasChanges reports whether any line differs.
func HasChanges(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Kind != LineEqual {
			return true
		}
	}
	return false
}

func joinLines(keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('\n')
	}
	return b.String()
}
