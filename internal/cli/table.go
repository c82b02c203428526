package cli

import (
	"strings"
	"unicode/utf8"
)

// Table formats rows into aligned columns. Cells may carry ANSI escape
// sequences; they do not count towards the column width.
type Table struct {
	headers []string
	rows    [][]string
	padding int
	right   map[int]bool
}

// NewTable creates a new table with the given headers.
func NewTable(headers []string) *Table {
	return &Table{
		headers: headers,
		padding: 2,
		right:   make(map[int]bool),
	}
}

// AlignRight right-aligns the given columns, for numbers.
func (t *Table) AlignRight(cols ...int) {
	for _, c := range cols {
		t.right[c] = true
	}
}

// AddRow adds a row, padding or truncating it to the header count.
func (t *Table) AddRow(row []string) {
	cells := make([]string, len(t.headers))
	copy(cells, row)
	t.rows = append(t.rows, cells)
}

// Render formats and returns the table as a string.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], visibleWidth(cell))
		}
	}

	var sb strings.Builder
	t.writeRow(&sb, t.headers, widths)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	t.writeRow(&sb, sep, widths)
	for _, row := range t.rows {
		t.writeRow(&sb, row, widths)
	}
	return sb.String()
}

func (t *Table) writeRow(sb *strings.Builder, cells []string, widths []int) {
	gap := strings.Repeat(" ", t.padding)
	parts := make([]string, len(cells))
	for i, cell := range cells {
		fill := strings.Repeat(" ", widths[i]-visibleWidth(cell))
		if t.right[i] {
			parts[i] = fill + cell
		} else {
			parts[i] = cell + fill
		}
	}
	sb.WriteString(strings.TrimRight(strings.Join(parts, gap), " "))
	sb.WriteByte('\n')
}

// visibleWidth counts runes outside of ANSI CSI sequences.
func visibleWidth(s string) int {
	n := 0
	for i := 0; i < len(s); {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			i = j + 1
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return n
}
