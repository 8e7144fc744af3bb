package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// ColumnWidth matches the fixed 11-character columns of the console table.
const ColumnWidth = 11

// TotalLabel is the key cell of the trailing aggregate row.
const TotalLabel = "Total"

// Section is one table of a console tick: a title, a header row, one row per
// key in ascending key order, and the Total row last.
type Section struct {
	Title  string
	Header []string
	Rows   [][]string
}

// FormatTable renders snap as a console section following spec's columns.
func FormatTable(snap *domain.WindowSnapshot, spec domain.TableSpec) Section {
	header := make([]string, 0, len(spec.KeyHeaders)+len(spec.Columns))
	header = append(header, spec.KeyHeaders...)
	for _, c := range spec.Columns {
		header = append(header, c.Name)
	}

	sec := Section{
		Title:  spec.Title,
		Header: header,
		Rows:   make([][]string, 0, len(snap.Rows)+1),
	}

	nkeys := len(spec.KeyHeaders)
	for _, row := range snap.Rows {
		cells := make([]string, 0, len(header))
		for i := 0; i < nkeys; i++ {
			cells = append(cells, strconv.FormatUint(uint64(row.Key[i]), 10))
		}
		for _, c := range spec.Columns {
			cells = append(cells, FormatNumber(c.Value(row)))
		}
		sec.Rows = append(sec.Rows, cells)
	}

	total := make([]string, 0, len(header))
	for i := 0; i < nkeys; i++ {
		if i == 0 {
			total = append(total, TotalLabel)
		} else {
			total = append(total, "")
		}
	}
	for _, c := range spec.Columns {
		total = append(total, FormatNumber(c.Value(snap.Total)))
	}
	sec.Rows = append(sec.Rows, total)
	return sec
}

// Line renders cells as fixed-width columns with a leading space.
func Line(cells []string) string {
	var b strings.Builder
	b.WriteByte(' ')
	for _, c := range cells {
		fmt.Fprintf(&b, "%-*s", ColumnWidth, c)
	}
	return strings.TrimRight(b.String(), " ")
}

// WriteSection writes sec to w. heading styles the header row; nil leaves it plain.
func WriteSection(w io.Writer, sec Section, heading func(a ...interface{}) string) error {
	if sec.Title != "" {
		if _, err := fmt.Fprintln(w, sec.Title); err != nil {
			return err
		}
	}
	head := Line(sec.Header)
	if heading != nil {
		head = heading(head)
	}
	if _, err := fmt.Fprintln(w, head); err != nil {
		return err
	}
	for _, row := range sec.Rows {
		if _, err := fmt.Fprintln(w, Line(row)); err != nil {
			return err
		}
	}
	return nil
}
