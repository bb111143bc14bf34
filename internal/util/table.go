package util

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Row is one table line, keyed by column key
type Row map[string]string

// Column describes one table column
type Column struct {
	Header string
	Key    string
}

// WriteTable renders rows under headers with per-column widths. Cell values
// may carry ANSI color codes; widths are computed on the visible text.
func WriteTable(w io.Writer, columns []Column, rows []Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No data to display")
		return
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col.Header)
		for _, row := range rows {
			if n := visibleWidth(row[col.Key]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, col := range columns {
		fmt.Fprintf(w, "%-*s ", widths[i], col.Header)
	}
	fmt.Fprintln(w)
	for i := range columns {
		fmt.Fprint(w, strings.Repeat("-", widths[i]), " ")
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for i, col := range columns {
			cell := row[col.Key]
			if pad := widths[i] - visibleWidth(cell); pad > 0 {
				cell += strings.Repeat(" ", pad)
			}
			fmt.Fprint(w, cell, " ")
		}
		fmt.Fprintln(w)
	}
}

func visibleWidth(s string) int {
	return len([]rune(ansiRe.ReplaceAllString(s, "")))
}
