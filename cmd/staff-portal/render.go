package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
	"github.com/hospital/staffportal/internal/portal/listing"
)

// column is one table column of a list command.
type column[T any] struct {
	title string
	value func(T) string
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printTable[T any](w io.Writer, cols []column[T], items []T) {
	tw := newTable(w)
	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.title
	}
	fmt.Fprintln(tw, strings.Join(titles, "\t"))
	for _, it := range items {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = c.value(it)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// printList prints the page as a table followed by the page indicator.
func printList[T any](w io.Writer, cols []column[T], st listing.State[T]) {
	if len(st.Items) == 0 {
		fmt.Fprintln(w, "Không có dữ liệu")
	} else {
		printTable(w, cols, st.Items)
	}
	fmt.Fprintf(w, "%s (%d bản ghi)\n", st.Label(), st.TotalElements)
}

// printEntity prints the field grid and the actions the status allows.
func printEntity(w io.Writer, e detail.Entity) {
	tw := newTable(w)
	for _, f := range e.Fields() {
		fmt.Fprintf(tw, "%s:\t%s\n", f.Label, f.Value)
	}
	fmt.Fprintf(tw, "Thao tác:\t%s\n", action.Join(e.AllowedActions()))
	tw.Flush()
}
