package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/domain/stocktaking"
	"github.com/hospital/staffportal/pkg/pagination"
)

// listFlags are the query flags shared by every list command. --page is
// one-based on the command line; the query always starts at the first page
// so later pages are reached only within the returned bounds.
type listFlags struct {
	page    int
	size    int
	sort    string
	keyword string
	status  string
	typ     string
	from    string
	to      string
	export  string
}

func (f *listFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.page, "page", 1, "page number, starting at 1")
	fs.IntVar(&f.size, "size", 0, "page size (default PORTAL_PAGE_SIZE)")
	fs.StringVar(&f.sort, "sort", "", "sort, e.g. createdAt,desc")
	fs.StringVarP(&f.keyword, "keyword", "k", "", "search keyword")
	fs.StringVar(&f.status, "status", "", "status filter")
	fs.StringVar(&f.typ, "type", "", "type filter")
	fs.StringVar(&f.from, "from", "", "from date (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "to date (YYYY-MM-DD)")
	fs.StringVar(&f.export, "export", "", "also write the page to this .xlsx file")
}

func (f *listFlags) query(defaultSize int) pagination.Query {
	size := f.size
	if size <= 0 {
		size = defaultSize
	}
	q := pagination.NewQuery(size).Merge(map[string]string{
		pagination.KeyKeyword:  strings.TrimSpace(f.keyword),
		pagination.KeyStatus:   strings.ToUpper(strings.TrimSpace(f.status)),
		pagination.KeyType:     strings.ToUpper(strings.TrimSpace(f.typ)),
		pagination.KeyFromDate: strings.TrimSpace(f.from),
		pagination.KeyToDate:   strings.TrimSpace(f.to),
	})
	q.Sort = f.sort
	return q
}

// actionFlags preset the answers of an action's dialog.
type actionFlags struct {
	yes  bool
	note string
}

func (f *actionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "answer yes to the confirmation")
	cmd.Flags().StringVar(&f.note, "note", "", "note or reason, asked for when required and not given")
}

// parseID reads a positive entity id argument.
func parseID(arg string) (int64, error) {
	id, err := common.ParseID(arg)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// parseCounts reads --count MEDICINE_ID=QUANTITY pairs.
func parseCounts(pairs []string) ([]stocktaking.Count, error) {
	out := make([]stocktaking.Count, 0, len(pairs))
	for _, p := range pairs {
		k, v, found := strings.Cut(p, "=")
		if !found {
			return nil, fmt.Errorf("count %q must look like MEDICINE_ID=QUANTITY", p)
		}
		id, err := parseID(k)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("count %q: quantity is not a number", p)
		}
		out = append(out, stocktaking.Count{MedicineID: id, CountedQuantity: n})
	}
	return out, nil
}
