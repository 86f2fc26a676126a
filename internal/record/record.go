// Package record holds the data extracted from one documentation page.
package record

import "strings"

// Kind is the type of documentation page behind a navigation subtree.
type Kind int

const (
	KindTable Kind = iota
	KindView
)

func (k Kind) String() string {
	if k == KindView {
		return "views"
	}
	return "tables"
}

// Dir is the output subdirectory name for pages of this kind.
func (k Kind) Dir() string {
	if k == KindView {
		return "Views"
	}
	return "Tables"
}

// Region names one portion of a page. The value doubles as the sheet name.
type Region string

const (
	RegionHeader      Region = "Header"
	RegionDetails     Region = "Details"
	RegionPrimaryKey  Region = "Primary Key"
	RegionColumns     Region = "Columns"
	RegionIndexes     Region = "Indexes"
	RegionForeignKeys Region = "Foreign Keys"
	RegionQuery       Region = "Query"
)

// Regions is the fixed sheet order of an exported page.
var Regions = []Region{
	RegionHeader,
	RegionDetails,
	RegionPrimaryKey,
	RegionColumns,
	RegionIndexes,
	RegionForeignKeys,
	RegionQuery,
}

// Table is one labeled table of a page. When Headers is non-empty every row
// has exactly len(Headers) cells.
type Table struct {
	Headers []string
	Rows    [][]string
	// Dropped counts rows discarded for not matching Headers.
	Dropped int
}

// NewTable builds a Table, dropping every row whose length differs from the
// header count. Rows are never padded or truncated.
func NewTable(headers []string, rows [][]string) Table {
	t := Table{Headers: headers}
	for _, row := range rows {
		if len(headers) > 0 && len(row) != len(headers) {
			t.Dropped++
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Shaped reports whether every row matches the header count.
func (t Table) Shaped() bool {
	if len(t.Headers) == 0 {
		return true
	}
	for _, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return false
		}
	}
	return true
}

// PageRecord is the result of extracting one page. It is not modified after
// the extractor returns it.
type PageRecord struct {
	Kind      Kind
	Label     string
	Header    string
	Paragraph string
	Details   []string

	// Tables holds only the named tables found on the page.
	Tables map[Region]Table
	// Absent lists named tables looked for but not found.
	Absent []Region
}

// Table returns the named table, or an empty one if it was absent.
func (r PageRecord) Table(region Region) (Table, bool) {
	t, ok := r.Tables[region]
	return t, ok
}

// FileName is the output file name for a leaf label.
func FileName(label string) string {
	name := strings.ToLower(strings.TrimSpace(label))
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	return name + ".xlsx"
}

// Status is the outcome of one leaf page.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is what happened to one leaf page of a section.
type Outcome struct {
	Section   string
	Kind      Kind
	Label     string
	Path      string
	Header    string
	Paragraph string
	Sheets    []Region
	Status    Status
	Attempts  int
	Err       string
}
