// Package extract reads the schema description regions of a rendered
// documentation page.
//
// Every selector mirrors the structure of the documentation site: a
// "section.section" block titled by an h2 with a fixed id, holding a table
// whose summary attribute names it. A missing block is an expected outcome
// and yields an absent region, never an error.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlfredBerg/docs-table-scraper/internal/record"
	"github.com/PuerkitoBio/goquery"
)

// ErrNoHeader is returned when the page title is missing, which means the
// content frame has not finished loading a documentation page.
var ErrNoHeader = errors.New("page header not found")

const (
	headerSelector    = `header > h1[class="fa-chapter topic_link"]`
	paragraphSelector = `p[class="p"]`
	sectionSelector   = `section[class="section"]`
	detailsSelector   = `li > p[class="p"]`
)

type tableDef struct {
	region    record.Region
	sectionID string
	summary   string
	// fixed headers replace the thead of the table when set
	fixed []string
}

var (
	primaryKeyDef  = tableDef{record.RegionPrimaryKey, "Primary-Key", "Primary Key", []string{"Name", "Columns"}}
	columnsDef     = tableDef{record.RegionColumns, "Columns", "Columns", nil}
	indexesDef     = tableDef{record.RegionIndexes, "Indexes", "Indexes", nil}
	foreignKeysDef = tableDef{record.RegionForeignKeys, "Foreign-Keys", "Foreign Keys", nil}
	queryDef       = tableDef{record.RegionQuery, "Query", "Query", nil}
)

// Extractor turns the HTML of a content page into a PageRecord.
type Extractor struct {
	kind      record.Kind
	paragraph bool
	tables    []tableDef
}

// Drift describes a region whose section was found without its table. It
// usually means the site markup changed.
type Drift struct {
	Region    record.Region
	SectionID string
}

func (d Drift) String() string {
	return fmt.Sprintf("section %q present but table %q missing", d.SectionID, d.Region)
}

// ForKind returns the extractor for table pages or view pages.
func ForKind(kind record.Kind) *Extractor {
	if kind == record.KindView {
		return &Extractor{
			kind:   kind,
			tables: []tableDef{columnsDef, queryDef},
		}
	}
	return &Extractor{
		kind:      kind,
		paragraph: true,
		tables:    []tableDef{primaryKeyDef, columnsDef, indexesDef, foreignKeysDef},
	}
}

// Kind is the page kind this extractor reads.
func (e *Extractor) Kind() record.Kind {
	return e.kind
}

// Extract parses html and returns the page record along with any regions
// that look like selector drift.
func (e *Extractor) Extract(label, html string) (record.PageRecord, []Drift, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return record.PageRecord{}, nil, fmt.Errorf("parsing HTML: %w", err)
	}

	header := doc.Find(headerSelector).First()
	if header.Length() == 0 {
		return record.PageRecord{}, nil, fmt.Errorf("%s: %w", label, ErrNoHeader)
	}

	rec := record.PageRecord{
		Kind:    e.kind,
		Label:   label,
		Header:  text(header),
		Details: details(doc),
		Tables:  map[record.Region]record.Table{},
	}
	if e.paragraph {
		rec.Paragraph = paragraph(doc)
	}

	var drift []Drift
	for _, def := range e.tables {
		t, found, sectionFound := readTable(doc, def)
		if !found {
			rec.Absent = append(rec.Absent, def.region)
			if sectionFound {
				drift = append(drift, Drift{Region: def.region, SectionID: def.sectionID})
			}
			continue
		}
		rec.Tables[def.region] = t
	}
	return rec, drift, nil
}

// section finds the section block whose direct h2 child carries id.
func section(doc *goquery.Document, id string) *goquery.Selection {
	return doc.Find(sectionSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ChildrenFiltered(fmt.Sprintf(`h2[id=%q]`, id)).Length() > 0
	}).First()
}

func paragraph(doc *goquery.Document) string {
	p := doc.Find(paragraphSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest(sectionSelector).Length() == 0
	}).First()
	if p.Length() == 0 {
		return ""
	}
	return text(p)
}

func details(doc *goquery.Document) []string {
	sec := section(doc, "Details")
	if sec.Length() == 0 {
		return nil
	}
	var out []string
	sec.Find(detailsSelector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, text(s))
	})
	return out
}

func readTable(doc *goquery.Document, def tableDef) (t record.Table, found, sectionFound bool) {
	sec := section(doc, def.sectionID)
	if sec.Length() == 0 {
		return record.Table{}, false, false
	}
	table := sec.Find(fmt.Sprintf(`table[summary=%q]`, def.summary)).First()
	if table.Length() == 0 {
		return record.Table{}, false, true
	}

	if def.fixed != nil {
		var rows [][]string
		table.Find(`tr[class="row"]`).Each(func(_ int, tr *goquery.Selection) {
			rows = append(rows, cells(tr.Find(`td[class="entry"]`)))
		})
		return record.NewTable(def.fixed, withoutEmpty(rows)), true, true
	}

	headers := cells(table.Find("thead > tr > th"))
	var rows [][]string
	table.Find("tbody > tr").Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, cells(tr.Find("td")))
	})
	return record.NewTable(headers, rows), true, true
}

// withoutEmpty drops header rows that hold no td cells at all.
func withoutEmpty(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func cells(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, text(s))
	})
	return out
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
