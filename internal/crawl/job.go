package crawl

import (
	"fmt"

	"github.com/AlfredBerg/docs-table-scraper/internal/browser"
	"github.com/AlfredBerg/docs-table-scraper/internal/config"
	"github.com/AlfredBerg/docs-table-scraper/internal/record"
	"github.com/AlfredBerg/docs-table-scraper/internal/sheet"
	"go.uber.org/zap"
)

// PageWriter exports an extracted page.
type PageWriter interface {
	Write(rec record.PageRecord, path string) (sheet.Result, error)
}

// OutputHandler receives the outcome of every leaf page. It must be safe to
// use from many jobs at once.
type OutputHandler interface {
	HandlePage(o record.Outcome) error
}

// Subtree is one expandable node of the navigation panel.
type Subtree struct {
	ID   string
	Kind record.Kind
	// Dir receives one workbook per leaf page.
	Dir string
}

func (s Subtree) String() string {
	return fmt.Sprintf("%s (%s)", s.Kind, s.ID)
}

// Target is a section resolved against the output tree. A missing subtree
// has an empty id and directory.
type Target struct {
	Name      string
	TablesID  string
	ViewsID   string
	TablesDir string
	ViewsDir  string
}

// Subtrees lists the configured subtrees, tables first.
func (t Target) Subtrees() []Subtree {
	var out []Subtree
	if t.TablesID != "" {
		out = append(out, Subtree{ID: t.TablesID, Kind: record.KindTable, Dir: t.TablesDir})
	}
	if t.ViewsID != "" {
		out = append(out, Subtree{ID: t.ViewsID, Kind: record.KindView, Dir: t.ViewsDir})
	}
	return out
}

// Job crawls one section with a browser session of its own.
type Job struct {
	Launcher      browser.Launcher
	Target        Target
	Retry         config.Retry
	Writer        PageWriter
	OutputHandler OutputHandler

	// RecycleSession replaces the browser after a failed subtree.
	RecycleSession bool

	Log *zap.Logger
}

// Report summarizes one section job.
type Report struct {
	Section string
	Pages   int
	// Failures holds one error per failed subtree.
	Failures []error
	// Err is set when no browser session could be started.
	Err error
}

// OK reports whether the section finished without any failure.
func (r Report) OK() bool {
	return r.Err == nil && len(r.Failures) == 0
}
