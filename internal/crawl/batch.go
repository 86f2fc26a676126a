package crawl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlfredBerg/docs-table-scraper/internal/config"
	"github.com/AlfredBerg/docs-table-scraper/internal/record"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Resolve maps the configured sections onto the output tree rooted at base.
func Resolve(base string, sections []config.Section) []Target {
	targets := make([]Target, 0, len(sections))
	for _, s := range sections {
		t := Target{Name: s.Name, TablesID: s.Tables, ViewsID: s.Views}
		if s.Tables != "" {
			t.TablesDir = filepath.Join(base, s.Name, record.KindTable.Dir())
		}
		if s.Views != "" {
			t.ViewsDir = filepath.Join(base, s.Name, record.KindView.Dir())
		}
		targets = append(targets, t)
	}
	return targets
}

// PrepareTree creates every output directory. It runs before any job starts
// so that workers never race on directory creation.
func PrepareTree(targets []Target) error {
	for _, t := range targets {
		for _, dir := range []string{t.TablesDir, t.ViewsDir} {
			if dir == "" {
				continue
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", dir, err)
			}
		}
	}
	return nil
}

// Batch runs one job per section on a bounded pool of workers.
type Batch struct {
	Workers int
	// Job is copied for every section, with Target filled in.
	Job Job
	Log *zap.Logger
}

// Run crawls every target and returns their reports in completion order.
func (b *Batch) Run(ctx context.Context, targets []Target) []Report {
	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}

	p := pool.NewWithResults[Report]().WithMaxGoroutines(b.Workers)
	for _, t := range targets {
		t := t
		p.Go(func() Report {
			j := b.Job
			j.Target = t
			if j.Log == nil {
				j.Log = log
			}
			rep := j.Crawl(ctx)
			log.Info("section done", zap.String("section", rep.Section), zap.Int("pages", rep.Pages), zap.Bool("ok", rep.OK()))
			return rep
		})
	}
	return p.Wait()
}
