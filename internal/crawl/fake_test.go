package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlfredBerg/docs-table-scraper/internal/browser"
	"github.com/AlfredBerg/docs-table-scraper/internal/config"
	"github.com/AlfredBerg/docs-table-scraper/internal/record"
)

var testRetry = config.Retry{
	ExpandAttempts: 3,
	LeafAttempts:   3,
	WaitTimeout:    time.Second,
}

func tablePageHTML(label string) string {
	return fmt.Sprintf(`<html><body>
<header><h1 class="fa-chapter topic_link">%[1]s</h1></header>
<p class="p">Description of %[1]s.</p>
<section class="section"><h2 id="Details">Details</h2><ul><li><p class="p">Schema: FUSION</p></li></ul></section>
<section class="section"><h2 id="Columns">Columns</h2>
<table summary="Columns"><thead><tr><th>Name</th><th>Datatype</th></tr></thead>
<tbody><tr><td>ID</td><td>NUMBER</td></tr></tbody></table></section>
</body></html>`, label)
}

func viewPageHTML(label string) string {
	return fmt.Sprintf(`<html><body>
<header><h1 class="fa-chapter topic_link">%[1]s</h1></header>
<section class="section"><h2 id="Query">Query</h2>
<table summary="Query"><thead><tr><th>SQL_Statement</th></tr></thead>
<tbody><tr><td>SELECT 1 FROM DUAL</td></tr></tbody></table></section>
</body></html>`, label)
}

type fakeTree struct {
	id       string
	labels   []string
	expanded bool
	// expandFailures is the number of times the collapsed toggle cannot be
	// found; negative means forever.
	expandFailures int
}

// fakePage models the navigation panel and content frame of the site.
type fakePage struct {
	mu    sync.Mutex
	trees map[string]*fakeTree
	pages map[string]string
	// stale and broken make clicks on a leaf fail.
	stale  map[string]int
	broken map[string]bool
	// panicOn makes any lookup of that xpath panic.
	panicOn string
	// lag keeps the previous page on screen for that many title lookups
	// after a click on the leaf.
	lag map[string]int

	current      string
	currentLabel string
	pending      string
	lagLeft      int
	// gen changes on every navigation; handles from older generations are
	// stale.
	gen int

	containerLookups map[string]int
	resolves         map[string]int
	clicks           map[string]int
	staleHandleUses  int
}

func newFakePage(trees ...*fakeTree) *fakePage {
	p := &fakePage{
		trees:            map[string]*fakeTree{},
		pages:            map[string]string{},
		stale:            map[string]int{},
		broken:           map[string]bool{},
		lag:              map[string]int{},
		containerLookups: map[string]int{},
		resolves:         map[string]int{},
		clicks:           map[string]int{},
	}
	for _, t := range trees {
		p.trees[t.id] = t
	}
	return p
}

// withPages registers a content page for every leaf of id.
func (p *fakePage) withPages(id string, render func(string) string) *fakePage {
	for _, l := range p.trees[id].labels {
		p.pages[l] = render(l)
	}
	return p
}

type fakeElement struct {
	page  *fakePage
	kind  string
	tree  *fakeTree
	label string
	gen   int
}

func (p *fakePage) element(kind string, t *fakeTree, label string) *fakeElement {
	return &fakeElement{page: p, kind: kind, tree: t, label: label, gen: p.gen}
}

func timeout(xpath string) error {
	return fmt.Errorf("%s: %w", xpath, browser.ErrTimeout)
}

func (p *fakePage) WaitElement(ctx context.Context, xpath string, _ time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if xpath == p.panicOn {
		panic("lookup exploded: " + xpath)
	}
	if xpath == headerXPath {
		if p.lagLeft > 0 {
			p.lagLeft--
			if p.lagLeft == 0 {
				p.show(p.pending)
			}
		}
		if p.current == "" {
			return nil, timeout(xpath)
		}
		return p.element("header", nil, p.currentLabel), nil
	}
	for _, t := range p.trees {
		if xpath == containerXPath(t.id) {
			p.containerLookups[t.id]++
			return p.element("container", t, ""), nil
		}
		if !t.expanded {
			continue
		}
		for _, l := range t.labels {
			if xpath == leafXPath(t.id, l) {
				p.resolves[l]++
				return p.element("leaf", t, l), nil
			}
		}
	}
	return nil, timeout(xpath)
}

func (p *fakePage) WaitElements(ctx context.Context, xpath string, _ time.Duration) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.trees {
		if xpath != leafLabelsXPath(t.id) || !t.expanded || len(t.labels) == 0 {
			continue
		}
		out := make([]browser.Element, 0, len(t.labels))
		for _, l := range t.labels {
			out = append(out, p.element("label", t, l))
		}
		return out, nil
	}
	return nil, timeout(xpath)
}

func (p *fakePage) WaitClickable(ctx context.Context, xpath string, _ time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.trees {
		switch xpath {
		case collapsedXPath(t.id):
			if t.expandFailures != 0 {
				if t.expandFailures > 0 {
					t.expandFailures--
				}
				return nil, timeout(xpath)
			}
			if t.expanded {
				return nil, timeout(xpath)
			}
			return p.element("toggle", t, ""), nil
		case firstLeafXPath(t.id):
			if !t.expanded || len(t.labels) == 0 {
				return nil, timeout(xpath)
			}
			return p.element("leaf", t, t.labels[0]), nil
		}
	}
	return nil, timeout(xpath)
}

func (p *fakePage) Has(ctx context.Context, xpath string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if xpath == headerXPath {
		return p.current != "", nil
	}
	for _, t := range p.trees {
		if xpath == expandedXPath(t.id) {
			return t.expanded, nil
		}
	}
	return false, nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (e *fakeElement) Text() (string, error) {
	return " " + e.label + "\n", nil
}

func (e *fakeElement) ScrollIntoView() error {
	return nil
}

func (e *fakeElement) Click() error {
	p := e.page
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.kind {
	case "toggle":
		e.tree.expanded = true
	case "leaf":
		p.clicks[e.label]++
		if e.gen != p.gen {
			p.staleHandleUses++
			return fmt.Errorf("click %s: %w", e.label, browser.ErrStale)
		}
		if p.stale[e.label] > 0 {
			p.stale[e.label]--
			return fmt.Errorf("click %s: %w", e.label, browser.ErrStale)
		}
		if p.broken[e.label] {
			return fmt.Errorf("click %s: %w", e.label, browser.ErrIntercepted)
		}
		if n := p.lag[e.label]; n > 0 {
			p.pending, p.lagLeft = e.label, n
			return nil
		}
		p.show(e.label)
	}
	return nil
}

// show navigates the content frame to the page of label.
func (p *fakePage) show(label string) {
	p.current = p.pages[label]
	p.currentLabel = label
	p.gen++
}

type fakeSession struct {
	*fakePage
	openErr error
	closes  atomic.Int32
}

func (s *fakeSession) Open(ctx context.Context) error {
	return s.openErr
}

func (s *fakeSession) Close() error {
	s.closes.Add(1)
	return nil
}

// fakeLauncher hands out a fresh fake page per session.
type fakeLauncher struct {
	newPage   func() *fakePage
	launchErr error
	openErr   error

	mu       sync.Mutex
	sessions []*fakeSession

	active    atomic.Int32
	maxActive atomic.Int32
}

func (l *fakeLauncher) Launch(ctx context.Context) (browser.Session, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	s := &fakeSession{fakePage: l.newPage(), openErr: l.openErr}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return &trackedSession{fakeSession: s, launcher: l, release: l.acquire()}, nil
}

func (l *fakeLauncher) acquire() func() {
	n := l.active.Add(1)
	for {
		peak := l.maxActive.Load()
		if n <= peak || l.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	var once sync.Once
	return func() { once.Do(func() { l.active.Add(-1) }) }
}

// trackedSession counts concurrently open sessions.
type trackedSession struct {
	*fakeSession
	launcher *fakeLauncher
	release  func()
}

func (s *trackedSession) Close() error {
	s.release()
	return s.fakeSession.Close()
}

func (l *fakeLauncher) all() []*fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeSession(nil), l.sessions...)
}

// recorder is an in-memory OutputHandler.
type recorder struct {
	mu       sync.Mutex
	outcomes []record.Outcome
}

func (r *recorder) HandlePage(o record.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *recorder) byLabel() map[string]record.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]record.Outcome{}
	for _, o := range r.outcomes {
		out[o.Label] = o
	}
	return out
}

var errBoom = errors.New("boom")
