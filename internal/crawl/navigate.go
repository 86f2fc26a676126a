package crawl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlfredBerg/docs-table-scraper/internal/browser"
	"github.com/AlfredBerg/docs-table-scraper/internal/config"
	"github.com/AlfredBerg/docs-table-scraper/internal/extract"
	"github.com/AlfredBerg/docs-table-scraper/internal/record"
	"go.uber.org/zap"
)

// settlePoll is how often the page title is checked while waiting for a
// clicked page to replace the previous one.
const settlePoll = 100 * time.Millisecond

// Navigator drives the navigation tree of one browser session.
type Navigator struct {
	Page          browser.Page
	Section       string
	Retry         config.Retry
	Writer        PageWriter
	OutputHandler OutputHandler
	Log           *zap.Logger
}

// Run expands st and extracts every leaf page under it. It returns the
// number of workbooks written.
func (n *Navigator) Run(ctx context.Context, st Subtree) (int, error) {
	if err := n.Expand(ctx, st); err != nil {
		return 0, err
	}
	return n.ExtractAll(ctx, st)
}

// Expand opens st and clicks its first leaf. Every failed attempt waits
// for the backoff before trying again.
func (n *Navigator) Expand(ctx context.Context, st Subtree) error {
	log := n.Log.With(zap.Stringer("subtree", st))

	var err error
	for attempt := 1; attempt <= n.Retry.ExpandAttempts; attempt++ {
		log.Info("expanding dropdown", zap.Int("attempt", attempt), zap.Int("of", n.Retry.ExpandAttempts))
		if err = n.expandOnce(ctx, st); err == nil {
			log.Debug("expanded dropdown and opened first page")
			return nil
		}
		log.Warn("failed expanding dropdown", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == n.Retry.ExpandAttempts {
			break
		}
		if serr := browser.Sleep(ctx, n.Retry.ExpandBackoff); serr != nil {
			err = serr
			return &ExpandError{Section: n.Section, Subtree: st, Attempts: attempt, Err: err}
		}
	}
	return &ExpandError{Section: n.Section, Subtree: st, Attempts: n.Retry.ExpandAttempts, Err: err}
}

func (n *Navigator) expandOnce(ctx context.Context, st Subtree) error {
	timeout := n.Retry.WaitTimeout

	container, err := n.Page.WaitElement(ctx, containerXPath(st.ID), timeout)
	if err != nil {
		return err
	}
	if err := container.ScrollIntoView(); err != nil {
		return err
	}

	expanded, err := n.Page.Has(ctx, expandedXPath(st.ID))
	if err != nil {
		return err
	}
	if !expanded {
		toggle, err := n.Page.WaitClickable(ctx, collapsedXPath(st.ID), timeout)
		if err != nil {
			return err
		}
		if err := scrollAndClick(toggle); err != nil {
			return err
		}
	}

	first, err := n.Page.WaitClickable(ctx, firstLeafXPath(st.ID), timeout)
	if err != nil {
		return err
	}
	return scrollAndClick(first)
}

// ExtractAll visits every leaf of an expanded subtree in panel order.
func (n *Navigator) ExtractAll(ctx context.Context, st Subtree) (int, error) {
	log := n.Log.With(zap.Stringer("subtree", st))

	labels, err := n.labels(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("listing pages of %s: %w", st, err)
	}
	log.Info("found pages", zap.Int("count", len(labels)))

	written := 0
	for _, label := range labels {
		out, err := n.leaf(ctx, st, label)
		switch {
		case err == nil:
			written++
		case errors.Is(err, browser.ErrStale) && ctx.Err() == nil:
			out.Status = record.StatusSkipped
			log.Warn("page kept going stale, skipping it", zap.String("page", label), zap.Error(err))
		}
		n.handle(out)
		if out.Status == record.StatusFailed {
			return written, &LeafError{Section: n.Section, Kind: st.Kind, Label: label, Attempts: out.Attempts, Err: err}
		}
	}
	return written, nil
}

// labels reads the visible label of every leaf before any of them is
// clicked.
func (n *Navigator) labels(ctx context.Context, st Subtree) ([]string, error) {
	els, err := n.Page.WaitElements(ctx, leafLabelsXPath(st.ID), n.Retry.WaitTimeout)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			return nil, err
		}
		if label := squash(text); label != "" {
			out = append(out, label)
		}
	}
	return out, nil
}

// leaf processes one page with its own attempt budget.
func (n *Navigator) leaf(ctx context.Context, st Subtree, label string) (record.Outcome, error) {
	log := n.Log.With(zap.Stringer("subtree", st), zap.String("page", label))
	out := record.Outcome{
		Section: n.Section,
		Kind:    st.Kind,
		Label:   label,
		Path:    filepath.Join(st.Dir, record.FileName(label)),
	}

	var err error
	for attempt := 1; attempt <= n.Retry.LeafAttempts; attempt++ {
		out.Attempts = attempt
		log.Info("processing page", zap.Int("attempt", attempt), zap.Int("of", n.Retry.LeafAttempts))
		if err = n.visit(ctx, st, label, &out); err == nil {
			out.Status = record.StatusWritten
			out.Err = ""
			return out, nil
		}
		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, browser.ErrStale) {
			log.Warn("stale element, retrying", zap.Error(err))
			if serr := browser.Sleep(ctx, n.Retry.StaleWait); serr != nil {
				break
			}
			continue
		}
		log.Warn("failed processing page", zap.Bool("transient", browser.Transient(err)), zap.Error(err))
	}
	out.Status = record.StatusFailed
	out.Err = err.Error()
	return out, err
}

// visit re-resolves the leaf by its label, clicks it and exports the page
// it opens.
func (n *Navigator) visit(ctx context.Context, st Subtree, label string, out *record.Outcome) error {
	timeout := n.Retry.WaitTimeout

	prev := n.title(ctx)
	el, err := n.Page.WaitElement(ctx, leafXPath(st.ID, label), timeout)
	if err != nil {
		return err
	}
	if err := scrollAndClick(el); err != nil {
		return err
	}
	if err := browser.Sleep(ctx, n.Retry.Settle); err != nil {
		return err
	}
	if err := n.waitTitle(ctx, prev, label); err != nil {
		return err
	}

	html, err := n.Page.HTML(ctx)
	if err != nil {
		return err
	}
	rec, drift, err := extract.ForKind(st.Kind).Extract(label, html)
	if err != nil {
		return err
	}
	for _, d := range drift {
		n.Log.Warn("possible selector drift", zap.String("page", label), zap.Stringer("drift", d))
	}
	out.Header = rec.Header
	out.Paragraph = rec.Paragraph

	res, err := n.Writer.Write(rec, out.Path)
	out.Sheets = res.Written
	if err != nil {
		return err
	}
	n.Log.Debug("wrote page", zap.String("path", res.Path), zap.Int("sheets", len(res.Written)))
	return nil
}

// title returns the title of the page currently shown, or "" when no page
// is shown yet.
func (n *Navigator) title(ctx context.Context) string {
	has, err := n.Page.Has(ctx, headerXPath)
	if err != nil || !has {
		return ""
	}
	el, err := n.Page.WaitElement(ctx, headerXPath, n.Retry.WaitTimeout)
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return squash(text)
}

// waitTitle waits until the shown page is no longer the one titled prev.
// A title matching label also counts, since a retried leaf may already be
// on screen.
func (n *Navigator) waitTitle(ctx context.Context, prev, label string) error {
	deadline := time.Now().Add(n.Retry.WaitTimeout)
	for {
		el, err := n.Page.WaitElement(ctx, headerXPath, n.Retry.WaitTimeout)
		if err != nil {
			return err
		}
		text, err := el.Text()
		if err != nil {
			return err
		}
		text = squash(text)
		if prev == "" || text != prev || strings.EqualFold(text, label) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("page still shows %q after clicking %q: %w", prev, label, browser.ErrTimeout)
		}
		if err := browser.Sleep(ctx, settlePoll); err != nil {
			return err
		}
	}
}

func (n *Navigator) handle(o record.Outcome) {
	if n.OutputHandler == nil {
		return
	}
	if err := n.OutputHandler.HandlePage(o); err != nil {
		n.Log.Warn("failed recording page", zap.String("page", o.Label), zap.Error(err))
	}
}

func scrollAndClick(el browser.Element) error {
	if err := el.ScrollIntoView(); err != nil {
		return err
	}
	return el.Click()
}

// squash collapses runs of whitespace and trims the ends.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
