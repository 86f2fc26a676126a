package crawl

import (
	"fmt"

	"github.com/AlfredBerg/docs-table-scraper/internal/record"
)

// ExpandError is returned when a subtree could not be opened within the
// attempt budget.
type ExpandError struct {
	Section  string
	Subtree  Subtree
	Attempts int
	Err      error
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("failed to expand %s dropdown for section %s after %d attempts: %v",
		e.Subtree, e.Section, e.Attempts, e.Err)
}

func (e *ExpandError) Unwrap() error {
	return e.Err
}

// LeafError is returned when a leaf page kept failing. The remaining leaves
// of its subtree are not visited.
type LeafError struct {
	Section  string
	Kind     record.Kind
	Label    string
	Attempts int
	Err      error
}

func (e *LeafError) Error() string {
	return fmt.Sprintf("failed processing %s page %s in section %s after %d attempts: %v",
		e.Kind, e.Label, e.Section, e.Attempts, e.Err)
}

func (e *LeafError) Unwrap() error {
	return e.Err
}
