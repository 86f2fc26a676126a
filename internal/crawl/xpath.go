package crawl

import (
	"fmt"
	"strings"
)

// Markup of the navigation tree and the content page.
const (
	leafItemClass  = "oj-typography-body-xs tree-view-row oj-treeview-item oj-treeview-leaf"
	leafLabelClass = "oj-treeview-item-text tree-view-item"
	headerXPath    = "//header/h1[@class='fa-chapter topic_link']"
)

func containerXPath(id string) string {
	return fmt.Sprintf("//li[@id=%s]", literal(id))
}

func collapsedXPath(id string) string {
	return containerXPath(id) + "[contains(@class, 'oj-collapsed')]"
}

func expandedXPath(id string) string {
	return containerXPath(id) + "[contains(@class, 'oj-expanded')]"
}

func leafLabelsXPath(id string) string {
	return fmt.Sprintf("%s//li[@class='%s']//span[@class='%s']", containerXPath(id), leafItemClass, leafLabelClass)
}

func firstLeafXPath(id string) string {
	return fmt.Sprintf("(%s//li[@class='%s'])[1]//span[@class='%s']", containerXPath(id), leafItemClass, leafLabelClass)
}

// leafXPath finds the label of one leaf by its visible text.
func leafXPath(id, label string) string {
	return fmt.Sprintf("%s//span[@class='%s'][normalize-space(.)=%s]", containerXPath(id), leafLabelClass, literal(label))
}

// literal quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds is built with concat().
func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
