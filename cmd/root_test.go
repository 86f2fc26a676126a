package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AlfredBerg/docs-table-scraper/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestAskOutput(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, "/tmp/hcm", askOutput(strings.NewReader("  /tmp/hcm \n"), &out))
	assert.Contains(t, out.String(), config.DefaultOutput())

	assert.Equal(t, config.DefaultOutput(), askOutput(strings.NewReader("\n"), &out))
	assert.Equal(t, config.DefaultOutput(), askOutput(strings.NewReader(""), &out))
}

func TestDash(t *testing.T) {
	assert.Equal(t, "-", dash(""))
	assert.Equal(t, "treeview4_0", dash("treeview4_0"))
}
