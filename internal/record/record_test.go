package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTableDropsMalformedRows(t *testing.T) {
	tbl := NewTable([]string{"a", "b"}, [][]string{{"1", "2"}, {"3"}, {"4", "5", "6"}, {"7", "8"}})
	assert.Equal(t, [][]string{{"1", "2"}, {"7", "8"}}, tbl.Rows)
	assert.Equal(t, 2, tbl.Dropped)
	assert.True(t, tbl.Shaped())
}

func TestNewTableWithoutHeadersKeepsRows(t *testing.T) {
	tbl := NewTable(nil, [][]string{{"1"}, {"2", "3"}})
	assert.Len(t, tbl.Rows, 2)
	assert.Zero(t, tbl.Dropped)
	assert.True(t, tbl.Shaped())
}

func TestShaped(t *testing.T) {
	assert.False(t, Table{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}}.Shaped())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "per_all_people_f.xlsx", FileName("PER_ALL_PEOPLE_F"))
	assert.Equal(t, "a_b.xlsx", FileName(" A/B "))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "Tables", KindTable.Dir())
	assert.Equal(t, "Views", KindView.Dir())
	assert.Equal(t, "views", KindView.String())
}
