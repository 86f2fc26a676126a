package sqlite

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AlfredBerg/docs-table-scraper/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extraction.db")
	o := &SqliteOutput{Database: path, BasePath: "/tmp/out"}
	require.NoError(t, o.Init())
	require.NotEmpty(t, o.RunID)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := record.StatusWritten
			if i%5 == 0 {
				status = record.StatusFailed
			}
			_ = o.HandlePage(record.Outcome{
				Section: "2-AI",
				Kind:    record.KindView,
				Label:   "EMP_V",
				Sheets:  []record.Region{record.RegionHeader, record.RegionQuery},
				Status:  status,
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, o.Cleanup())

	counts, err := Summary(path, o.RunID)
	require.NoError(t, err)
	assert.Equal(t, map[record.Status]int{record.StatusWritten: 8, record.StatusFailed: 2}, counts)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var kind, sheets string
	require.NoError(t, db.QueryRow("SELECT kind, sheets FROM pages LIMIT 1;").Scan(&kind, &sheets))
	assert.Equal(t, "views", kind)
	assert.Equal(t, `["Header","Query"]`, sheets)

	var finished sql.NullString
	require.NoError(t, db.QueryRow("SELECT finished_at FROM runs WHERE id = ?;", o.RunID).Scan(&finished))
	assert.True(t, finished.Valid)
}

func TestInitWithoutDatabase(t *testing.T) {
	assert.Error(t, (&SqliteOutput{}).Init())
}
