package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlfredBerg/docs-table-scraper/internal/record"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SqliteOutput is the run ledger: one row per run and one row per leaf page.
type SqliteOutput struct {
	Database string
	BasePath string
	Log      *zap.Logger

	RunID string

	db       *sql.DB
	pageChan chan record.Outcome
	wg       sync.WaitGroup

	dbLock sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id text not null primary key,
	base_path text,
	started_at text,
	finished_at text
);
CREATE TABLE IF NOT EXISTS pages (
	id integer not null primary key,
	run_id text not null references runs(id),
	section text,
	kind text,
	label text,
	path text,
	header text,
	paragraph text,
	sheets text,
	status text,
	attempts integer,
	error text,
	recorded_at text
);`

func (o *SqliteOutput) Init() error {
	if o.Database == "" {
		return errors.New("sqlite database file not set")
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", o.Database)
	if err != nil {
		return err
	}
	o.db = db

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	o.RunID = uuid.NewString()
	_, err = db.Exec("INSERT INTO runs(id, base_path, started_at) VALUES(?, ?, ?);",
		o.RunID, o.BasePath, now())
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to record run: %w", err)
	}

	//Buffered channel as pages from many sections can come in bursts
	o.pageChan = make(chan record.Outcome, 20)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for p := range o.pageChan {
			if err := o.insert(p); err != nil {
				o.Log.Error("failed to record page", zap.String("label", p.Label), zap.Error(err))
			}
		}
	}()
	return nil
}

func (o *SqliteOutput) insert(p record.Outcome) error {
	sheets, err := json.Marshal(p.Sheets)
	if err != nil {
		return err
	}
	o.dbLock.Lock()
	defer o.dbLock.Unlock()
	_, err = o.db.Exec(`INSERT INTO pages(run_id, section, kind, label, path, header, paragraph, sheets, status, attempts, error, recorded_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		o.RunID, p.Section, p.Kind.String(), p.Label, p.Path, p.Header, p.Paragraph,
		string(sheets), string(p.Status), p.Attempts, p.Err, now())
	return err
}

// HandlePage queues one page outcome. It is safe to use from many goroutines
// until Cleanup is called.
func (o *SqliteOutput) HandlePage(p record.Outcome) error {
	o.pageChan <- p
	return nil
}

// Cleanup flushes queued pages, stamps the run as finished and closes the
// database.
func (o *SqliteOutput) Cleanup() error {
	close(o.pageChan)
	o.wg.Wait()

	o.dbLock.Lock()
	defer o.dbLock.Unlock()
	_, err := o.db.Exec("UPDATE runs SET finished_at = ? WHERE id = ?;", now(), o.RunID)
	return errors.Join(err, o.db.Close())
}

// Summary counts the pages of a run by status.
func Summary(database, runID string) (map[record.Status]int, error) {
	db, err := sql.Open("sqlite3", database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT status, count(*) FROM pages WHERE run_id = ? GROUP BY status;", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[record.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[record.Status(status)] = n
	}
	return out, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
