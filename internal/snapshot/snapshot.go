// Package snapshot reads the SQLite review snapshot exported by the desktop
// classifier into an ordered review queue and a project label set.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/nyfy17/VitaMobile/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteHeader = "SQLite format 3\x00"

var (
	ErrNotSnapshot  = errors.New("not a SQLite snapshot")
	ErrNoQueueTable = errors.New("snapshot has no review_queue table")
	ErrNoRecords    = errors.New("no reviewable records in snapshot")
)

// Snapshot is a parsed review snapshot. Raw keeps the original bytes so the
// session can be resumed without re-selecting the source file.
type Snapshot struct {
	Records  []models.ReviewRecord
	Projects []string
	Raw      []byte
}

// ParseFile reads and parses the snapshot at path.
func ParseFile(ctx context.Context, path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(ctx, data)
}

// Parse decodes snapshot bytes. Records come back ordered by ascending
// category confidence, then project confidence; projects by name.
func Parse(ctx context.Context, data []byte) (*Snapshot, error) {
	if len(data) < len(sqliteHeader) || !bytes.Equal(data[:len(sqliteHeader)], []byte(sqliteHeader)) {
		return nil, ErrNotSnapshot
	}

	path, cleanup, err := materialize(data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	ok, err := tableExists(ctx, db, "review_queue")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoQueueTable
	}

	records, err := readQueue(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	projects, err := readProjects(ctx, db)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Records: records, Projects: projects, Raw: data}, nil
}

// materialize writes data to a private temp file; the SQLite driver only
// opens paths. The returned cleanup removes the file and any sidecars.
func materialize(data []byte) (string, func(), error) {
	dir, err := os.MkdirTemp("", "vita-snapshot-")
	if err != nil {
		return "", func() {}, fmt.Errorf("create snapshot dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, newULID()+".db")
	if err := os.WriteFile(path, data, 0600); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("write snapshot: %w", err)
	}
	return path, cleanup, nil
}

func newULID() string {
	return ulid.Make().String()
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inspect snapshot: %w", err)
	}
	return count > 0, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info('"+table+"')")
	if err != nil {
		return nil, fmt.Errorf("inspect %s columns: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// queueOrder builds the ORDER BY clause from whichever confidence columns
// the snapshot actually has.
func queueOrder(cols map[string]bool) string {
	var keys []string
	for _, c := range []string{"category_confidence", "project_confidence"} {
		if cols[c] {
			keys = append(keys, c+" ASC")
		}
	}
	if len(keys) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(keys, ", ")
}

func readQueue(ctx context.Context, db *sql.DB) ([]models.ReviewRecord, error) {
	cols, err := tableColumns(ctx, db, "review_queue")
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM review_queue"+queueOrder(cols))
	if err != nil {
		return nil, fmt.Errorf("query review_queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read review_queue columns: %w", err)
	}

	var records []models.ReviewRecord
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan review_queue row: %w", err)
		}

		var r models.ReviewRecord
		for i, name := range names {
			if set, ok := fieldSetters[strings.ToLower(name)]; ok {
				set(&r, values[i])
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func readProjects(ctx context.Context, db *sql.DB) ([]string, error) {
	ok, err := tableExists(ctx, db, "projects")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if name.Valid && name.String != "" {
			projects = append(projects, name.String)
		}
	}
	return projects, rows.Err()
}
