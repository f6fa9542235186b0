// Package snapshottest builds SQLite snapshot files for tests.
package snapshottest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/nyfy17/VitaMobile/internal/models"

	_ "modernc.org/sqlite"
)

// Schema mirrors the desktop classifier's export tables.
const Schema = `
CREATE TABLE review_queue (
	id INTEGER PRIMARY KEY,` + queueColumns

// TextSchema is Schema with message-ID text keys.
const TextSchema = `
CREATE TABLE review_queue (
	id TEXT PRIMARY KEY,` + queueColumns

const queueColumns = `
	subject TEXT,
	sender TEXT,
	sender_name TEXT,
	received_date TEXT,
	sent_date TEXT,
	body TEXT,
	full_thread TEXT,
	oneline_summary TEXT,
	ai_category TEXT,
	category_confidence REAL,
	category_reasoning TEXT,
	ai_project TEXT,
	project TEXT,
	project_confidence REAL,
	project_clues TEXT
);
CREATE TABLE projects (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
`

// BuildSQL runs stmts against a fresh database and returns the file bytes.
func BuildSQL(t testing.TB, stmts ...string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open snapshot db: %v", err)
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close snapshot db: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot db: %v", err)
	}
	return data
}

// Build writes records and projects using Schema. Records are inserted in
// the given order; numeric IDs become the rowid, others get their position.
func Build(t testing.TB, records []models.ReviewRecord, projects []string) []byte {
	t.Helper()
	return build(t, Schema, records, projects, func(i int, r models.ReviewRecord) any {
		if n, ok := r.ID.Int(); ok {
			return n
		}
		return i + 1
	})
}

// BuildText writes records using TextSchema, storing each ID as text.
func BuildText(t testing.TB, records []models.ReviewRecord, projects []string) []byte {
	t.Helper()
	return build(t, TextSchema, records, projects, func(_ int, r models.ReviewRecord) any {
		return r.ID.String()
	})
}

func build(t testing.TB, schema string, records []models.ReviewRecord, projects []string, key func(int, models.ReviewRecord) any) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open snapshot db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	for i, r := range records {
		_, err := db.Exec(`INSERT INTO review_queue (id, subject, sender, sender_name, received_date, sent_date, body, full_thread,
			oneline_summary, ai_category, category_confidence, category_reasoning, ai_project, project, project_confidence, project_clues)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key(i, r), r.Subject, r.Sender, r.SenderName, r.ReceivedDate, r.SentDate, r.Body, r.FullThread,
			r.OnelineSummary, r.AICategory, r.CategoryConfidence, r.CategoryReasoning, r.AIProject, r.Project,
			r.ProjectConfidence, r.ProjectClues,
		)
		if err != nil {
			t.Fatalf("insert record %d: %v", i, err)
		}
	}

	for _, p := range projects {
		if _, err := db.Exec("INSERT INTO projects (name) VALUES (?)", p); err != nil {
			t.Fatalf("insert project %s: %v", p, err)
		}
	}

	if err := db.Close(); err != nil {
		t.Fatalf("close snapshot db: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot db: %v", err)
	}
	return data
}
