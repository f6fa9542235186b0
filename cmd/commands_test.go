package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/lock"
	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/session"
	"github.com/nyfy17/VitaMobile/internal/snapshot"
	"github.com/nyfy17/VitaMobile/internal/snapshot/snapshottest"
)

func sampleRecords() []models.ReviewRecord {
	return []models.ReviewRecord{
		{ID: models.IntID(11), Subject: "Board deck", SenderName: "Avery", AICategory: "3.3 Med Info",
			CategoryConfidence: 35, CategoryReasoning: "FYI tone", AIProject: "Apollo", ProjectConfidence: 40},
		{ID: models.IntID(12), Subject: "Team lunch", Sender: "pat@example.com", AICategory: "4.1 Low Reply",
			CategoryConfidence: 70, Project: "Gemini", ProjectConfidence: 60},
		{ID: models.IntID(13), Subject: "Invoice overdue", AICategory: "2.2 High Task", CategoryConfidence: 95, ProjectConfidence: 90},
	}
}

// writeSnapshot writes a snapshot file into dir and returns its path.
func writeSnapshot(t *testing.T, dir string, records []models.ReviewRecord, projects []string) string {
	t.Helper()
	path := filepath.Join(dir, "snapshot.db")
	require.NoError(t, os.WriteFile(path, snapshottest.Build(t, records, projects), 0644))
	return path
}

// loadSample loads the sample snapshot through the load command.
func loadSample(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, loadRun(writeSnapshot(t, dir, sampleRecords(), []string{"Gemini", "Apollo"})))
}

// reopen drops the shared deps so the next command resumes from disk.
func reopen() { closeDeps() }

func TestLoad(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)

	assert.Contains(t, stdout(), "Loaded 3 emails")

	reopen()
	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.StateReviewing, sess.State())
	assert.Equal(t, 3, sess.Stats().Total)
}

func TestLoad_RefusesInProgress(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)
	require.NoError(t, skipRun())

	err := loadRun(writeSnapshot(t, t.TempDir(), sampleRecords()[:1], nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	loadForce = true
	require.NoError(t, loadRun(writeSnapshot(t, t.TempDir(), sampleRecords()[:1], nil)))
	assert.Contains(t, stderr(), "Abandoning review")

	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Stats().Total)
	assert.Equal(t, 0, sess.Stats().Position)
}

func TestLoad_EmptySnapshot(t *testing.T) {
	dir := testEnv(t)

	err := loadRun(writeSnapshot(t, dir, nil, []string{"Apollo"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrNoRecords))

	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, sess.State())
}

func TestLoad_NotSnapshot(t *testing.T) {
	dir := testEnv(t)
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0644))

	err := loadRun(path)
	assert.True(t, errors.Is(err, snapshot.ErrNotSnapshot))
}

func TestLoad_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true

	loadSample(t, dir)
	assert.Contains(t, stderr(), "Would load 3 emails and 2 projects")

	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, sess.State())
}

func TestShow(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)

	showBody = true
	require.NoError(t, showRun())

	out := stdout()
	assert.Contains(t, out, "Email 1 of 3")
	assert.Contains(t, out, "Board deck")
	assert.Contains(t, out, "Avery")
	assert.Contains(t, out, "FYI tone")
	assert.Contains(t, out, "35%")
	assert.Contains(t, out, "No email content")
}

func TestShow_NotLoaded(t *testing.T) {
	testEnv(t)

	err := showRun()
	assert.True(t, errors.Is(err, session.ErrNotLoaded))
	assert.Contains(t, err.Error(), "vita load")
}

func TestApproveCorrectSkipPersist(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)

	require.NoError(t, approveRun())
	reopen()

	correctCategory = "1.1 Urgent Reply"
	correctCategoryReason = "asked for reply today"
	correctProject = "Apollo"
	require.NoError(t, correctRun())
	reopen()

	require.NoError(t, skipRun())
	assert.Contains(t, stdout(), "Review complete")
	reopen()

	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.StateComplete, sess.State())

	log := sess.Corrections()
	require.Len(t, log, 2)
	assert.Equal(t, models.IntID(11), log[0].EmailID)
	assert.True(t, log[0].Approved)
	assert.Equal(t, models.IntID(12), log[1].EmailID)
	require.NotNil(t, log[1].CategoryCorrection)
	assert.Equal(t, "4.1 Low Reply", log[1].CategoryCorrection.Original)
	assert.Equal(t, "asked for reply today", log[1].CategoryCorrection.UserReasoning)
	require.NotNil(t, log[1].ProjectCorrection)
	assert.Equal(t, "Gemini", log[1].ProjectCorrection.Original)

	err = approveRun()
	assert.True(t, errors.Is(err, session.ErrQueueExhausted))
}

func TestCorrect_Validation(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)

	correctCategory = "9.9 Nope"
	err := correctRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")

	correctCategory = ""
	correctProject = "Mercury"
	err = correctRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown project")

	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Stats().Position)
}

func TestCorrect_NoChoicesApproves(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)

	correctCategoryReason = "ignored without a category"
	require.NoError(t, correctRun())
	assert.Contains(t, stdout(), "recorded as approved")

	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.True(t, sess.Corrections()[0].Approved)
}

func TestActions_DryRun(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, approveRun())
	require.NoError(t, skipRun())
	correctCategory = "5.2 Delete"
	require.NoError(t, correctRun())

	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Stats().Position)
	assert.Empty(t, sess.Corrections())
	assert.Contains(t, stderr(), "Would approve #11")
}

func TestExport(t *testing.T) {
	dir := testEnv(t)
	viper.Set("export.device", "Tablet")
	loadSample(t, dir)
	require.NoError(t, approveRun())
	require.NoError(t, skipRun())

	exportDir = filepath.Join(dir, "out")
	require.NoError(t, exportRun())
	assert.Contains(t, stdout(), "Exported 1 corrections")

	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(exportDir, entries[0].Name()))
	require.NoError(t, err)
	var doc export.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Tablet", doc.Device)
	assert.Equal(t, 3, doc.EmailCount)
	require.Len(t, doc.Corrections, 1)

	// Cleared, and the next export is a no-op
	require.NoError(t, exportRun())
	assert.Contains(t, stderr(), "No corrections to export")
	entries, err = os.ReadDir(exportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExport_DefaultDir(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)
	require.NoError(t, approveRun())

	require.NoError(t, exportRun())
	entries, err := os.ReadDir(filepath.Join(dir, "exports"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStatus(t *testing.T) {
	dir := testEnv(t)

	require.NoError(t, statusRun())
	assert.Contains(t, stdout(), "idle")
	assert.Contains(t, stdout(), "vita load")

	loadSample(t, dir)
	require.NoError(t, approveRun())
	require.NoError(t, statusRun())
	assert.Contains(t, stdout(), "reviewing")
	assert.Contains(t, stdout(), "1 of 3")
}

func TestQueue(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)
	require.NoError(t, skipRun())

	queueLimit = 1
	require.NoError(t, queueRun())
	out := stdout()
	assert.Contains(t, out, "Team lunch")
	assert.NotContains(t, out, "Invoice overdue")
	assert.Contains(t, out, "1 more not shown")
}

func TestCategoriesAndProjects(t *testing.T) {
	dir := testEnv(t)

	categoriesRun()
	assert.Contains(t, stdout(), "4.2 Delegate")

	require.NoError(t, projectsRun())
	assert.Contains(t, stdout(), "General")

	loadSample(t, dir)
	require.NoError(t, projectsRun())
	assert.Contains(t, stdout(), "Apollo")
	assert.Contains(t, stdout(), "Gemini")
}

func TestReset(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)
	require.NoError(t, approveRun())

	require.NoError(t, resetRun())
	assert.Contains(t, stdout(), "1 corrections are still pending export")

	reopen()
	sess, err := getSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, sess.State())
	assert.Len(t, sess.Corrections(), 1)

	// Loading again no longer needs --force
	loadSample(t, dir)
}

func TestMutationsRefusedWhileLocked(t *testing.T) {
	dir := testEnv(t)
	loadSample(t, dir)

	// The test binary's parent stands in for a running review screen.
	require.NoError(t, lock.New(dir).WritePID(os.Getppid()))

	for name, run := range map[string]func() error{
		"approve": approveRun,
		"skip":    skipRun,
		"export":  exportRun,
		"reset":   resetRun,
	} {
		err := run()
		assert.True(t, errors.Is(err, lock.ErrHeld), name)
	}

	// Read-only commands still work
	require.NoError(t, statusRun())
	assert.Contains(t, stdout(), "In use")
}

func TestAcquireLock(t *testing.T) {
	dir := testEnv(t)

	release, err := acquireLock()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, lock.FileName))

	// Own lock does not block one-shot commands in this process
	assert.NoError(t, checkUnlocked())

	release()
	assert.NoFileExists(t, filepath.Join(dir, lock.FileName))
}

func TestVersion(t *testing.T) {
	testEnv(t)
	buildVersion, buildCommit = "1.2.3", "abc123"
	t.Cleanup(func() { buildVersion, buildCommit = "dev", "none" })

	versionRun()
	assert.Contains(t, stdout(), "vita 1.2.3 (commit abc123")
}
