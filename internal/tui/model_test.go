package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/session"
	"github.com/nyfy17/VitaMobile/internal/snapshot"
	"github.com/nyfy17/VitaMobile/internal/store"
)

type memorySink struct {
	docs []export.Document
	err  error
}

func (m *memorySink) Deliver(_ context.Context, doc export.Document) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.docs = append(m.docs, doc)
	return "/exports/vita_corrections_2024-06-07.json", nil
}

func testRecords() []models.ReviewRecord {
	return []models.ReviewRecord{
		{ID: models.IntID(1), Subject: "Quarterly numbers", SenderName: "Dana", AICategory: "3.3 Med Info",
			CategoryConfidence: 42, AIProject: "Apollo", ProjectConfidence: 30, Body: "Numbers attached."},
		{ID: models.IntID(2), Subject: "Lunch?", AICategory: "4.1 Low Reply", CategoryConfidence: 95, Project: "Gemini"},
	}
}

func newTestModel(t *testing.T, records []models.ReviewRecord, projects []string) (*Model, *session.Session, *memorySink) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "vita.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	sess := session.New(st)
	if records != nil {
		require.NoError(t, sess.Load(context.Background(), &snapshot.Snapshot{Records: records, Projects: projects}))
	}
	sink := &memorySink{}
	m := New(context.Background(), sess, Options{Sink: sink, Device: "tui-test"})
	return m, sess, sink
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and returns the command it produced.
func press(m *Model, s string) tea.Cmd {
	_, cmd := m.Update(key(s))
	return cmd
}

// complete runs an action command and feeds its result back.
func complete(t *testing.T, m *Model, cmd tea.Cmd) actionDoneMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(actionDoneMsg)
	require.True(t, ok, "expected an action command")
	m.Update(msg)
	return msg
}

func TestNew_ShowsFirstRecord(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(), nil)

	assert.Equal(t, phaseReview, m.phase)
	view := m.View()
	assert.Contains(t, view, "Email 1 of 2")
	assert.Contains(t, view, "Quarterly numbers")
	assert.Contains(t, view, "Dana")
	assert.Contains(t, view, "42%")
	assert.NotContains(t, view, "Numbers attached.")
}

func TestNew_IdleAndComplete(t *testing.T) {
	m, _, _ := newTestModel(t, nil, nil)
	assert.Equal(t, phaseIdle, m.phase)
	assert.Contains(t, m.View(), "No snapshot loaded")

	m, _, _ = newTestModel(t, []models.ReviewRecord{}, nil)
	assert.Equal(t, phaseComplete, m.phase)
	assert.Contains(t, m.View(), "Review complete")
}

func TestApprove(t *testing.T) {
	m, sess, _ := newTestModel(t, testRecords(), nil)

	cmd := press(m, "a")
	assert.True(t, m.busy)
	complete(t, m, cmd)

	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "Email 2 of 2")
	require.Len(t, sess.Corrections(), 1)
	assert.True(t, sess.Corrections()[0].Approved)
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m, sess, _ := newTestModel(t, testRecords(), nil)

	cmd := press(m, "a")
	assert.Nil(t, press(m, "a"), "second approve must be ignored")
	assert.Nil(t, press(m, "s"))
	assert.Contains(t, m.View(), "Saving...")
	complete(t, m, cmd)

	assert.Len(t, sess.Corrections(), 1)
	assert.Equal(t, 1, sess.Stats().Position)
}

func TestSkipToComplete(t *testing.T) {
	m, sess, _ := newTestModel(t, testRecords(), nil)

	complete(t, m, press(m, "s"))
	complete(t, m, press(m, "s"))

	assert.Equal(t, phaseComplete, m.phase)
	assert.Empty(t, sess.Corrections())
	assert.Contains(t, m.View(), "All 2 emails reviewed")

	// Review keys do nothing on the completion screen
	assert.Nil(t, press(m, "a"))
}

func TestToggleBody(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(), nil)

	press(m, "t")
	assert.Contains(t, m.View(), "Numbers attached.")
	press(m, "t")
	assert.NotContains(t, m.View(), "Numbers attached.")

	press(m, "t")
	complete(t, m, press(m, "s"))
	assert.False(t, m.showBody, "body collapses on the next record")
}

func TestCorrectFlow(t *testing.T) {
	m, sess, _ := newTestModel(t, testRecords(), []string{"Apollo", "Gemini"})

	assert.Nil(t, press(m, "c"))
	assert.Equal(t, phaseCategory, m.phase)
	assert.Contains(t, m.View(), "(Keep: 3.3 Med Info)")

	// First taxonomy entry sits just below the keep option
	press(m, "down")
	press(m, "enter")
	require.Equal(t, phaseCategoryReason, m.phase)

	press(m, "board meeting")
	press(m, "enter")
	require.Equal(t, phaseProject, m.phase)
	assert.Contains(t, m.View(), "(Keep: Apollo)")

	press(m, "down")
	press(m, "down")
	press(m, "enter")
	require.Equal(t, phaseProjectReason, m.phase)

	press(m, "sender is on Gemini")
	complete(t, m, press(m, "enter"))

	log := sess.Corrections()
	require.Len(t, log, 1)
	c := log[0]
	assert.False(t, c.Approved)
	require.NotNil(t, c.CategoryCorrection)
	assert.Equal(t, models.FieldCorrection{Original: "3.3 Med Info", Corrected: "1.1 Urgent Reply", UserReasoning: "board meeting"}, *c.CategoryCorrection)
	require.NotNil(t, c.ProjectCorrection)
	assert.Equal(t, models.FieldCorrection{Original: "Apollo", Corrected: "Gemini", UserReasoning: "sender is on Gemini"}, *c.ProjectCorrection)
	assert.Equal(t, phaseReview, m.phase)
	assert.Equal(t, 1, m.stats.Position)
}

func TestCorrectKeepingBothApproves(t *testing.T) {
	m, sess, _ := newTestModel(t, testRecords(), nil)

	press(m, "c")
	press(m, "enter") // keep category, no reason prompt
	require.Equal(t, phaseProject, m.phase)
	assert.Contains(t, m.View(), "General", "project picker falls back to the default label")
	complete(t, m, press(m, "enter"))

	require.Len(t, sess.Corrections(), 1)
	assert.True(t, sess.Corrections()[0].Approved)
}

func TestCorrectCancel(t *testing.T) {
	m, sess, _ := newTestModel(t, testRecords(), nil)

	press(m, "c")
	press(m, "down")
	press(m, "enter")
	press(m, "typo")
	press(m, "esc")

	assert.Equal(t, phaseReview, m.phase)
	assert.Empty(t, sess.Corrections())
	assert.Equal(t, 0, sess.Stats().Position)

	// q in the picker does not quit
	press(m, "c")
	assert.Nil(t, press(m, "q"))
	assert.Equal(t, phaseCategory, m.phase)
}

func TestExport(t *testing.T) {
	m, sess, sink := newTestModel(t, testRecords(), nil)

	complete(t, m, press(m, "a"))
	complete(t, m, press(m, "a"))
	require.Equal(t, phaseComplete, m.phase)

	msg := complete(t, m, press(m, "e"))
	require.NoError(t, msg.err)
	require.Len(t, sink.docs, 1)
	assert.Equal(t, "tui-test", sink.docs[0].Device)
	assert.Equal(t, 2, sink.docs[0].EmailCount)
	assert.Empty(t, sess.Corrections())

	view := m.View()
	assert.Contains(t, view, "Exported 2 corrections")
	assert.Contains(t, view, "Next steps")
}

func TestExportNothing(t *testing.T) {
	m, _, sink := newTestModel(t, testRecords(), nil)

	msg := complete(t, m, press(m, "e"))
	assert.True(t, errors.Is(msg.err, session.ErrNothingToExport))
	assert.Empty(t, sink.docs)
	assert.Contains(t, m.View(), "No corrections to export.")
	assert.Equal(t, phaseReview, m.phase)
}

func TestExportFailureShowsError(t *testing.T) {
	m, sess, sink := newTestModel(t, testRecords(), nil)
	sink.err = errors.New("read-only filesystem")

	complete(t, m, press(m, "a"))
	complete(t, m, press(m, "e"))

	assert.Contains(t, m.View(), "read-only filesystem")
	assert.Len(t, sess.Corrections(), 1)
}

func TestNew_DefaultsSink(t *testing.T) {
	_, sess, _ := newTestModel(t, testRecords(), nil)
	m := New(context.Background(), sess, Options{})

	sink, ok := m.opts.Sink.(*export.FileSink)
	require.True(t, ok)
	assert.Equal(t, ".", sink.Dir)
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(), nil)

	cmd := press(m, "q")
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)

	// ctrl+c quits even while busy
	press(m, "a")
	cmd = press(m, "ctrl+c")
	require.NotNil(t, cmd)
	_, ok = cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestWindowResize(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(), nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 116, m.body.Width)
}

func TestConfidenceClass(t *testing.T) {
	assert.Equal(t, "low", confidenceClass(0, 50, 80))
	assert.Equal(t, "low", confidenceClass(49, 50, 80))
	assert.Equal(t, "medium", confidenceClass(50, 50, 80))
	assert.Equal(t, "medium", confidenceClass(79, 50, 80))
	assert.Equal(t, "high", confidenceClass(80, 50, 80))
	assert.Equal(t, "high", confidenceClass(100, 50, 80))
}

func TestBadgeUsesConfiguredBands(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(), nil)
	m.opts.LowConfidence, m.opts.HighConfidence = 20, 40
	assert.True(t, strings.Contains(m.badge(42), "42%"))
}
