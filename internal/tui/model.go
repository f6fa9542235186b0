// Package tui is the interactive single-record review screen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/session"
)

type phase int

const (
	phaseIdle phase = iota
	phaseReview
	phaseCategory
	phaseCategoryReason
	phaseProject
	phaseProjectReason
	phaseComplete
)

// Options configures the review screen.
type Options struct {
	Sink           export.Sink // defaults to a file in the working directory
	Device         string
	LowConfidence  int // below: low band
	HighConfidence int // at or above: high band
	Logger         *zap.Logger
}

// actionDoneMsg reports a finished session mutation.
type actionDoneMsg struct {
	action string
	result *session.ExportResult
	err    error
}

// choiceItem implements list.Item for the correction pickers. An empty value
// keeps the AI label.
type choiceItem struct {
	title string
	value string
}

func (i choiceItem) Title() string       { return i.title }
func (i choiceItem) Description() string { return "" }
func (i choiceItem) FilterValue() string { return i.title }

// Model drives one session. Session mutations run as commands; while one is
// in flight every key except ctrl+c is ignored, and the rendered record is
// only refreshed once the mutation has reported back.
type Model struct {
	ctx  context.Context
	sess *session.Session
	opts Options
	log  *zap.Logger

	phase    phase
	busy     bool
	showBody bool
	width    int
	height   int

	rec      models.ReviewRecord
	stats    session.Stats
	projects []string

	draft  session.CorrectInput
	picker list.Model
	reason textinput.Model
	body   viewport.Model

	status   string
	errMsg   string
	exported string
}

// New builds the screen for sess.
func New(ctx context.Context, sess *session.Session, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sink == nil {
		opts.Sink = export.NewFileSink(".")
	}
	if opts.LowConfidence == 0 && opts.HighConfidence == 0 {
		opts.LowConfidence, opts.HighConfidence = 50, 80
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	picker := list.New(nil, delegate, 60, 16)
	picker.SetShowStatusBar(false)
	picker.SetFilteringEnabled(false)
	picker.DisableQuitKeybindings()

	reason := textinput.New()
	reason.Prompt = "› "
	reason.CharLimit = 500

	m := &Model{
		ctx:    ctx,
		sess:   sess,
		opts:   opts,
		log:    opts.Logger,
		picker: picker,
		reason: reason,
		body:   viewport.New(76, 12),
		width:  80,
		height: 24,
	}
	m.refresh()
	return m
}

// Run shows the review screen until the user quits.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	p := tea.NewProgram(New(ctx, sess, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init is called once when the program starts.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case actionDoneMsg:
		m.finish(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch m.phase {
		case phaseCategory, phaseProject:
			return m, m.updatePicker(msg)
		case phaseCategoryReason, phaseProjectReason:
			return m, m.updateReason(msg)
		default:
			return m, m.handleKey(msg)
		}
	}

	var cmd tea.Cmd
	switch m.phase {
	case phaseCategory, phaseProject:
		m.picker, cmd = m.picker.Update(msg)
	case phaseCategoryReason, phaseProjectReason:
		m.reason, cmd = m.reason.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "e":
		return m.run("export", func(ctx context.Context) (*session.ExportResult, error) {
			return m.sess.Export(ctx, m.opts.Sink, m.opts.Device)
		})
	}

	if m.phase != phaseReview {
		return nil
	}

	switch msg.String() {
	case "a":
		return m.run("approve", func(ctx context.Context) (*session.ExportResult, error) {
			return nil, m.sess.Approve(ctx)
		})
	case "s":
		return m.run("skip", func(ctx context.Context) (*session.ExportResult, error) {
			return nil, m.sess.Skip(ctx)
		})
	case "c":
		m.draft = session.CorrectInput{}
		m.errMsg = ""
		m.openPicker("Category", models.Categories, orDefault(m.rec.AICategory, "Not analyzed"))
		m.phase = phaseCategory
		return nil
	case "t":
		m.showBody = !m.showBody
		return nil
	}

	if m.showBody {
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updatePicker(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.cancelCorrection()
		return nil
	case "enter":
		item, _ := m.picker.SelectedItem().(choiceItem)
		if m.phase == phaseCategory {
			m.draft.Category = item.value
			if item.value == "" {
				m.askProject()
				return nil
			}
			return m.askReason(phaseCategoryReason, fmt.Sprintf("Why %s? (optional)", item.value))
		}
		m.draft.Project = item.value
		if item.value == "" {
			return m.submitCorrection()
		}
		return m.askReason(phaseProjectReason, fmt.Sprintf("Why %s? (optional)", item.value))
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return cmd
}

func (m *Model) updateReason(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.cancelCorrection()
		return nil
	case "enter":
		text := strings.TrimSpace(m.reason.Value())
		m.reason.Blur()
		if m.phase == phaseCategoryReason {
			m.draft.CategoryReason = text
			m.askProject()
			return nil
		}
		m.draft.ProjectReason = text
		return m.submitCorrection()
	}

	var cmd tea.Cmd
	m.reason, cmd = m.reason.Update(msg)
	return cmd
}

func (m *Model) openPicker(title string, choices []string, current string) {
	items := make([]list.Item, 0, len(choices)+1)
	items = append(items, choiceItem{title: fmt.Sprintf("(Keep: %s)", current)})
	for _, c := range choices {
		items = append(items, choiceItem{title: c, value: c})
	}
	m.picker.Title = title
	m.picker.SetItems(items)
	m.picker.Select(0)
}

func (m *Model) askProject() {
	m.openPicker("Project", m.projects, orDefault(m.rec.OriginalProject(), "None"))
	m.phase = phaseProject
}

func (m *Model) askReason(p phase, placeholder string) tea.Cmd {
	m.phase = p
	m.reason.SetValue("")
	m.reason.Placeholder = placeholder
	return m.reason.Focus()
}

func (m *Model) cancelCorrection() {
	m.reason.Blur()
	m.draft = session.CorrectInput{}
	m.phase = phaseReview
}

func (m *Model) submitCorrection() tea.Cmd {
	in := m.draft
	m.draft = session.CorrectInput{}
	m.phase = phaseReview
	return m.run("correct", func(ctx context.Context) (*session.ExportResult, error) {
		return nil, m.sess.Correct(ctx, in)
	})
}

// run marks the screen busy and returns a command performing fn.
func (m *Model) run(action string, fn func(context.Context) (*session.ExportResult, error)) tea.Cmd {
	m.busy = true
	m.errMsg = ""
	ctx := m.ctx
	return func() tea.Msg {
		res, err := fn(ctx)
		return actionDoneMsg{action: action, result: res, err: err}
	}
}

func (m *Model) finish(msg actionDoneMsg) {
	m.busy = false
	m.status = ""

	switch {
	case errors.Is(msg.err, session.ErrNothingToExport):
		m.status = "No corrections to export."
	case msg.err != nil:
		m.errMsg = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		m.log.Warn("review action failed", zap.String("action", msg.action), zap.Error(msg.err))
	case msg.action == "export" && msg.result != nil:
		m.exported = msg.result.Location
		m.status = fmt.Sprintf("Exported %d corrections to %s", len(msg.result.Document.Corrections), msg.result.Location)
	}
	m.refresh()
}

// refresh copies what the view renders out of the session.
func (m *Model) refresh() {
	m.stats = m.sess.Stats()
	m.projects = models.ProjectChoices(m.sess.Projects())

	switch m.sess.State() {
	case session.StateIdle:
		m.phase = phaseIdle
	case session.StateComplete:
		m.phase = phaseComplete
	default:
		rec, err := m.sess.Current()
		if err != nil {
			m.errMsg = err.Error()
			return
		}
		if rec.ID != m.rec.ID || m.phase != phaseReview {
			m.showBody = false
		}
		m.rec = rec
		m.phase = phaseReview
		m.setBody()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.picker.SetSize(max(20, width-4), max(5, height-14))
	m.reason.Width = max(20, width-8)
	m.body.Width = max(20, width-4)
	m.body.Height = max(3, height-18)
	m.setBody()
}

func (m *Model) setBody() {
	m.body.SetContent(wrap(orDefault(m.rec.Content(), "No email content"), m.body.Width))
	m.body.GotoTop()
}
