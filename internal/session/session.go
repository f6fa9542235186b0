// Package session implements the review workflow: a queue of records
// traversed once, front to back, accumulating an append-only correction log
// that is persisted after every action and cleared by a successful export.
//
// A Session has exactly one mutator. It is not safe for concurrent use;
// front-ends that may dispatch from several goroutines must serialize calls.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/snapshot"
	"github.com/nyfy17/VitaMobile/internal/store"
)

// Persisted slot keys.
const (
	KeyCorrections = "vita_corrections"
	KeyCursor      = "vita_current_index"
	KeySnapshot    = "current"
)

var (
	ErrInvalidTransition = errors.New("operation not valid in current state")
	ErrNotLoaded         = errors.New("no snapshot loaded")
	ErrQueueExhausted    = errors.New("review queue exhausted")
	ErrNothingToExport   = errors.New("no corrections to export")
	ErrNoSink            = errors.New("no export destination configured")
)

// State is the lifecycle position of a session.
type State int

const (
	StateIdle      State = iota // no snapshot loaded
	StateReviewing              // cursor < queue length
	StateComplete               // cursor >= queue length
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReviewing:
		return "reviewing"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats summarizes progress through the queue.
type Stats struct {
	Remaining int // queue length minus cursor
	Corrected int // correction log length
	Position  int // cursor
	Total     int // queue length
}

// CorrectInput carries the reviewer's overrides. Empty choices keep the AI
// label; reasons are free text and may be empty.
type CorrectInput struct {
	Category       string
	CategoryReason string
	Project        string
	ProjectReason  string
}

// ExportResult describes a delivered export.
type ExportResult struct {
	Document export.Document
	Location string
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the logger used for best-effort persistence failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source for correction and export timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session owns the queue, the cursor and the correction log for one
// loaded snapshot.
type Session struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time

	loaded      bool
	queue       []models.ReviewRecord
	projects    []string
	cursor      int
	corrections []models.Correction
}

// New returns an idle session backed by st. Nothing is read from st until
// Resume.
func New(st store.Store, opts ...Option) *Session {
	s := &Session{
		store: st,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds a session and resumes whatever the store holds.
func Open(ctx context.Context, st store.Store, opts ...Option) *Session {
	s := New(st, opts...)
	s.Resume(ctx)
	return s
}

// Resume restores the correction log, the cursor and, when a snapshot blob
// was saved, the queue. Read failures are logged; the session then carries
// on with whatever could be restored.
func (s *Session) Resume(ctx context.Context) {
	if raw, err := s.store.GetValue(ctx, KeyCorrections); err == nil {
		var log []models.Correction
		if err := json.Unmarshal([]byte(raw), &log); err != nil {
			s.log.Error("decode saved corrections", zap.Error(err))
		} else {
			s.corrections = log
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("read saved corrections", zap.Error(err))
	}

	cursor := 0
	if raw, err := s.store.GetValue(ctx, KeyCursor); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			s.log.Warn("ignore saved cursor", zap.String("value", raw))
		} else {
			cursor = n
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("read saved cursor", zap.Error(err))
	}

	blob, err := s.store.GetBlob(ctx, KeySnapshot)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("read saved snapshot", zap.Error(err))
		}
		s.cursor = cursor
		return
	}

	snap, err := snapshot.Parse(ctx, blob.Data)
	if err != nil {
		s.log.Warn("parse saved snapshot", zap.Error(err), zap.Time("saved_at", blob.SavedAt))
		s.cursor = cursor
		return
	}

	s.loaded = true
	s.queue = snap.Records
	s.projects = snap.Projects
	s.cursor = min(cursor, len(s.queue))
	s.log.Debug("session resumed",
		zap.Int("cursor", s.cursor),
		zap.Int("queue", len(s.queue)),
		zap.Int("corrections", len(s.corrections)),
	)
}

// State reports the lifecycle state.
func (s *Session) State() State {
	switch {
	case !s.loaded:
		return StateIdle
	case s.cursor < len(s.queue):
		return StateReviewing
	default:
		return StateComplete
	}
}

// Load replaces the queue and project set and rewinds the cursor. It is
// refused while a review is in progress; call Reset first. The correction
// log is kept.
func (s *Session) Load(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return errors.New("load: nil snapshot")
	}
	if st := s.State(); st == StateReviewing {
		return fmt.Errorf("%w: load while %s", ErrInvalidTransition, st)
	}

	s.loaded = true
	s.queue = append([]models.ReviewRecord(nil), snap.Records...)
	s.projects = append([]string(nil), snap.Projects...)
	s.cursor = 0

	if snap.Raw != nil {
		if err := s.store.PutBlob(ctx, KeySnapshot, snap.Raw); err != nil {
			s.log.Warn("persist snapshot", zap.Error(err), zap.Int("bytes", len(snap.Raw)))
		}
	}
	s.persistCursor(ctx)
	s.log.Info("snapshot loaded", zap.Int("records", len(s.queue)), zap.Int("projects", len(s.projects)))
	return nil
}

// Reset unloads the queue and returns to idle. The correction log is kept.
func (s *Session) Reset(ctx context.Context) {
	s.loaded = false
	s.queue = nil
	s.projects = nil
	s.cursor = 0

	if err := s.store.Delete(ctx, KeySnapshot); err != nil {
		s.log.Warn("delete saved snapshot", zap.Error(err))
	}
	s.persistCursor(ctx)
}

// Approve accepts the current record's AI labels and advances.
func (s *Session) Approve(ctx context.Context) error {
	rec, err := s.reviewing("approve")
	if err != nil {
		return err
	}
	s.record(ctx, models.Correction{
		EmailID:   rec.ID,
		Timestamp: s.now().UTC(),
		Approved:  true,
	})
	return nil
}

// Correct records overrides for the current record and advances. With
// neither choice set the review counts as an approval.
func (s *Session) Correct(ctx context.Context, in CorrectInput) error {
	rec, err := s.reviewing("correct")
	if err != nil {
		return err
	}

	c := models.Correction{
		EmailID:   rec.ID,
		Timestamp: s.now().UTC(),
	}
	if choice := strings.TrimSpace(in.Category); choice != "" {
		c.CategoryCorrection = &models.FieldCorrection{
			Original:      rec.AICategory,
			Corrected:     choice,
			UserReasoning: in.CategoryReason,
		}
	}
	if choice := strings.TrimSpace(in.Project); choice != "" {
		c.ProjectCorrection = &models.FieldCorrection{
			Original:      rec.OriginalProject(),
			Corrected:     choice,
			UserReasoning: in.ProjectReason,
		}
	}
	if c.CategoryCorrection == nil && c.ProjectCorrection == nil {
		c.Approved = true
	}

	s.record(ctx, c)
	return nil
}

// Skip advances without recording anything. Skipped records do not appear
// in the export.
func (s *Session) Skip(ctx context.Context) error {
	if _, err := s.reviewing("skip"); err != nil {
		return err
	}
	s.cursor++
	s.persistCursor(ctx)
	return nil
}

// Export hands the correction log to sink and, once delivered, clears it.
// A failed delivery leaves the log untouched.
func (s *Session) Export(ctx context.Context, sink export.Sink, device string) (*ExportResult, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	if len(s.corrections) == 0 {
		return nil, ErrNothingToExport
	}

	doc := export.Build(s.corrections, len(s.queue), device, s.now())
	loc, err := sink.Deliver(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("deliver export: %w", err)
	}

	s.corrections = nil
	s.persistCorrections(ctx)
	s.persistCursor(ctx)
	s.log.Info("corrections exported", zap.Int("count", len(doc.Corrections)), zap.String("location", loc))
	return &ExportResult{Document: doc, Location: loc}, nil
}

// Current returns the record under the cursor.
func (s *Session) Current() (models.ReviewRecord, error) {
	switch s.State() {
	case StateIdle:
		return models.ReviewRecord{}, ErrNotLoaded
	case StateComplete:
		return models.ReviewRecord{}, ErrQueueExhausted
	}
	return s.queue[s.cursor], nil
}

// Stats reports progress. It has no side effects.
func (s *Session) Stats() Stats {
	return Stats{
		Remaining: max(len(s.queue)-s.cursor, 0),
		Corrected: len(s.corrections),
		Position:  s.cursor,
		Total:     len(s.queue),
	}
}

// Projects returns the snapshot's project labels.
func (s *Session) Projects() []string {
	return append([]string(nil), s.projects...)
}

// Pending returns the records from the cursor to the end of the queue.
func (s *Session) Pending() []models.ReviewRecord {
	if s.cursor >= len(s.queue) {
		return nil
	}
	return append([]models.ReviewRecord(nil), s.queue[s.cursor:]...)
}

// Corrections returns a copy of the correction log.
func (s *Session) Corrections() []models.Correction {
	return append([]models.Correction(nil), s.corrections...)
}

func (s *Session) reviewing(op string) (models.ReviewRecord, error) {
	if st := s.State(); st != StateReviewing {
		return models.ReviewRecord{}, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, st)
	}
	return s.queue[s.cursor], nil
}

func (s *Session) record(ctx context.Context, c models.Correction) {
	s.corrections = append(s.corrections, c)
	s.cursor++
	s.persistCorrections(ctx)
	s.persistCursor(ctx)
}

func (s *Session) persistCorrections(ctx context.Context) {
	log := s.corrections
	if log == nil {
		log = []models.Correction{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		s.log.Warn("encode corrections", zap.Error(err))
		return
	}
	if err := s.store.PutValue(ctx, KeyCorrections, string(data)); err != nil {
		s.log.Warn("persist corrections", zap.Error(err), zap.Int("count", len(log)))
	}
}

func (s *Session) persistCursor(ctx context.Context) {
	if err := s.store.PutValue(ctx, KeyCursor, strconv.Itoa(s.cursor)); err != nil {
		s.log.Warn("persist cursor", zap.Error(err), zap.Int("cursor", s.cursor))
	}
}
