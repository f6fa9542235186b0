package models

import (
	"math"
	"strings"
	"time"
)

// ReviewRecord is one categorized message awaiting human review.
// Records are read-only once loaded from a snapshot.
type ReviewRecord struct {
	ID                 RecordID
	Subject            string
	Sender             string
	SenderName         string
	ReceivedDate       string
	SentDate           string
	Body               string
	FullThread         string
	OnelineSummary     string
	AICategory         string
	CategoryConfidence float64
	CategoryReasoning  string
	AIProject          string
	Project            string // legacy column, used when ai_project is empty
	ProjectConfidence  float64
	ProjectClues       string
}

// SenderDisplay returns the sender's display name, falling back to the raw
// address when the name is missing or was redacted upstream.
func (r ReviewRecord) SenderDisplay() string {
	if r.SenderName != "" && r.SenderName != "DELETED" {
		return r.SenderName
	}
	if r.Sender != "" {
		return r.Sender
	}
	return "Unknown Sender"
}

// OriginalProject is the project label the classifier assigned.
func (r ReviewRecord) OriginalProject() string {
	if r.AIProject != "" {
		return r.AIProject
	}
	return r.Project
}

// Content returns the message body, or the full thread when no body was captured.
func (r ReviewRecord) Content() string {
	if r.Body != "" {
		return r.Body
	}
	return r.FullThread
}

// DateString returns the received date, falling back to the sent date.
func (r ReviewRecord) DateString() string {
	if r.ReceivedDate != "" {
		return r.ReceivedDate
	}
	return r.SentDate
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp parses DateString. ok is false when the value is empty or in an
// unrecognized layout.
func (r ReviewRecord) Timestamp() (t time.Time, ok bool) {
	s := strings.TrimSpace(r.DateString())
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ConfidencePercent rounds a 0-100 confidence score for display.
func ConfidencePercent(c float64) int {
	return int(math.Round(c))
}
