package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RecordID identifies a review record. It remembers whether the snapshot
// stored the key as an integer so exports hand it back in the same JSON
// shape: integers as numbers, everything else as strings.
type RecordID struct {
	text    string
	numeric bool
}

// IntID returns the ID of a record keyed by an integer.
func IntID(n int64) RecordID {
	return RecordID{text: strconv.FormatInt(n, 10), numeric: true}
}

// TextID returns the ID of a record keyed by text. Digit-only text such as
// "007" stays text.
func TextID(s string) RecordID {
	return RecordID{text: s}
}

func (id RecordID) String() string { return id.text }

// IsZero reports whether the ID is unset.
func (id RecordID) IsZero() bool { return id == RecordID{} }

// Int returns the integer key of a numeric ID.
func (id RecordID) Int() (int64, bool) {
	if !id.numeric {
		return 0, false
	}
	n, err := strconv.ParseInt(id.text, 10, 64)
	return n, err == nil
}

// MarshalJSON emits integer IDs as numbers and everything else as strings.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.text), nil
	}
	return json.Marshal(id.text)
}

// UnmarshalJSON accepts either a JSON number or a JSON string. Numbers that
// are not integers are kept as text.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = RecordID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TextID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = IntID(i)
		return nil
	}
	*id = TextID(n.String())
	return nil
}

// FieldCorrection replaces one AI-assigned label.
type FieldCorrection struct {
	Original      string `json:"original"`
	Corrected     string `json:"corrected"`
	UserReasoning string `json:"user_reasoning"`
}

// Correction is one recorded human decision about one record.
// At least one of Approved, CategoryCorrection, ProjectCorrection is set.
type Correction struct {
	EmailID            RecordID         `json:"email_id"`
	Timestamp          time.Time        `json:"timestamp"`
	Approved           bool             `json:"approved"`
	CategoryCorrection *FieldCorrection `json:"category_correction,omitempty"`
	ProjectCorrection  *FieldCorrection `json:"project_correction,omitempty"`
}

// IsApproval reports whether the correction accepts the AI labels unchanged.
func (c Correction) IsApproval() bool {
	return c.Approved && c.CategoryCorrection == nil && c.ProjectCorrection == nil
}
