// Package export turns an accumulated correction log into the transfer
// document imported by the desktop application.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nyfy17/VitaMobile/internal/models"
)

// DefaultDevice labels documents produced by this client.
const DefaultDevice = "Vita Mobile CLI"

// Document is the self-describing export payload.
type Document struct {
	Corrections []models.Correction `json:"corrections"`
	ExportedAt  time.Time           `json:"exported_at"`
	EmailCount  int                 `json:"email_count"`
	Device      string              `json:"device"`
}

// Build assembles a document. The log is copied verbatim so later changes to
// the caller's slice do not leak into a document already handed off.
func Build(log []models.Correction, queueLen int, device string, now time.Time) Document {
	corrections := make([]models.Correction, len(log))
	copy(corrections, log)
	return Document{
		Corrections: corrections,
		ExportedAt:  now.UTC(),
		EmailCount:  queueLen,
		Device:      device,
	}
}

// Marshal renders the document as indented JSON.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// FileName is the date-stamped name for an export produced at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("vita_corrections_%s.json", t.UTC().Format("2006-01-02"))
}

// Sink hands a finished document to a transfer mechanism and reports where
// it went.
type Sink interface {
	Deliver(ctx context.Context, doc Document) (string, error)
}

// FileSink writes documents into Dir. An existing file of the same name is
// never overwritten: a numeric suffix is added instead.
type FileSink struct {
	Dir string
}

// NewFileSink returns a sink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Deliver writes doc and returns the file path.
func (s *FileSink) Deliver(_ context.Context, doc Document) (string, error) {
	data, err := doc.Marshal()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	base := FileName(doc.ExportedAt)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	for n := 1; n < 1000; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path := filepath.Join(s.Dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create export file: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("write export file: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("close export file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many exports named %s in %s", base, s.Dir)
}
