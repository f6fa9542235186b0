package snapshot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nyfy17/VitaMobile/internal/models"
)

// fieldSetters maps review_queue column names onto record fields. Columns
// not listed here are ignored; NULL and unparseable values leave the zero value.
var fieldSetters = map[string]func(*models.ReviewRecord, any){
	"id":                  func(r *models.ReviewRecord, v any) { r.ID = asID(v) },
	"subject":             func(r *models.ReviewRecord, v any) { r.Subject = asString(v) },
	"sender":              func(r *models.ReviewRecord, v any) { r.Sender = asString(v) },
	"sender_name":         func(r *models.ReviewRecord, v any) { r.SenderName = asString(v) },
	"received_date":       func(r *models.ReviewRecord, v any) { r.ReceivedDate = asString(v) },
	"sent_date":           func(r *models.ReviewRecord, v any) { r.SentDate = asString(v) },
	"body":                func(r *models.ReviewRecord, v any) { r.Body = asString(v) },
	"full_thread":         func(r *models.ReviewRecord, v any) { r.FullThread = asString(v) },
	"oneline_summary":     func(r *models.ReviewRecord, v any) { r.OnelineSummary = asString(v) },
	"ai_category":         func(r *models.ReviewRecord, v any) { r.AICategory = asString(v) },
	"category_confidence": func(r *models.ReviewRecord, v any) { r.CategoryConfidence = asFloat(v) },
	"category_reasoning":  func(r *models.ReviewRecord, v any) { r.CategoryReasoning = asString(v) },
	"ai_project":          func(r *models.ReviewRecord, v any) { r.AIProject = asString(v) },
	"project":             func(r *models.ReviewRecord, v any) { r.Project = asString(v) },
	"project_confidence":  func(r *models.ReviewRecord, v any) { r.ProjectConfidence = asFloat(v) },
	"project_clues":       func(r *models.ReviewRecord, v any) { r.ProjectClues = asString(v) },
}

// asID keeps integer keys numeric and everything else, digit-only TEXT
// included, as text.
func asID(v any) models.RecordID {
	switch x := v.(type) {
	case nil:
		return models.RecordID{}
	case int64:
		return models.IntID(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return models.IntID(int64(x))
		}
	}
	return models.TextID(asString(v))
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f
	default:
		return 0
	}
}
