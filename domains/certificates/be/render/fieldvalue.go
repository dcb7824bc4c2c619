package render

import (
	"strings"
	"time"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// DateLayout renders dates as "March 01, 2025".
const DateLayout = "January 02, 2006"

// FieldValue returns the text a descriptor overlays for att. Unknown field
// types yield "" so one malformed descriptor never aborts a composition.
// A date field without a stored event date uses now.
func FieldValue(d persistence.FieldDescriptor, att persistence.AttendeeRecord, tpl persistence.TemplateRecord, now time.Time) string {
	switch strings.ToLower(strings.TrimSpace(d.Type)) {
	case persistence.FieldTypeName:
		return att.Name
	case persistence.FieldTypeStudentID:
		return att.StudentID
	case persistence.FieldTypeDate:
		if att.EventDate != nil && !att.EventDate.IsZero() {
			return att.EventDate.Format(DateLayout)
		}
		return now.Format(DateLayout)
	case persistence.FieldTypeAchievement:
		return firstNonEmpty(att.Course, att.EventName, tpl.EventName)
	case persistence.FieldTypeCustom:
		return d.Label
	default:
		return ""
	}
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
