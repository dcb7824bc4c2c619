package csvimport

import "strings"

// Key is a canonical roster attribute.
type Key string

const (
	KeyName      Key = "name"
	KeyStudentID Key = "student_id"
	KeyEmail     Key = "email"
	KeyCourse    Key = "course"
	KeyRole      Key = "role"
)

// keyOrder fixes the alias matching order so normalization is deterministic.
var keyOrder = []Key{KeyName, KeyStudentID, KeyEmail, KeyCourse, KeyRole}

var aliases = map[Key][]string{
	KeyName: {"name", "full name", "fullname", "full_name", "student name"},
	KeyStudentID: {
		"student_id", "student id", "studentid", "id", "student",
		"roll", "roll no", "roll_no", "rollno", "roll number",
		"student no", "student_no", "studentno",
	},
	KeyEmail:  {"email", "e-mail", "email address", "email_address", "email_id", "emailid", "mail"},
	KeyCourse: {"course", "program", "programme", "class", "department", "branch"},
	KeyRole:   {"role", "type"},
}

// RequiredKeys must each be mapped by some header for a roster to be usable.
var RequiredKeys = []Key{KeyName, KeyStudentID}

// Normalize maps a raw CSV header onto its canonical key. Surrounding
// whitespace and a leading byte-order mark are ignored, matching is case
// insensitive, and the first key whose alias list contains the header wins.
func Normalize(raw string) (Key, bool) {
	header := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\ufeff")))
	if header == "" {
		return "", false
	}
	for _, key := range keyOrder {
		for _, alias := range aliases[key] {
			if header == alias {
				return key, true
			}
		}
	}
	return "", false
}
