package tenant

import (
	"strings"

	"github.com/google/uuid"
)

// Object kinds stored under a club prefix.
const (
	KindTemplates = "templates"
	KindImports   = "imports"
)

// BuildStoragePrefix returns `clubs/<clubId>/`. Every object a club owns lives
// below it so a permanent delete can purge the prefix.
func BuildStoragePrefix(clubID uuid.UUID) string {
	return "clubs/" + clubID.String() + "/"
}

// ShortID returns the first 8 hexadecimal characters of a UUID (without dashes).
func ShortID(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	if len(hex) < 8 {
		return hex
	}
	return hex[:8]
}

// ObjectKey builds `<prefix><kind>/<stem>_<token><ext>`, for example
// `clubs/<id>/templates/template_1a2b3c4d5e6f7a8b.png`.
func ObjectKey(prefix, kind, stem, ext string) string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(prefix, "/") + "/" + kind + "/" + stem + "_" + token + ext
}
