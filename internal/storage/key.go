package storage

import (
	"fmt"
	"strings"
	"time"
)

// UploadPrefix is the root under which every user-uploaded object lives.
const UploadPrefix = "uploads"

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with '_'.
// Replacement is per Unicode code point, so the result has as many runes as
// the input. An emoji outside the BMP becomes a single '_'.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// UserPrefix returns the key prefix that namespaces one uploader's objects.
func UserPrefix(uploaderID string) string {
	return UploadPrefix + "/" + uploaderID + "/"
}

// KeyGenerator derives object keys of the form
// uploads/{uploaderID}/{epochMillis}-{sanitizedFilename}.
//
// Two uploads from the same uploader with the same filename in the same
// millisecond get the same key; the later PUT overwrites the earlier object.
type KeyGenerator struct {
	Now func() time.Time // Defaults to time.Now
}

// Generate returns the storage key for a new upload.
func (g KeyGenerator) Generate(uploaderID, filename string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return fmt.Sprintf("%s%d-%s", UserPrefix(uploaderID), now().UnixMilli(), SanitizeFilename(filename))
}
