package pathing

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultPage is substituted when a run has no campaign page.
	DefaultPage = "campaign"
	// DefaultUserID is substituted when a run has no owner.
	DefaultUserID = "anonymous"
)

// Resolve maps run identity to its slash-terminated storage prefix:
//
//	runs/<page>/<userID>/<YYYY>/<MM>/<DD>/<runID>/
//
// Page and userID are sanitized to a constrained character set; runID is
// used verbatim because it is opaque by contract and re-validating it here
// would break addressing for callers that already hold a prefix. A zero
// date falls back to the current UTC time; date components are always UTC.
func Resolve(runID, userID, page string, date time.Time) string {
	page = sanitizeSegment(page)
	if page == "" {
		page = DefaultPage
	}
	userID = sanitizeSegment(userID)
	if userID == "" {
		userID = DefaultUserID
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	date = date.UTC()
	return fmt.Sprintf("runs/%s/%s/%04d/%02d/%02d/%s/",
		page, userID, date.Year(), int(date.Month()), date.Day(), runID)
}

// StatusPath returns the location of the run status document under prefix.
func StatusPath(prefix string) string {
	return prefix + "status.json"
}

// ArtifactPath joins an artifact file name onto a run prefix.
func ArtifactPath(prefix, name string) string {
	return prefix + name
}

// sanitizeSegment lowercases a path segment and maps every character outside
// [a-z0-9._-] to '-', then collapses runs of the same separator character.
// Leading/trailing separators are kept: the output must stay byte-stable for
// inputs that already round-tripped through an earlier caller.
func sanitizeSegment(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(value))
	var last rune = -1
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			r = '-'
		}
		if isSeparator(r) && r == last {
			continue
		}
		b.WriteRune(r)
		last = r
	}
	return b.String()
}

func isSeparator(r rune) bool {
	return r == '.' || r == '_' || r == '-'
}
