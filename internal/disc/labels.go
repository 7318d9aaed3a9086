package disc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var allDigitsPattern = regexp.MustCompile(`^\d+$`)

// IsUnusableLabel returns true if the label is a generic or technical volume
// name rather than a meaningful title.
func IsUnusableLabel(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return true
	}

	upper := strings.ToUpper(label)
	patterns := []string{
		"LOGICAL_VOLUME_ID", "VOLUME_ID", "DVD_VIDEO", "BLURAY", "BD_ROM",
		"UNTITLED", "UNKNOWN DISC", "VOLUME_", "DISK_", "TRACK_",
	}
	for _, pattern := range patterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}

	if allDigitsPattern.MatchString(label) {
		return true
	}
	return false
}

// TitleFromLabel turns a disc volume label like "THE_BIG_MOVIE" into a
// human-readable session title. Unusable labels map to "Unknown Disc".
func TitleFromLabel(label string) string {
	if IsUnusableLabel(label) {
		return "Unknown Disc"
	}

	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range label {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Unknown Disc"
	}
	return cases.Title(language.Und).String(strings.ToLower(title))
}
