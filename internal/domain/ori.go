package domain

import (
	"errors"
	"strings"
)

// ORIMarker precedes the agency identifier in selector option text.
const ORIMarker = "ORI:"

// ErrNoIdentifiers is returned when enumeration yields no agency identifiers.
var ErrNoIdentifiers = errors.New("no agency identifiers found")

// ParseORI extracts the identifier from an option's text. The text may span
// several lines; the first line containing ORIMarker is used and everything
// after the marker, trimmed, is the identifier.
// Parameters:
//   - text: rendered option text.
// Returns:
//   - string: the identifier.
//   - bool: false when no line carries the marker or the identifier is empty.
func ParseORI(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		idx := strings.Index(line, ORIMarker)
		if idx == -1 {
			continue
		}
		ori := strings.TrimSpace(line[idx+len(ORIMarker):])
		return ori, ori != ""
	}
	return "", false
}

// ParseORIs extracts identifiers from option texts, preserving order.
// Options without an identifier are dropped.
func ParseORIs(texts []string) []string {
	oris := make([]string, 0, len(texts))
	for _, text := range texts {
		if ori, ok := ParseORI(text); ok {
			oris = append(oris, ori)
		}
	}
	return oris
}

// OptionLabel is the substring an option's text must contain to match ori.
func OptionLabel(ori string) string {
	return ORIMarker + " " + ori
}
