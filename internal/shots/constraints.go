package shots

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// maxReferenceConstraints caps how many reference images contribute to the
// prompt. Past a handful they stop adding signal and inflate token cost.
const maxReferenceConstraints = 4

// ReferenceConstraints folds product reference images into textual prompt
// constraints. The image model only ever sees text: references are described,
// never attached.
func ReferenceConstraints(referenceURLs []string) []string {
	if len(referenceURLs) > maxReferenceConstraints {
		referenceURLs = referenceURLs[:maxReferenceConstraints]
	}
	constraints := make([]string, 0, len(referenceURLs))
	for _, raw := range referenceURLs {
		label := referenceLabel(raw)
		if label == "" {
			continue
		}
		constraints = append(constraints,
			fmt.Sprintf("match the product appearance from the reference photo %q", label))
	}
	return constraints
}

// referenceLabel extracts a human-readable label from a reference URL,
// falling back to the last path segment when the URL does not parse.
func referenceLabel(raw string) string {
	segment := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		segment = u.Path
	}
	base := path.Base(segment)
	if base == "." || base == "/" {
		return ""
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = strings.NewReplacer("-", " ", "_", " ", "%20", " ").Replace(base)
	return strings.TrimSpace(base)
}
