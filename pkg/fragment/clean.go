package fragment

import (
	"regexp"
	"strings"
)

var (
	tagRe  = regexp.MustCompile(`<[^>]+>`)
	nbspRe = regexp.MustCompile(`&nbsp;?`)
)

// StripTags removes HTML tags and non-breaking spaces from s.
func StripTags(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = nbspRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Sanitize returns a copy of v with "_html"-suffixed keys dropped and HTML
// stripped from every string leaf. Only the recorded trace goes through
// this; control-flow fields are always read from the raw response.
func Sanitize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if strings.HasSuffix(k, "_html") {
				continue
			}
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Sanitize(val)
		}
		return out
	case string:
		return StripTags(t)
	default:
		return v
	}
}

func sanitizeMap(v map[string]any) map[string]any {
	out, _ := Sanitize(v).(map[string]any)
	return out
}
