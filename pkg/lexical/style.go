package lexical

import (
	"sort"
	"strings"
)

// StyleMap represents parsed CSS styles
type StyleMap map[string]string

// ParseStyle parses a CSS style string into a map
// Example: "color: #F97316; background-color: #BFDBFE;"
func ParseStyle(styleStr string) StyleMap {
	styles := make(StyleMap)
	if styleStr == "" {
		return styles
	}

	for _, part := range strings.Split(styleStr, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k != "" && v != "" {
			styles[k] = v
		}
	}
	return styles
}

// Merge returns a copy of s overlaid with other.
func (s StyleMap) Merge(other StyleMap) StyleMap {
	out := make(StyleMap, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// String serializes the map back to a CSS declaration list with stable key order.
func (s StyleMap) String() string {
	if len(s) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+s[k]+";")
	}
	return strings.Join(parts, " ")
}

// BuildAnnotatedOpenTag creates an HTML span carrying the styles that change meaning
// for a reader. Returns empty string if none are present.
func (s StyleMap) BuildAnnotatedOpenTag() string {
	var relevant []string

	for _, k := range []string{"color", "background-color", "text-transform"} {
		if v, ok := s[k]; ok {
			relevant = append(relevant, k+":"+v)
		}
	}

	if len(relevant) == 0 {
		return ""
	}

	return "<span style=\"" + strings.Join(relevant, "; ") + "\">"
}
