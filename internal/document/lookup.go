package document

import (
	"strconv"
	"strings"
)

// Lookup walks a decoded JSON value along a dotted path.
//
// Segments are object keys or array indexes. "*" maps the rest of the path
// over every element of an array. A key applied to an array reads the first
// element that holds the key. The empty path returns data itself.
func Lookup(data any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return data, data != nil
	}
	return walk(data, strings.Split(path, "."))
}

func walk(cur any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return cur, cur != nil
	}
	seg, rest := segs[0], segs[1:]

	switch node := cur.(type) {
	case map[string]any:
		v, ok := node[seg]
		if !ok {
			return nil, false
		}
		return walk(v, rest)

	case []any:
		if seg == "*" {
			out := make([]any, 0, len(node))
			for _, el := range node {
				if v, ok := walk(el, rest); ok {
					out = append(out, v)
				}
			}
			return out, len(out) > 0
		}
		if i, err := strconv.Atoi(seg); err == nil {
			if i < 0 || i >= len(node) {
				return nil, false
			}
			return walk(node[i], rest)
		}
		for _, el := range node {
			if m, ok := el.(map[string]any); ok {
				if _, has := m[seg]; has {
					return walk(el, segs)
				}
			}
		}
	}
	return nil, false
}
