package store

import (
	"bytes"
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
)

// Join builds a store path from raw segments. Each segment is escaped so that
// user-supplied text (nouns, ids) can never introduce extra path levels.
func Join(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// Split returns the unescaped segments of a path built by Join.
func Split(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		seg, err := url.PathUnescape(p)
		if err != nil {
			return nil, err
		}
		parts[i] = seg
	}
	return parts, nil
}

// lastSegment returns the unescaped final segment of path.
func lastSegment(path string) string {
	i := strings.LastIndexByte(path, '/')
	seg := path[i+1:]
	if s, err := url.PathUnescape(seg); err == nil {
		return s
	}
	return seg
}

// isDirectChild reports whether path sits exactly one level below prefix.
func isDirectChild(prefix, path string) bool {
	p := strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(path, p) {
		return false
	}
	rest := path[len(p):]
	return rest != "" && !strings.Contains(rest, "/")
}

// sameJSON reports whether two encoded values are semantically equal.
// Postgres re-renders jsonb, so byte equality is not enough.
func sameJSON(a, b []byte) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
