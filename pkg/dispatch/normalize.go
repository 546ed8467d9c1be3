package dispatch

import "strings"

// NormalizePath turns an arbitrary path into a URI. Strings that already
// carry a scheme are returned unchanged; rooted paths get the file scheme;
// relative paths are made absolute under it.
func NormalizePath(path string) string {
	switch {
	case strings.Contains(path, "://"):
		return path
	case strings.HasPrefix(path, "/"):
		return "file://" + path
	default:
		return "file:///" + path
	}
}
