package identity

import "strings"

// SplitName divides a provider-asserted display name into first and last at
// the final space. Single-token names land entirely in first; a leading space
// is not a split point.
func SplitName(name string) (first, last string) {
	if i := strings.LastIndexByte(name, ' '); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
