package storage

import "strings"

// runSegment collects events that belong to no single share.
const runSegment = "run"

// ShareSegment turns a share ID into a filesystem-safe directory name.
// "ABCDEFGHIJ#KLMNOPQRSTUV" becomes "ABCDEFGHIJ_KLMNOPQRSTUV".
func ShareSegment(shareID string) string {
	if shareID == "" {
		return runSegment
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, shareID)
}
