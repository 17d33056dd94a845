// Package util contains sequence distance helpers.
package util

// Hamming returns the number of positions at which s1 and s2 differ. ok is
// false, and distance meaningless, when the lengths differ.
func Hamming(s1, s2 string) (distance int, ok bool) {
	if len(s1) != len(s2) {
		return 0, false
	}
	for i := 0; i < len(s1); i++ {
		if s1[i] != s2[i] {
			distance++
		}
	}
	return distance, true
}

// WithinHamming tells whether s1 and s2 have the same length and differ
// in at most max positions. It stops comparing once max is exceeded.
func WithinHamming(s1, s2 string, max int) bool {
	if len(s1) != len(s2) {
		return false
	}
	d := 0
	for i := 0; i < len(s1); i++ {
		if s1[i] != s2[i] {
			if d++; d > max {
				return false
			}
		}
	}
	return true
}
