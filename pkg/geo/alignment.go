package geo

import "math"

// Aligned reports whether a ping's tangent bearing is consistent with a
// link's bearing within the given tolerance, in degrees. Reverse alignment
// (a difference near 180) is accepted because links may be traversed in
// either direction, so the test is symmetric in its two bearing arguments
// and invariant under adding 180 to either.
func Aligned(linkBearing, pingBearing, tolerance float64) bool {
	diff := math.Abs(linkBearing - pingBearing)
	if diff <= tolerance {
		return true
	}
	if diff >= 180-tolerance && diff <= 180+tolerance {
		return true
	}
	return 360-diff <= tolerance
}
