// Package scorekey converts floating-point exam scores into order-preserving
// integer keys suitable for sorted score-band maps.
package scorekey

import "math"

// precision is the number of decimal places a score may carry. Marking
// schemes on the platform award in quarter-mark steps, so two places cover
// every representable score.
const precision = 100

// Key is a fixed-point representation of a score: the score rounded to two
// decimal places and scaled by 100. Keys compare the same way the underlying
// scores do, including negatives from negative marking.
type Key int64

// Encode converts a score to its key. Rounding is half-away-from-zero so
// encoding stays symmetric around zero.
func Encode(score float64) Key {
	return Key(math.Round(score * precision))
}

// Score converts the key back to the score it encodes. Exact for any score
// with at most two decimal places.
func (k Key) Score() float64 {
	return float64(k) / precision
}
