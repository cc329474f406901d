package matching

import "math"

// StabilizeReturnPrice corrects a return price that is off by one or more
// powers of a thousand relative to the project's reference price — a
// recurring data-entry error in returned price lists (§4.4.1 step 3, P4).
//
// It never increases |price|. It returns price unchanged when ref is nil,
// ref == 0, |ref| < 1, |price|/|ref| <= 250, or |price| < 1000; otherwise it
// divides price by 1000 (up to 4 times) until one of those conditions holds.
func StabilizeReturnPrice(price float64, ref *float64) (adjusted float64, wasAdjusted bool) {
	if ref == nil || *ref == 0 {
		return price, false
	}
	refAbs := math.Abs(*ref)
	if refAbs < 1 {
		return price, false
	}
	current := price
	for i := 0; i < 4; i++ {
		currentAbs := math.Abs(current)
		if currentAbs < 1000 || currentAbs/refAbs <= 250 {
			return current, current != price
		}
		current /= 1000
	}
	return current, current != price
}
