package rules

import "github.com/roach88/registrar/internal/model"

// DefaultCeiling is the default number of non-withdrawn enrollments one
// (course, period) admits.
const DefaultCeiling = 30

// CheckSeats returns CapacityExceeded when the reserved seat count of a
// (course, period) is above the ceiling.
func CheckSeats(courseCode, period string, reserved, ceiling int) error {
	if reserved > ceiling {
		return model.Errorf(model.CapacityExceeded,
			"course %s in %s is full (%d seats)", courseCode, period, ceiling)
	}
	return nil
}

// Overbooked reports whether an enrollment admitted at the given 1-based
// rank falls beyond the ceiling.
func Overbooked(rank, ceiling int) bool {
	return rank > ceiling
}
