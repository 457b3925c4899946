package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Grade is a fixed-point grade or GPA in hundredths: Grade(350) is 3.50.
// The academic scale runs from 0.00 to 5.00.
type Grade int64

const (
	// MinGrade is the lowest valid grade.
	MinGrade Grade = 0
	// MaxGrade is the highest valid grade.
	MaxGrade Grade = 500
	// PassingGrade is the lowest approving grade.
	PassingGrade Grade = 300
)

// GradeFromFloat rounds f to the nearest hundredth.
func GradeFromFloat(f float64) Grade {
	return Grade(math.Round(f * 100))
}

// ParseGrade parses decimal text such as "4", "3.5" or "2.75".
func ParseGrade(s string) (Grade, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, Errorf(InvalidArgument, "invalid grade %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, Errorf(InvalidArgument, "invalid grade %q", s)
	}
	return GradeFromFloat(f), nil
}

// Float returns the grade as a decimal number.
func (g Grade) Float() float64 {
	return float64(g) / 100
}

// String renders the grade with two decimals.
func (g Grade) String() string {
	sign := ""
	n := int64(g)
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

// MarshalJSON emits the grade as a decimal number.
func (g Grade) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(g.Float(), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a decimal number.
func (g *Grade) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("grade: %w", err)
	}
	*g = GradeFromFloat(f)
	return nil
}

// GradePtr returns a pointer to g.
func GradePtr(g Grade) *Grade {
	return &g
}
