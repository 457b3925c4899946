// Package catalog loads the registrar's reference data (programs, courses,
// professors and students with their imported history) from CUE files and
// seeds it into the store.
//
// Catalog files are plain CUE keyed by entity code:
//
//	program: SYS: {name: "Systems Engineering", total_credits: 160, semesters: 10}
//	course: MAT101: {name: "Calculus I", credits: 4, type: "foundational"}
//	student: S001: {
//	    name: "Ana Ruiz", email: "ana@uni.edu", program: "SYS", semester: 3
//	    history: [{course: "MAT101", period: "2024-1", grade: "3.8"}]
//	}
//
// Every file is unified with an embedded schema that enforces field
// ranges, enums and formats. Grades are decimal strings so no float ever
// enters the model. Cross references (a student's program, prerequisites,
// curriculum and history courses) are checked after unification.
package catalog

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/roach88/registrar/internal/model"
)

//go:embed schema.cue
var schemaSource []byte

// Catalog is compiled reference data, each slice sorted by code.
type Catalog struct {
	Programs   []model.Program
	Courses    []model.Course
	Professors []model.Professor
	Students   []model.Student
	FileCount  int
}

// Error codes for catalog problems.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeSchema      = "E101" // Schema constraint violated
	ErrCodeReference   = "E102" // Unknown program or course code
	ErrCodeGrade       = "E103" // Unparseable or failing history grade
)

// Error is a catalog problem with its CUE source position when known.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// idNamespace scopes the name-based ids of catalog entities.
var idNamespace = uuid.MustParse("6f1c9a52-3d0e-5b7a-9c44-2e8f1a7d3b10")

// entityID returns the explicit id if set, else a stable UUIDv5 derived
// from kind and code. Reloading a catalog therefore yields the same ids.
func entityID(explicit, kind, code string) string {
	if explicit != "" {
		return explicit
	}
	return uuid.NewSHA1(idNamespace, []byte(kind+"/"+code)).String()
}
