package catalog

import (
	"context"
	"fmt"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
	"github.com/roach88/registrar/internal/store"
)

// Summary reports what a seed wrote.
type Summary struct {
	Programs   int `json:"programs"`
	Courses    int `json:"courses"`
	Professors int `json:"professors"`
	Students   int `json:"students"`
	Changes    int `json:"changes"`
}

// Apply upserts the catalog into the store in one transaction, keyed by
// entity code. Seeding twice is harmless: unchanged entities emit no
// change events.
//
// For a student that already exists, the catalog supplies the descriptive
// fields and the imported history. Its state and the completed records
// earned through enrollments stay as they are, and the standing is
// re-derived.
func Apply(ctx context.Context, s *store.Store, cat *Catalog) (Summary, error) {
	var sum Summary
	err := s.Update(ctx, func(tx *store.Tx) error {
		sum = Summary{}
		for _, p := range cat.Programs {
			if _, err := tx.PutProgram(ctx, p); err != nil {
				return fmt.Errorf("seed program %s: %w", p.Code, err)
			}
			sum.Programs++
		}
		for _, c := range cat.Courses {
			if _, err := tx.PutCourse(ctx, c); err != nil {
				return fmt.Errorf("seed course %s: %w", c.Code, err)
			}
			sum.Courses++
		}
		for _, p := range cat.Professors {
			if _, err := tx.PutProfessor(ctx, p); err != nil {
				return fmt.Errorf("seed professor %s: %w", p.Code, err)
			}
			sum.Professors++
		}
		for _, st := range cat.Students {
			if err := putStudent(ctx, tx, st); err != nil {
				return fmt.Errorf("seed student %s: %w", st.Code, err)
			}
			sum.Students++
		}
		sum.Changes = len(tx.Changes())
		return nil
	})
	return sum, err
}

func putStudent(ctx context.Context, tx *store.Tx, st model.Student) error {
	existing, err := tx.StudentByCode(ctx, st.Code)
	if model.IsCode(err, model.NotFound) {
		_, err = tx.PutStudent(ctx, st)
		return err
	}
	if err != nil {
		return err
	}

	merged := existing
	merged.Name = st.Name
	merged.Email = st.Email
	merged.ProgramID = st.ProgramID
	merged.Semester = st.Semester
	merged.Completed = append([]model.CompletedCourse{}, st.Completed...)
	for _, rec := range existing.Completed {
		if rec.EnrollmentID != "" {
			merged.Completed = append(merged.Completed, rec)
		}
	}

	views, err := tx.StudentEnrollments(ctx, existing.ID)
	if err != nil {
		return err
	}
	merged.Completed = rules.Reconcile(merged.Completed, views)
	rules.DeriveFromEnrollments(merged.Completed, views).Apply(&merged)

	_, err = tx.PutStudent(ctx, merged)
	return err
}
