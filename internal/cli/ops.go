package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/registrar/internal/coordinator"
	"github.com/roach88/registrar/internal/model"
)

// EnrollOptions holds flags for the enroll command.
type EnrollOptions struct {
	*RootOptions
	Student string
	Courses []string
	Period  string
}

// EnrollReport lists the enrollments created by one batch.
type EnrollReport struct {
	Student       string   `json:"student"`
	Period        string   `json:"period"`
	Courses       []string `json:"courses"`
	EnrollmentIDs []string `json:"enrollment_ids"`
}

func (r EnrollReport) Text(w io.Writer) {
	for i, id := range r.EnrollmentIDs {
		fmt.Fprintf(w, "Enrolled %s in %s for %s: %s\n", r.Student, r.Courses[i], r.Period, id)
	}
}

// GradeReport is the outcome of recording a grade.
type GradeReport coordinator.GradeResult

func (r GradeReport) Text(w io.Writer) {
	fmt.Fprintf(w, "Enrollment %s is %s (gpa %s, credits %d)\n", r.EnrollmentID, r.State, r.GPA, r.Credits)
}

// StateReport is the new state of one entity.
type StateReport struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	State string `json:"state"`
}

func (r StateReport) Text(w io.Writer) {
	fmt.Fprintf(w, "%s %s is %s\n", r.Kind, r.ID, r.State)
}

// NewEnrollCommand creates the enroll command.
func NewEnrollCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnrollOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll a student in one or more courses",
		Long: `Enroll a student in a batch of courses for one period.

The batch is atomic: if any course is unknown, already taken in the
period or full (in hard capacity mode), nothing is written.

Examples:
  registrar enroll --student S001 --course MAT101 --course PRG101 --period 2025-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.coord.EnrollBatch(cmd.Context(), coordinator.EnrollRequest{
				StudentCode: opts.Student,
				CourseCodes: opts.Courses,
				Period:      opts.Period,
			})
			if err != nil {
				return out.Fail("enrollment rejected", err)
			}
			return out.Success(EnrollReport{
				Student:       opts.Student,
				Period:        opts.Period,
				Courses:       opts.Courses,
				EnrollmentIDs: res.EnrollmentIDs,
			})
		},
	}

	cmd.Flags().StringVar(&opts.Student, "student", "", "student code (required)")
	cmd.Flags().StringSliceVar(&opts.Courses, "course", nil, "course code, repeatable (required)")
	cmd.Flags().StringVar(&opts.Period, "period", "", "academic period such as 2025-1 (required)")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

// NewGradeCommand creates the grade command.
func NewGradeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grade <enrollment-id> <grade>",
		Short: "Record the final grade of an enrollment",
		Long: `Record a grade between 0.0 and 5.0. Grades of 3.0 and above approve
the course; lower grades fail it. A graded enrollment may be re-graded.

Examples:
  registrar grade 0192f0c4-... 4.2`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			grade, err := model.ParseGrade(args[1])
			if err != nil {
				return out.Fail("invalid grade", err)
			}

			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.coord.RecordGrade(cmd.Context(), args[0], grade)
			if err != nil {
				return out.Fail("grade rejected", err)
			}
			return out.Success(GradeReport(res))
		},
	}
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "withdraw <enrollment-id>",
		Short:         "Withdraw a student from an enrollment",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.coord.WithdrawCourse(cmd.Context(), args[0]); err != nil {
				return out.Fail("withdrawal rejected", err)
			}
			return out.Success(StateReport{Kind: "enrollment", ID: args[0], State: string(model.EnrollmentWithdrawn)})
		},
	}
}

// NewGraduateCommand creates the graduate command.
func NewGraduateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "graduate <student-code>",
		Short:         "Graduate a student who has the credits of their program",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.coord.GraduateStudent(cmd.Context(), args[0]); err != nil {
				return out.Fail("graduation rejected", err)
			}
			return out.Success(StateReport{Kind: "student", ID: args[0], State: string(model.StudentGraduated)})
		},
	}
}
