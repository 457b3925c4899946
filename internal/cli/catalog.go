package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/registrar/internal/catalog"
)

// CatalogReport describes a valid catalog.
type CatalogReport struct {
	Dir        string `json:"dir"`
	Files      int    `json:"files"`
	Programs   int    `json:"programs"`
	Courses    int    `json:"courses"`
	Professors int    `json:"professors"`
	Students   int    `json:"students"`
}

func (r CatalogReport) Text(w io.Writer) {
	fmt.Fprintf(w, "Catalog %s is valid (%d files)\n", r.Dir, r.Files)
	fmt.Fprintf(w, "  programs:   %d\n", r.Programs)
	fmt.Fprintf(w, "  courses:    %d\n", r.Courses)
	fmt.Fprintf(w, "  professors: %d\n", r.Professors)
	fmt.Fprintf(w, "  students:   %d\n", r.Students)
}

// SeedReport is the outcome of seeding a catalog.
type SeedReport struct {
	Dir string `json:"dir"`
	catalog.Summary
}

func (r SeedReport) Text(w io.Writer) {
	fmt.Fprintf(w, "Seeded %s: %d programs, %d courses, %d professors, %d students (%d changes)\n",
		r.Dir, r.Programs, r.Courses, r.Professors, r.Students, r.Changes)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <catalog-dir>",
		Short: "Validate a CUE catalog without writing it",
		Long: `Validate the CUE catalog files in a directory.

Every file is checked against the catalog schema and all cross references
are resolved. Every problem found is reported with its source position.

Exit codes:
  0 - Catalog is valid
  1 - Catalog has errors
  2 - Command error (directory not found, etc.)

Examples:
  registrar validate ./catalog
  registrar validate ./catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			cat, err := loadCatalog(out, args[0])
			if err != nil {
				return err
			}
			return out.Success(CatalogReport{
				Dir:        args[0],
				Files:      cat.FileCount,
				Programs:   len(cat.Programs),
				Courses:    len(cat.Courses),
				Professors: len(cat.Professors),
				Students:   len(cat.Students),
			})
		},
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog-dir>",
		Short: "Load a CUE catalog into the database",
		Long: `Validate a CUE catalog and write it to the database in one transaction.

Seeding is idempotent: entities are keyed by code, unchanged entities
produce no change events, and students keep their state and the records
of their enrollments.

Examples:
  registrar seed ./catalog --db ./registrar.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			cat, err := loadCatalog(out, args[0])
			if err != nil {
				return err
			}

			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := catalog.Apply(cmd.Context(), a.store, cat)
			if err != nil {
				return out.Fail("failed to seed catalog", err)
			}
			a.logger.Info("catalog seeded", "dir", args[0], "changes", summary.Changes)
			return out.Success(SeedReport{Dir: args[0], Summary: summary})
		},
	}
}

// loadCatalog loads and reports a catalog. A missing or empty directory
// is a command error; schema and reference problems are failures.
func loadCatalog(out *OutputFormatter, dir string) (*catalog.Catalog, error) {
	out.VerboseLog("loading catalog from %s", dir)
	cat, errs := catalog.Load(dir)
	if len(errs) == 0 {
		return cat, nil
	}

	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	if out.Format == "json" {
		_ = out.Error(errorCode(errs[0]), fmt.Sprintf("catalog has %d error(s)", len(errs)), messages)
	} else {
		for _, msg := range messages {
			fmt.Fprintln(out.Writer, msg)
		}
	}

	code := ExitFailure
	switch errorCode(errs[0]) {
	case catalog.ErrCodeNotFound, catalog.ErrCodeNoFiles, catalog.ErrCodeScanError:
		code = ExitCommandError
	}
	return nil, WrapExitError(code, fmt.Sprintf("catalog %s is invalid", dir), errors.Join(errs...))
}

func errorCode(err error) string {
	var ce *catalog.Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return catalog.ErrCodeGeneric
}
