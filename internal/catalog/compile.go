package catalog

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/rules"
)

type programEntry struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	TotalCredits int      `json:"total_credits"`
	Semesters    int      `json:"semesters"`
	Requirements []string `json:"requirements"`
	Curriculum   []struct {
		Semester int      `json:"semester"`
		Courses  []string `json:"courses"`
	} `json:"curriculum"`
}

type courseEntry struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Credits       int      `json:"credits"`
	Type          string   `json:"type"`
	Prerequisites []string `json:"prerequisites"`
	Description   string   `json:"description"`
}

type professorEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Specialties []string `json:"specialties"`
	Assignments []struct {
		Course   string `json:"course"`
		Period   string `json:"period"`
		Schedule string `json:"schedule"`
	} `json:"assignments"`
}

type studentEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Program  string `json:"program"`
	Semester int    `json:"semester"`
	State    string `json:"state"`
	History  []struct {
		Course string `json:"course"`
		Period string `json:"period"`
		Grade  string `json:"grade"`
	} `json:"history"`
}

// compiler accumulates entities and every problem found while compiling.
type compiler struct {
	courses  map[string]model.Course
	programs map[string]model.Program
	errs     []error
}

func (c *compiler) fail(code string, v cue.Value, format string, args ...any) {
	c.errs = append(c.errs, &Error{Code: code, Message: fmt.Sprintf(format, args...), Pos: v.Pos()})
}

// each decodes every entry of a top-level section in label order.
func each[T any](c *compiler, root cue.Value, section string, fn func(code string, v cue.Value, entry T)) {
	sv := root.LookupPath(cue.ParsePath(section))
	if !sv.Exists() {
		return
	}
	iter, err := sv.Fields()
	if err != nil {
		c.errs = append(c.errs, cueErrors(ErrCodeGeneric, err)...)
		return
	}
	for iter.Next() {
		var entry T
		if err := iter.Value().Decode(&entry); err != nil {
			c.fail(ErrCodeSchema, iter.Value(), "%s.%s: %v", section, iter.Label(), err)
			continue
		}
		fn(iter.Label(), iter.Value(), entry)
	}
}

func compile(root cue.Value) (*Catalog, []error) {
	c := &compiler{
		courses:  make(map[string]model.Course),
		programs: make(map[string]model.Program),
	}
	cat := &Catalog{}

	type prereqs struct {
		code string
		v    cue.Value
		list []string
	}
	var pending []prereqs
	each(c, root, "course", func(code string, v cue.Value, e courseEntry) {
		course := model.Course{
			ID:            entityID(e.ID, "course", code),
			Code:          code,
			Name:          e.Name,
			Credits:       e.Credits,
			Type:          model.CourseType(e.Type),
			Prerequisites: e.Prerequisites,
			Description:   e.Description,
		}
		if course.Prerequisites == nil {
			course.Prerequisites = []string{}
		}
		c.courses[code] = course
		cat.Courses = append(cat.Courses, course)
		pending = append(pending, prereqs{code: code, v: v, list: e.Prerequisites})
	})
	for _, p := range pending {
		for _, pre := range p.list {
			if pre == p.code {
				c.fail(ErrCodeReference, p.v, "course %s: lists itself as prerequisite", p.code)
				continue
			}
			if _, ok := c.courses[pre]; !ok {
				c.fail(ErrCodeReference, p.v, "course %s: unknown prerequisite %s", p.code, pre)
			}
		}
	}

	each(c, root, "program", func(code string, v cue.Value, e programEntry) {
		p := model.Program{
			ID:           entityID(e.ID, "program", code),
			Code:         code,
			Name:         e.Name,
			TotalCredits: e.TotalCredits,
			Semesters:    e.Semesters,
			Requirements: e.Requirements,
		}
		if p.Requirements == nil {
			p.Requirements = []string{}
		}
		for _, term := range e.Curriculum {
			if term.Semester > p.Semesters {
				c.fail(ErrCodeSchema, v, "program %s: curriculum semester %d beyond %d semesters", code, term.Semester, p.Semesters)
			}
			ids := make([]string, 0, len(term.Courses))
			for _, cc := range term.Courses {
				course, ok := c.courses[cc]
				if !ok {
					c.fail(ErrCodeReference, v, "program %s: curriculum references unknown course %s", code, cc)
					continue
				}
				ids = append(ids, course.ID)
			}
			p.Curriculum = append(p.Curriculum, model.CurriculumTerm{Semester: term.Semester, CourseIDs: ids})
		}
		c.programs[code] = p
		cat.Programs = append(cat.Programs, p)
	})

	each(c, root, "professor", func(code string, v cue.Value, e professorEntry) {
		p := model.Professor{
			ID:          entityID(e.ID, "professor", code),
			Code:        code,
			Name:        e.Name,
			Email:       e.Email,
			Specialties: e.Specialties,
			Assignments: []model.Assignment{},
		}
		if p.Specialties == nil {
			p.Specialties = []string{}
		}
		for _, a := range e.Assignments {
			course, ok := c.courses[a.Course]
			if !ok {
				c.fail(ErrCodeReference, v, "professor %s: assignment references unknown course %s", code, a.Course)
				continue
			}
			p.Assignments = append(p.Assignments, model.Assignment{CourseID: course.ID, Period: a.Period, Schedule: a.Schedule})
		}
		cat.Professors = append(cat.Professors, p)
	})

	each(c, root, "student", func(code string, v cue.Value, e studentEntry) {
		program, ok := c.programs[e.Program]
		if !ok {
			c.fail(ErrCodeReference, v, "student %s: unknown program %s", code, e.Program)
			return
		}
		if e.Semester > program.Semesters {
			c.fail(ErrCodeSchema, v, "student %s: semester %d beyond program %s length %d", code, e.Semester, program.Code, program.Semesters)
		}
		s := model.Student{
			ID:        entityID(e.ID, "student", code),
			Code:      code,
			Name:      e.Name,
			Email:     e.Email,
			ProgramID: program.ID,
			Semester:  e.Semester,
			State:     model.StudentState(e.State),
			Completed: []model.CompletedCourse{},
		}
		for _, h := range e.History {
			course, ok := c.courses[h.Course]
			if !ok {
				c.fail(ErrCodeReference, v, "student %s: history references unknown course %s", code, h.Course)
				continue
			}
			grade, err := model.ParseGrade(h.Grade)
			if err != nil {
				c.fail(ErrCodeGrade, v, "student %s: %v", code, err)
				continue
			}
			if rules.Outcome(grade) != model.EnrollmentApproved {
				c.fail(ErrCodeGrade, v, "student %s: history grade %s for %s is not passing", code, grade, h.Course)
				continue
			}
			s.Completed = append(s.Completed, model.CompletedCourse{
				CourseID: course.ID,
				Code:     course.Code,
				Name:     course.Name,
				Period:   h.Period,
				Grade:    grade,
				Credits:  course.Credits,
			})
		}
		rules.Derive(s.Completed, nil, 0).Apply(&s)
		cat.Students = append(cat.Students, s)
	})

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	if len(cat.Programs)+len(cat.Courses)+len(cat.Professors)+len(cat.Students) == 0 {
		return nil, []error{&Error{Code: ErrCodeGeneric, Message: "catalog defines no programs, courses, professors or students"}}
	}

	slices.SortFunc(cat.Programs, func(a, b model.Program) int { return strings.Compare(a.Code, b.Code) })
	slices.SortFunc(cat.Courses, func(a, b model.Course) int { return strings.Compare(a.Code, b.Code) })
	slices.SortFunc(cat.Professors, func(a, b model.Professor) int { return strings.Compare(a.Code, b.Code) })
	slices.SortFunc(cat.Students, func(a, b model.Student) int { return strings.Compare(a.Code, b.Code) })
	return cat, nil
}
