package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/registrar/internal/coordinator"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

type gradeRequest struct {
	Grade *model.Grade `json:"grade"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) enroll(c *gin.Context) {
	var req coordinator.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, badRequest(err))
		return
	}
	res, err := s.coord.EnrollBatch(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	JSON(c, http.StatusCreated, res)
}

func (s *Server) grade(c *gin.Context) {
	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, badRequest(err))
		return
	}
	if req.Grade == nil {
		Fail(c, model.Errorf(model.InvalidArgument, "grade is required"))
		return
	}
	res, err := s.coord.RecordGrade(c.Request.Context(), c.Param("id"), *req.Grade)
	if err != nil {
		Fail(c, err)
		return
	}
	JSON(c, http.StatusOK, res)
}

func (s *Server) withdraw(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.coord.WithdrawCourse(ctx, id); err != nil {
		Fail(c, err)
		return
	}
	e, err := s.store.Enrollment(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	JSON(c, http.StatusOK, e)
}

func (s *Server) graduate(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")
	if err := s.coord.GraduateStudent(ctx, code); err != nil {
		Fail(c, err)
		return
	}
	st, err := s.store.Student(ctx, code)
	if err != nil {
		Fail(c, err)
		return
	}
	JSON(c, http.StatusOK, st)
}

func (s *Server) student(c *gin.Context) {
	st, err := s.store.Student(c.Request.Context(), c.Param("code"))
	if err != nil {
		Fail(c, err)
		return
	}
	JSON(c, http.StatusOK, st)
}

func (s *Server) studentEnrollments(c *gin.Context) {
	list, err := s.store.Enrollments(c.Request.Context(), c.Param("code"))
	if err != nil {
		Fail(c, err)
		return
	}
	JSON(c, http.StatusOK, list, map[string]interface{}{"count": len(list)})
}

func (s *Server) enrollment(c *gin.Context) {
	e, err := s.store.Enrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	JSON(c, http.StatusOK, e)
}

func (s *Server) gradeHistory(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.store.Enrollment(ctx, id); err != nil {
		Fail(c, err)
		return
	}
	hist, err := s.store.GradeHistory(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	if hist == nil {
		hist = []model.GradeHistoryRecord{}
	}
	JSON(c, http.StatusOK, hist)
}

// changes returns one page of the change log after ?from=. meta.next is
// the cursor to pass for the following page.
func (s *Server) changes(c *gin.Context) {
	collection, err := model.ParseCollection(c.Param("collection"))
	if err != nil {
		Fail(c, err)
		return
	}
	from, err := queryInt(c, "from", 0)
	if err != nil {
		Fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", int64(s.log.BatchSize()))
	if err != nil {
		Fail(c, err)
		return
	}
	events, err := s.log.Read(c.Request.Context(), collection, from, int(limit))
	if err != nil {
		Fail(c, err)
		return
	}
	next := from
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	if events == nil {
		events = []model.ChangeEvent{}
	}
	JSON(c, http.StatusOK, events, map[string]interface{}{"next": next})
}

func (s *Server) audit(c *gin.Context) {
	f := store.AuditFilter{
		EntityID:  c.Query("entity"),
		Operation: model.Operation(c.Query("operation")),
	}
	if raw := c.Query("collection"); raw != "" {
		collection, err := model.ParseCollection(raw)
		if err != nil {
			Fail(c, err)
			return
		}
		f.Collection = collection
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		Fail(c, err)
		return
	}
	f.Limit = int(limit)

	records, err := s.store.AuditRecords(c.Request.Context(), f)
	if err != nil {
		Fail(c, err)
		return
	}
	if records == nil {
		records = []model.AuditRecord{}
	}
	JSON(c, http.StatusOK, records)
}

func queryInt(c *gin.Context, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, model.Errorf(model.InvalidArgument, "%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}
