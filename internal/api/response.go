package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/registrar/internal/model"
)

// Envelope is the common response contract.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *Error                 `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Error is the wire form of a failed request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

const codeInternal = "INTERNAL_ERROR"

var statusByCode = map[model.Code]int{
	model.NotFound:               http.StatusNotFound,
	model.DuplicateEnrollment:    http.StatusConflict,
	model.InvalidStateTransition: http.StatusConflict,
	model.CapacityExceeded:       http.StatusConflict,
	model.InsufficientCredits:    http.StatusUnprocessableEntity,
	model.TransactionAborted:     http.StatusServiceUnavailable,
	model.InvalidArgument:        http.StatusBadRequest,
}

// FromError maps a registrar error onto its HTTP status. Errors without a
// registrar code are internal.
func FromError(err error) *Error {
	var me *model.Error
	if errors.As(err, &me) {
		status, ok := statusByCode[me.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		msg := me.Message
		if me.Err != nil {
			msg += ": " + me.Err.Error()
		}
		return &Error{Code: string(me.Code), Message: msg, Status: status}
	}
	return &Error{Code: codeInternal, Message: "internal server error", Status: http.StatusInternalServerError}
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	env := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		env.Meta = meta[0]
	}
	c.JSON(status, env)
}

// Fail sends an error response and records the error on the context.
func Fail(c *gin.Context, err error) {
	apiErr := FromError(err)
	_ = c.Error(err)
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(apiErr.Status, Envelope{Error: apiErr})
}

// badRequest wraps a binding failure as InvalidArgument.
func badRequest(err error) error {
	return model.Wrap(model.InvalidArgument, err, "invalid payload")
}
