package api

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/roach88/registrar/internal/model"
)

// stream follows the change log of one collection as server-sent events
// until the client disconnects. Each event carries the sequence number as
// its id, so a client resumes with ?from=<last id>. Lock contention is
// retried; any other read failure ends the stream with an error event.
func (s *Server) stream(c *gin.Context) {
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

	ctx := c.Request.Context()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for ev, err := range s.log.Subscribe(ctx, collection, from) {
		if err != nil {
			if model.Retryable(err) {
				s.logger.WarnContext(ctx, "change stream read failed", "collection", collection, "error", err)
				continue
			}
			s.logger.ErrorContext(ctx, "change stream closed", "collection", collection, "error", err)
			c.Render(-1, sse.Event{Event: "error", Data: FromError(err)})
			c.Writer.Flush()
			return
		}
		c.Render(-1, sse.Event{
			Id:    strconv.FormatInt(ev.Seq, 10),
			Event: "change",
			Data:  ev,
		})
		c.Writer.Flush()
	}
}
