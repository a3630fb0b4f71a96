package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/nearby_news/internal/upload"
	"github.com/nitesh/nearby_news/internal/validate"
)

func errorBody(kind, field, msg string) gin.H {
	e := gin.H{"kind": kind, "message": msg}
	if field != "" {
		e["field"] = field
	}
	return gin.H{"success": false, "error": e}
}

// fail maps service errors onto status codes. Anything unrecognised is a
// 500 with a generic message; the detail only goes to the log.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *validate.Error
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": ve})
	case errors.Is(err, upload.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorBody("PayloadTooLarge", "image", err.Error()))
	case errors.Is(err, upload.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, errorBody("UnsupportedMediaType", "image", err.Error()))
	default:
		h.log.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorBody("StorageFailure", "", "Server Error"))
	}
}

func (h *Handler) formError(c *gin.Context, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody("PayloadTooLarge", "image", upload.ErrTooLarge.Error()))
		return
	}
	c.JSON(http.StatusBadRequest, errorBody(string(validate.InvalidType), "", "invalid multipart form"))
}

func badJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorBody(string(validate.InvalidType), "", "request body must be valid JSON"))
}
