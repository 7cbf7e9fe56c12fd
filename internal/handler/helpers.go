package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/middleware"
	"github.com/lectern-app/lectern/internal/pkg/errcode"
	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
	"github.com/lectern-app/lectern/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, err.Error())
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		response.Error(c, errcode.ErrUnsupportedFormat, err.Error())
	case errors.Is(err, appErr.ErrCorruptFile):
		response.Error(c, errcode.ErrCorruptFile, err.Error())
	case errors.Is(err, appErr.ErrGenerationInvalid):
		response.Error(c, errcode.ErrGenerationInvalid, err.Error())
	case errors.Is(err, appErr.ErrInsufficientContent):
		response.Error(c, errcode.ErrInsufficientContent, err.Error())
	case errors.Is(err, appErr.ErrTimeout):
		response.Error(c, errcode.ErrTimeout, "generation timed out")
	case errors.Is(err, appErr.ErrAIUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai provider unavailable")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
