package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/pkg/apperr"
	"github.com/fatflowers/marketplace/pkg/logctx"
	"github.com/fatflowers/marketplace/pkg/response"
)

// codeOf maps service errors to envelope codes.
func codeOf(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrInsufficientBalance):
		return response.APIResponseCodeBadRequest
	case errors.Is(err, apperr.ErrUpstreamGateway):
		return response.APIResponseCodeUpstream
	default:
		return response.APIResponseCodeError
	}
}

// writeError answers with HTTP 200 and the mapped code. Only unexpected
// errors are logged at error level.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	code := codeOf(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, log).Errorw("request_failed", "error", err.Error())
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
}

// writeErrorWithData keeps partial results, e.g. a payment that was created
// before its gateway call failed.
func writeErrorWithData(c *gin.Context, log *zap.SugaredLogger, err error, data any) {
	code := codeOf(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, log).Errorw("request_failed", "error", err.Error())
	}
	c.JSON(http.StatusOK, &response.APIResponse[any]{
		Code:    code,
		Message: err.Error(),
		Data:    data,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response.OKT(data))
}
