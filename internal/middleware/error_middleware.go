package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"hoa-ledger/internal/transport/httpdto"
	ledger_errors "hoa-ledger/pkg/errors"
	"hoa-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Clients get the reason code and a safe message; the cause is only logged.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := ledger_errors.HTTPStatus(err)
		if l != nil && status >= http.StatusInternalServerError && !errors.Is(err, ledger_errors.ErrContended) {
			l.For(c.Request.Context()).Error("request failed", zap.Error(err), zap.String("route", c.FullPath()))
		}
		if ledger_errors.Retryable(err) {
			c.Header("Retry-After", strconv.Itoa(1))
		}
		c.JSON(status, httpdto.ErrorResponseFrom(err))
	}
}
