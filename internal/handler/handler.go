package handler

import (
	"net/http"

	"hoa-ledger/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// fail hands err to the error middleware, which picks the status and reason.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func pollIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return uuid.Nil, false
	}
	return id, true
}
