package handler

import (
	"net/http"
	"strconv"

	"hoa-ledger/internal/services"
	"hoa-ledger/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type IntegrityHandler struct {
	service *services.ValidatorService
}

func NewIntegrityHandler(service *services.ValidatorService) *IntegrityHandler {
	return &IntegrityHandler{service: service}
}

// Check handles GET /polls/:id/integrity. With ?archive=true the report is
// also written to the report archive.
func (h *IntegrityHandler) Check(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	report, err := h.service.Validate(ctx, pollID)
	if err != nil {
		fail(c, err)
		return
	}

	dto := httpdto.IntegrityReportDTO{
		PollID:      report.PollID.String(),
		PollTitle:   report.PollTitle,
		PollKind:    string(report.PollKind),
		CheckedAt:   report.CheckedAt,
		Valid:       report.Valid,
		TotalVotes:  report.TotalVotes,
		BrokenLinks: report.BrokenLinks,
	}

	if archive, _ := strconv.ParseBool(c.Query("archive")); archive {
		location, err := h.service.ArchiveReport(ctx, report)
		if err != nil {
			fail(c, err)
			return
		}
		dto.ArchiveLocation = location
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(dto))
}
