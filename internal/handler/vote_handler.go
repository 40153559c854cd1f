package handler

import (
	"net/http"

	"hoa-ledger/internal/commands"
	"hoa-ledger/internal/hashchain"
	"hoa-ledger/internal/services"
	"hoa-ledger/internal/transport/httpdto"
	"hoa-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VoteHandler struct {
	bus *commands.Bus
}

func NewVoteHandler(bus *commands.Bus) *VoteHandler {
	return &VoteHandler{bus: bus}
}

// Cast handles POST /polls/:id/votes. The voter comes from the bearer token;
// callers without one can only vote in anonymous polls.
func (h *VoteHandler) Cast(c *gin.Context) {
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	var req httpdto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	optionID, err := uuid.Parse(req.OptionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid option id", "INVALID_REQUEST"))
		return
	}

	ctx := c.Request.Context()
	cmd := commands.CastVoteCommand{
		PollID:    pollID,
		OptionID:  optionID,
		RequestID: logger.RequestIDFromContext(ctx),
	}
	if voterID, ok := services.VoterIDFromContext(ctx); ok {
		cmd.VoterID = &voterID
	}

	res, err := h.bus.Execute(ctx, cmd)
	if err != nil {
		fail(c, err)
		return
	}
	cast, ok := res.Payload.(services.CastResult)
	if !ok {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.CastVoteResponse{
		PollID:          cast.PollID.String(),
		Sequence:        cast.Sequence,
		ReceiptCode:     cast.ReceiptCode,
		Fingerprint:     cast.Fingerprint,
		PrevFingerprint: cast.PrevFingerprint,
		SubmittedAt:     hashchain.FormatTimestamp(cast.SubmittedAt),
	}))
}
