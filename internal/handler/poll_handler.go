package handler

import (
	"net/http"
	"time"

	"hoa-ledger/internal/commands"
	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/services"
	"hoa-ledger/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	service *services.PollService
	bus     *commands.Bus
	now     func() time.Time
}

func NewPollHandler(service *services.PollService, bus *commands.Bus) *PollHandler {
	return &PollHandler{service: service, bus: bus, now: time.Now}
}

func (h *PollHandler) Create(c *gin.Context) {
	var req httpdto.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	creator, _ := services.VoterIDFromContext(c.Request.Context())
	res, err := h.bus.Execute(c.Request.Context(), commands.CreatePollCommand{
		Title:             req.Title,
		Description:       req.Description,
		Kind:              req.Kind,
		Anonymous:         req.Anonymous,
		PreventDuplicates: req.PreventDuplicates,
		NotifyOnCreate:    req.NotifyOnCreate,
		OpensAt:           req.OpensAt,
		ClosesAt:          req.ClosesAt,
		Options:           req.Options,
		CreatedBy:         creator,
	})
	if err != nil {
		fail(c, err)
		return
	}
	p, _ := res.Payload.(poll.Poll)
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromPoll(p, h.now())))
}

func (h *PollHandler) Get(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromPoll(p, h.now())))
}

func (h *PollHandler) List(c *gin.Context) {
	var req httpdto.ListPollsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	items, total, err := h.service.List(c.Request.Context(), req.Page, req.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	now := h.now()
	polls := make([]httpdto.PollDTO, 0, len(items))
	for _, p := range items {
		polls = append(polls, httpdto.FromPoll(p, now))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListPollsResponse{
		Polls: polls,
		Total: total,
		Page:  req.Page,
		Limit: req.Limit,
	}))
}

func (h *PollHandler) Update(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	var req httpdto.UpdatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.bus.Execute(c.Request.Context(), commands.UpdatePollCommand{
		PollID:            id,
		Title:             req.Title,
		Description:       req.Description,
		Kind:              req.Kind,
		Anonymous:         req.Anonymous,
		PreventDuplicates: req.PreventDuplicates,
		NotifyOnCreate:    req.NotifyOnCreate,
		OpensAt:           req.OpensAt,
		ClosesAt:          req.ClosesAt,
	})
	if err != nil {
		fail(c, err)
		return
	}
	p, _ := res.Payload.(poll.Poll)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromPoll(p, h.now())))
}

func (h *PollHandler) Delete(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PollHandler) Results(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		return
	}
	res, err := h.service.Results(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}
