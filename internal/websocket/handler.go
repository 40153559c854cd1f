package websocket

import (
	"context"
	"net/http"

	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/services"
	"hoa-ledger/internal/transport/httpdto"
	ledger_errors "hoa-ledger/pkg/errors"
	"hoa-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PollLookup confirms a poll exists before a viewer is attached to it.
type PollLookup interface {
	Get(ctx context.Context, id uuid.UUID) (poll.Poll, error)
}

type Handler struct {
	polls    PollLookup
	hub      *Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(polls PollLookup, hub *Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		polls: polls,
		hub:   hub,
		log:   log.Logger.With(zap.String("component", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Live streams the public chain head of one poll: sequence, fingerprint and
// time of every accepted vote. No identity is needed to watch.
func (h *Handler) Live(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid poll id", "INVALID_REQUEST"))
		return
	}
	if _, err := h.polls.Get(c.Request.Context(), pollID); err != nil {
		c.JSON(ledger_errors.HTTPStatus(err), httpdto.ErrorResponseFrom(err))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	viewerID, _ := services.VoterIDFromContext(c.Request.Context())
	client := NewClient(conn, viewerID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.PollChannel(pollID.String()))
	go client.WriteLoop(ctx)

	h.log.Debug("viewer connected", zap.String("client_id", client.ID), zap.String("poll_id", pollID.String()))

	client.ReadLoop()
	h.hub.Unregister(client)
	h.log.Debug("viewer disconnected", zap.String("client_id", client.ID))
}
