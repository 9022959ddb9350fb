package handler

import (
	"net/http"
	"time"

	"github.com/bumpring/bumpring/internal/engage"
	"github.com/bumpring/bumpring/internal/hub"
	"github.com/bumpring/bumpring/internal/setup/config"
	"github.com/gorilla/websocket"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// LiveHandler upgrades clients onto the live event channel of their
// pregnancy group.
type LiveHandler struct {
	engage    *engage.Service
	hub       *hub.Hub
	upgrader  websocket.Upgrader
	heartbeat time.Duration
	maxMissed int
	queueSize int
	logger    *zap.Logger
}

// NewLiveHandler creates a new live channel handler.
func NewLiveHandler(service *engage.Service, liveHub *hub.Hub, cfg *config.Config, logger *zap.Logger) *LiveHandler {
	allowed := make(map[string]struct{}, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &LiveHandler{
		engage: service,
		hub:    liveHub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}

				if _, ok := allowed["*"]; ok {
					return true
				}

				_, ok := allowed[origin]

				return ok
			},
		},
		heartbeat: time.Duration(cfg.Hub.HeartbeatInterval) * time.Second,
		maxMissed: cfg.Hub.MaxMissedHeartbeats,
		queueSize: cfg.Hub.SendQueueSize,
		logger:    logger.Named("rest_live"),
	}
}

// Connect upgrades the request to a websocket subscribed to the group
// channel. Membership is verified before the upgrade; after it, the
// connection lives until the client disconnects or misses its heartbeats.
func (h *LiveHandler) Connect(w http.ResponseWriter, req bunrouter.Request) error {
	user, ok := userID(w, req)
	if !ok {
		return nil
	}

	groupID := req.URL.Query().Get("group")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "missing group parameter")
		return nil
	}

	member, err := h.engage.Member(req.Context(), user, groupID)
	if err != nil {
		h.logger.Error("Failed to check group membership", zap.Error(err))
		handleServiceError(w, err)

		return nil
	}

	if !member {
		writeError(w, http.StatusForbidden, engage.ErrNotAllowed.Error())
		return nil
	}

	ws, err := h.upgrader.Upgrade(w, req.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return nil
	}

	conn := hub.NewConnection(ws, user, groupID, h.queueSize, h.logger)
	h.hub.Register(conn)

	go conn.WritePump(h.heartbeat)
	go conn.ReadPump(h.heartbeat, h.maxMissed, h.hub.Unregister)

	return nil
}
