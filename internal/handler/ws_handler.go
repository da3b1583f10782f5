package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aimstudio/aims-backend/internal/config"
	"github.com/aimstudio/aims-backend/internal/middleware"
	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/service"
	ws "github.com/aimstudio/aims-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams finalized responses to the owner dashboard in real time.
type WSHandler struct {
	rdb         *redis.Client
	quizService *service.QuizService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, quizService *service.QuizService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:         rdb,
		quizService: quizService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// ResponseStream godoc
// WS /ws/v1/quizzes/:quiz_id/responses/stream
// Upgrades to WebSocket and forwards every finalized response for the quiz,
// fed by the Redis PubSub channel the play service publishes to.
func (h *WSHandler) ResponseStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quiz ID"})
		return
	}

	// Ownership check happens before the upgrade so a rejected client gets a
	// proper HTTP status instead of a dropped socket.
	if _, err := h.quizService.GetOwned(c.Request.Context(), quizID, claims.UserID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner of this quiz"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID.String()).
		Str("quiz_id", quizID.String()).
		Logger()

	wsLog.Info().Msg("Owner connected to response stream")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.QuizResponsesChannel(quizID.String()))
	defer pubsub.Close()

	// Reader goroutine: answers pings and cancels the stream on disconnect.
	// The wrapped conn serializes its writes against the forward loop below.
	go func() {
		defer cancel()
		for {
			var msg ws.RequestEnvelope
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			switch msg.Action {
			case ws.ActionPing:
				_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
			default:
				_ = conn.WriteError("unknown action")
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var resp model.QuizResponse
			if err := json.Unmarshal([]byte(raw.Payload), &resp); err != nil {
				wsLog.Warn().Err(err).Msg("Malformed response on channel")
				continue
			}
			if err := conn.WriteTyped(ws.ResponseEvent{Event: ws.EventResponse, Response: resp}); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed, closing stream")
				return
			}
		}
	}
}
