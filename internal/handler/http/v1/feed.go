package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/changefeed"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// @Summary Stream collection snapshots
// @Description Websocket stream of full collection snapshots: one on connect and one after every change. A plain GET returns a single snapshot. Requires API key.
// @Tags Feed
// @Produce json
// @Security ApiKeyAuth
// @Param collection path string true "incidents, units or dispatches"
// @Success 101 "Switching Protocols"
// @Success 200 {object} map[string]interface{} "Single snapshot"
// @Failure 404 {object} map[string]string "Unknown collection"
// @Failure 503 {object} map[string]string "Store unavailable"
// @Router /feed/{collection} [get]
func (h *Handler) streamFeed(c *gin.Context) {
	collection := models.Collection(c.Param("collection"))
	log := h.logger.WithField("method", "streamFeed").WithField("collection", collection)
	if !collection.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
		return
	}

	switch collection {
	case models.CollectionIncidents:
		serveFeed(c, h.feeds.Incidents, log)
	case models.CollectionUnits:
		serveFeed(c, h.feeds.Units, log)
	case models.CollectionDispatches:
		serveFeed(c, h.feeds.Dispatches, log)
	}
}

func serveFeed[T any](c *gin.Context, feed *changefeed.Feed[T], log *logrus.Entry) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		snap, err := feed.Poll(c.Request.Context())
		if err != nil {
			respondError(c, log, err, "Failed to poll collection snapshot")
			return
		}
		c.JSON(http.StatusOK, snap)
		return
	}

	// Подписка открывается до апгрейда: ошибку хранилища еще можно вернуть обычным ответом
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	sub, err := feed.Subscribe(ctx)
	if err != nil {
		respondError(c, log, err, "Failed to subscribe to change feed")
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade connection")
		return
	}
	log.Info("Feed client connected")

	closed := make(chan struct{})
	go readPump(conn, closed, log)
	writePump(conn, sub, closed, log)
	log.Info("Feed client disconnected")
}

// readPump читает входящие кадры только ради pong и закрытия соединения
func readPump(conn *websocket.Conn, closed chan<- struct{}, log *logrus.Entry) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Websocket read error")
			}
			return
		}
	}
}

func writePump[T any](conn *websocket.Conn, sub *changefeed.Subscription[T], closed <-chan struct{}, log *logrus.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-sub.Snapshots():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				if err := sub.Err(); err != nil {
					log.WithError(err).Warn("Change feed interrupted")
				}
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed interrupted"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				log.WithError(err).Warn("Failed to write snapshot")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
