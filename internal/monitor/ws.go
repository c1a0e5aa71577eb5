package monitor

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type eventType string

const (
	eventRefresh     eventType = "refresh"
	eventServerAdded eventType = "server_added"
)

type wsEvent struct {
	Event   eventType `json:"event"`
	Payload any       `json:"payload"`
}

// wsHub pushes refresh-cycle updates to any open list pages.
type wsHub struct {
	log       *zap.Logger
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
}

func newWSHub(logger *zap.Logger) *wsHub {
	return &wsHub{
		log:      logger.Named("ws"),
		upgrader: websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }},
		clients:  map[*websocket.Conn]bool{},
	}
}

func (hub *wsHub) handle(writer http.ResponseWriter, request *http.Request) {
	conn, errUpgrade := hub.upgrader.Upgrade(writer, request, nil)
	if errUpgrade != nil {
		hub.log.Error("Failed to upgrade websocket", zap.Error(errUpgrade))

		return
	}

	hub.clientsMu.Lock()
	hub.clients[conn] = true
	hub.clientsMu.Unlock()

	hub.log.Debug("Websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	for {
		if _, _, errRead := conn.ReadMessage(); errRead != nil {
			break
		}
	}

	hub.clientsMu.Lock()
	delete(hub.clients, conn)
	hub.clientsMu.Unlock()

	_ = conn.Close()
}

func (hub *wsHub) broadcast(event wsEvent) {
	body, errEncode := json.Marshal(event)
	if errEncode != nil {
		hub.log.Error("Failed to encode websocket event", zap.Error(errEncode))

		return
	}

	hub.clientsMu.Lock()
	defer hub.clientsMu.Unlock()

	for conn := range hub.clients {
		if errWrite := conn.WriteMessage(websocket.TextMessage, body); errWrite != nil {
			delete(hub.clients, conn)

			_ = conn.Close()
		}
	}
}
