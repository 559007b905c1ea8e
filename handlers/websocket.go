package handlers

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"community-chat/models"
)

var (
	// WebSocket upgrader
	wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // local UI server, allow all origins
		},
	}

	wsClients    = make(map[string]*websocket.Conn)
	wsClientsMux sync.Mutex
)

// BroadcastToClients pushes a state-change event to every connected UI client.
func BroadcastToClients(messageType string, payload interface{}) {
	wsClientsMux.Lock()
	defer wsClientsMux.Unlock()

	if len(wsClients) == 0 {
		return
	}

	wsMessage := models.WSMessage{
		Type:    messageType,
		Payload: payload,
	}

	for id, client := range wsClients {
		err := client.WriteJSON(wsMessage)
		if err != nil {
			client.Close()
			delete(wsClients, id)
		}
	}
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client goes away. The feed is one-directional; inbound frames are drained
// and dropped.
func HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "Could not upgrade connection", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	wsClientsMux.Lock()
	wsClients[id] = conn
	wsClientsMux.Unlock()

	defer func() {
		wsClientsMux.Lock()
		delete(wsClients, id)
		wsClientsMux.Unlock()
		conn.Close()
	}()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
