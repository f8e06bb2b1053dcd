package messaging

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/db"
)

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type hub struct {
	conversationID string
	clients        map[*websocket.Conn]bool
	mu             sync.RWMutex
}

var (
	hubsMu sync.RWMutex
	hubs   = make(map[string]*hub)
)

func getHub(conversationID string) *hub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	if h, ok := hubs[conversationID]; ok {
		return h
	}
	h := &hub{conversationID: conversationID, clients: make(map[*websocket.Conn]bool)}
	hubs[conversationID] = h
	return h
}

func (h *hub) broadcast(evt wsEvent) {
	payload, _ := json.Marshal(evt)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.WriteMessage(websocket.TextMessage, payload)
	}
}

func (h *hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ConversationWS - websocket for realtime updates in a thread
func ConversationWS(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	conversationID := c.Param("id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation id"})
	}

	if _, err := otherParticipant(conversationID, userID); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h := getHub(conversationID)
	h.register(ws)

	h.broadcast(wsEvent{Type: "presence_join", Data: echo.Map{"user_id": userID}})

	// Read loop (discard client messages; protocol is server push for now)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(ws)
			_ = ws.Close()
			h.broadcast(wsEvent{Type: "presence_leave", Data: echo.Map{"user_id": userID}})
			break
		}
	}
	return nil
}

// BroadcastNewMessage - publish a new message event to the thread hub
func BroadcastNewMessage(conversationID string, message interface{}) {
	getHub(conversationID).broadcast(wsEvent{Type: "message_new", Data: message})
}

// BroadcastMessageRead - publish a message read event
func BroadcastMessageRead(conversationID string, payload interface{}) {
	getHub(conversationID).broadcast(wsEvent{Type: "message_read", Data: payload})
}

// BroadcastOrderUpdate pushes an order status change into the thread it
// belongs to, so open chat views refresh the order card live.
func BroadcastOrderUpdate(orderID, status string) {
	var conversationID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT COALESCE(conversation_id::text, '') FROM orders WHERE id = $1`, orderID).Scan(&conversationID)
	if err != nil || conversationID == "" {
		log.Printf("[messaging] order update broadcast skipped order=%s: %v", orderID, err)
		return
	}
	getHub(conversationID).broadcast(wsEvent{Type: "order_update", Data: echo.Map{
		"order_id": orderID,
		"status":   status,
	}})
}

// BroadcastRoomUpdate pushes collab session changes into the thread.
func BroadcastRoomUpdate(conversationID string, payload interface{}) {
	getHub(conversationID).broadcast(wsEvent{Type: "room_update", Data: payload})
}
