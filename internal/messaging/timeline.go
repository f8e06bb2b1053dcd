package messaging

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/engine"
)

// Timeline - merged chronological view of a thread: messages, order
// events and collab sessions, folded through the pure reducer so the
// HTTP view and the websocket incremental view agree on ordering.
func Timeline(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	conversationID := c.Param("id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation id"})
	}

	if _, err := otherParticipant(conversationID, userID); err != nil {
		if errors.Is(err, errNotParticipant) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
		}
		return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
	}

	ctx := context.Background()
	var tl engine.Timeline

	// Messages anchor on their creation time.
	msgRows, err := db.Conn.Query(ctx,
		`SELECT id::text, sender_id::text, content, created_at
         FROM messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load messages"})
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var id, senderID, content string
		var createdAt time.Time
		if err := msgRows.Scan(&id, &senderID, &content, &createdAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse message"})
		}
		tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
			ID: id, Table: "messages", CreatedAt: createdAt,
			Payload: map[string]any{"sender_id": senderID, "content": content},
		}})
	}

	// Orders carry their latest status so the card renders current state.
	orderRows, err := db.Conn.Query(ctx,
		`SELECT id::text, kind, title, amount::text, status, created_at, updated_at
         FROM orders WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load orders"})
	}
	defer orderRows.Close()
	for orderRows.Next() {
		var id, kind, title, amount, status string
		var createdAt, updatedAt time.Time
		if err := orderRows.Scan(&id, &kind, &title, &amount, &status, &createdAt, &updatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse order"})
		}
		tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
			ID: id, Table: "orders", CreatedAt: createdAt, UpdatedAt: updatedAt,
			Payload: map[string]any{"kind": kind, "title": title, "amount": amount, "status": status},
		}})
	}

	// Sessions anchor on their start time, not on when the row was made.
	roomRows, err := db.Conn.Query(ctx,
		`SELECT id::text, host_id::text, title, status,
                COALESCE(started_at, scheduled_at, 'epoch'::timestamptz), created_at
         FROM rooms WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rooms"})
	}
	defer roomRows.Close()
	for roomRows.Next() {
		var id, hostID, title, status string
		var sessionStart, createdAt time.Time
		if err := roomRows.Scan(&id, &hostID, &title, &status, &sessionStart, &createdAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse room"})
		}
		tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
			ID: id, Table: "rooms", SessionStartAt: sessionStart, UpdatedAt: createdAt,
			Payload: map[string]any{"host_id": hostID, "title": title, "status": status},
		}})
	}

	type entry struct {
		ID      string         `json:"id"`
		Kind    string         `json:"kind"`
		When    string         `json:"when"`
		Payload map[string]any `json:"payload"`
	}
	items := tl.Items()
	out := make([]entry, 0, len(items))
	for _, it := range items {
		out = append(out, entry{
			ID:      it.ID,
			Kind:    it.Table,
			When:    it.When().UTC().Format(time.RFC3339),
			Payload: it.Payload,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"timeline": out})
}
