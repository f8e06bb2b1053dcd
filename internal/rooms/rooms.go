// Package rooms manages live collab sessions attached to a
// conversation thread. A session moves scheduled -> live -> ended; the
// thread's websocket hub carries the transitions in real time.
package rooms

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/alerts"
	"github.com/collabhub/collabhub/internal/db"
	"github.com/collabhub/collabhub/internal/messaging"
)

type Room struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	HostID         string     `json:"host_id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// participants returns both sides of the thread, or an error if the
// user is not one of them.
func participants(ctx context.Context, conversationID, userID string) (clientID, providerID string, err error) {
	err = db.Conn.QueryRow(ctx,
		`SELECT client_id::text, provider_id::text FROM conversations WHERE id = $1`, conversationID,
	).Scan(&clientID, &providerID)
	if err != nil {
		return "", "", err
	}
	if userID != clientID && userID != providerID {
		return "", "", echo.ErrForbidden
	}
	return clientID, providerID, nil
}

type ScheduleRequest struct {
	ConversationID string     `json:"conversation_id"`
	Title          string     `json:"title"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
}

// =========================
// ScheduleRoom - Either party books a collab session in their thread
// =========================
func ScheduleRoom(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(ScheduleRequest)
	if err := c.Bind(req); err != nil || req.ConversationID == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "conversation_id and title are required"})
	}

	ctx := context.Background()
	clientID, providerID, err := participants(ctx, req.ConversationID, userID)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
	}

	var id string
	err = db.Conn.QueryRow(ctx, `
		INSERT INTO rooms (conversation_id, host_id, title, scheduled_at)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, req.ConversationID, userID, req.Title, req.ScheduledAt).Scan(&id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to schedule session"})
	}

	// Invite the other party (best-effort)
	guestID := providerID
	if userID == providerID {
		guestID = clientID
	}
	_ = alerts.CreateNotification(guestID, "room:invite", "Collab session scheduled", req.Title, &id)
	if req.ScheduledAt != nil {
		var guestEmail string
		_ = db.Conn.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, guestID).Scan(&guestEmail)
		if guestEmail != "" {
			_ = alerts.EnqueueRoomInvite(id, userID, guestID, guestEmail, *req.ScheduledAt)
		}
	}

	messaging.BroadcastRoomUpdate(req.ConversationID, echo.Map{"room_id": id, "status": "scheduled"})
	return c.JSON(http.StatusCreated, echo.Map{"room_id": id, "message": "Session scheduled"})
}

// =========================
// StartRoom - Host goes live
// =========================
func StartRoom(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")
	if roomID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing room id"})
	}

	var conversationID string
	err := db.Conn.QueryRow(context.Background(), `
		UPDATE rooms SET status = 'live', started_at = NOW()
		WHERE id = $1 AND host_id = $2 AND status = 'scheduled'
		RETURNING conversation_id::text
	`, roomID, userID).Scan(&conversationID)
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "room not found, not yours, or already started"})
	}

	messaging.BroadcastRoomUpdate(conversationID, echo.Map{"room_id": roomID, "status": "live"})
	return c.JSON(http.StatusOK, echo.Map{"message": "Session started"})
}

// =========================
// EndRoom - Host ends the session
// =========================
func EndRoom(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID := c.Param("id")
	if roomID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing room id"})
	}

	var conversationID string
	err := db.Conn.QueryRow(context.Background(), `
		UPDATE rooms SET status = 'ended', ended_at = NOW()
		WHERE id = $1 AND host_id = $2 AND status = 'live'
		RETURNING conversation_id::text
	`, roomID, userID).Scan(&conversationID)
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "room not found, not yours, or not live"})
	}

	messaging.BroadcastRoomUpdate(conversationID, echo.Map{"room_id": roomID, "status": "ended"})
	return c.JSON(http.StatusOK, echo.Map{"message": "Session ended"})
}

// =========================
// ListRooms - Sessions in one conversation
// =========================
func ListRooms(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	conversationID := c.Param("id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation id"})
	}

	ctx := context.Background()
	if _, _, err := participants(ctx, conversationID, userID); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
	}

	rows, err := db.Conn.Query(ctx, `
		SELECT id::text, conversation_id::text, host_id::text, title, status,
		       scheduled_at, started_at, ended_at, created_at
		FROM rooms WHERE conversation_id = $1
		ORDER BY COALESCE(started_at, scheduled_at, created_at) DESC
	`, conversationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list sessions"})
	}
	defer rows.Close()

	var items []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.HostID, &r.Title, &r.Status,
			&r.ScheduledAt, &r.StartedAt, &r.EndedAt, &r.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse session"})
		}
		items = append(items, r)
	}

	return c.JSON(http.StatusOK, echo.Map{"rooms": items})
}
