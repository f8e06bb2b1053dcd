package messaging

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/collabhub/collabhub/internal/alerts"
	"github.com/collabhub/collabhub/internal/db"
)

var errNotParticipant = errors.New("not a participant")

// otherParticipant verifies membership and returns the counterpart's id.
func otherParticipant(conversationID, userID string) (string, error) {
	var clientID, providerID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT client_id::text, provider_id::text FROM conversations WHERE id = $1`, conversationID,
	).Scan(&clientID, &providerID)
	if err != nil {
		return "", err
	}
	switch userID {
	case clientID:
		return providerID, nil
	case providerID:
		return clientID, nil
	default:
		return "", errNotParticipant
	}
}

// ListConversations - all threads the user is part of, newest activity first
func ListConversations(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(), `
		SELECT cv.id::text, cv.client_id::text, cv.provider_id::text, cv.created_at,
		       COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.conversation_id = cv.id), cv.created_at),
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = cv.id AND m.recipient_id = $1 AND m.read_at IS NULL)
		FROM conversations cv
		WHERE cv.client_id = $1 OR cv.provider_id = $1
		ORDER BY 5 DESC
	`, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list conversations"})
	}
	defer rows.Close()

	type conversation struct {
		ID           string    `json:"id"`
		ClientID     string    `json:"client_id"`
		ProviderID   string    `json:"provider_id"`
		CreatedAt    time.Time `json:"created_at"`
		LastActivity time.Time `json:"last_activity"`
		Unread       int64     `json:"unread"`
	}

	var items []conversation
	for rows.Next() {
		var cv conversation
		if err := rows.Scan(&cv.ID, &cv.ClientID, &cv.ProviderID, &cv.CreatedAt, &cv.LastActivity, &cv.Unread); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		items = append(items, cv)
	}

	return c.JSON(http.StatusOK, echo.Map{"conversations": items})
}

// SendMessage - either participant sends a message in a thread
func SendMessage(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	conversationID := c.Param("id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation id"})
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil || body.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	recipientID, err := otherParticipant(conversationID, userID)
	if err != nil {
		if errors.Is(err, errNotParticipant) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
		}
		return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
	}

	msgID := uuid.New().String()
	var createdAt time.Time
	err = db.Conn.QueryRow(context.Background(),
		`INSERT INTO messages (id, conversation_id, sender_id, recipient_id, content)
         VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		msgID, conversationID, userID, recipientID, body.Content,
	).Scan(&createdAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	// Broadcast new message event to WS subscribers
	BroadcastNewMessage(conversationID, echo.Map{
		"id":              msgID,
		"conversation_id": conversationID,
		"sender_id":       userID,
		"recipient_id":    recipientID,
		"content":         body.Content,
		"created_at":      createdAt.UTC().Format(time.RFC3339),
	})

	// In-app notification for recipient
	ref := msgID
	_ = alerts.CreateNotification(recipientID, "message:new", "New message", body.Content, &ref)

	// Email notification (best-effort)
	var recipientEmail string
	_ = db.Conn.QueryRow(context.Background(), `SELECT email FROM users WHERE id = $1`, recipientID).Scan(&recipientEmail)
	if recipientEmail != "" {
		_ = alerts.EnqueueMessageNew(conversationID, userID, recipientID, recipientEmail, body.Content)
	}

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID})
}

// ListMessages - get the message history of a thread
func ListMessages(c echo.Context) error {
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

	// Optional since filter for incremental fetches
	sinceStr := c.QueryParam("since")
	var (
		rows pgx.Rows
		err  error
	)
	if sinceStr != "" {
		sinceTime, parseErr := time.Parse(time.RFC3339, sinceStr)
		if parseErr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp, use RFC3339"})
		}
		rows, err = db.Conn.Query(context.Background(),
			`SELECT id::text, sender_id::text, recipient_id::text, content, created_at, read_at
             FROM messages WHERE conversation_id = $1 AND created_at > $2 ORDER BY created_at ASC`,
			conversationID, sinceTime,
		)
	} else {
		rows, err = db.Conn.Query(context.Background(),
			`SELECT id::text, sender_id::text, recipient_id::text, content, created_at, read_at
             FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID,
		)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list messages"})
	}
	defer rows.Close()

	type message struct {
		ID          string      `json:"id"`
		SenderID    string      `json:"sender_id"`
		RecipientID string      `json:"recipient_id"`
		Content     string      `json:"content"`
		CreatedAt   string      `json:"created_at"`
		ReadAt      interface{} `json:"read_at"`
	}

	var msgs []message
	for rows.Next() {
		var m message
		var createdAt, readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &createdAt, &readAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		if createdAt.Valid {
			m.CreatedAt = createdAt.Time.UTC().Format(time.RFC3339)
		}
		if readAt.Valid {
			m.ReadAt = readAt.Time.UTC().Format(time.RFC3339)
		} else {
			m.ReadAt = nil
		}
		msgs = append(msgs, m)
	}

	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// UnreadCount - unread messages for the current user in a thread
func UnreadCount(c echo.Context) error {
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

	var count int64
	err := db.Conn.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND recipient_id = $2 AND read_at IS NULL`,
		conversationID, userID,
	).Scan(&count)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute unread count"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// MarkMessageRead - recipient marks a specific message as read
func MarkMessageRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	conversationID := c.Param("id")
	msgID := c.Param("message_id")
	if conversationID == "" || msgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation or message id"})
	}

	var recipientID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT recipient_id::text FROM messages WHERE id = $1 AND conversation_id = $2`, msgID, conversationID,
	).Scan(&recipientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch message"})
	}
	if recipientID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the recipient"})
	}

	var readTS time.Time
	err = db.Conn.QueryRow(context.Background(),
		`UPDATE messages SET read_at = NOW() WHERE id = $1 AND recipient_id = $2 RETURNING read_at`, msgID, userID,
	).Scan(&readTS)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark read"})
	}

	BroadcastMessageRead(conversationID, echo.Map{
		"message_id":      msgID,
		"conversation_id": conversationID,
		"user_id":         userID,
		"read_at":         readTS.UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID, "read_at": readTS.UTC().Format(time.RFC3339)})
}
