package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

func appURL() string {
	base := os.Getenv("APP_URL")
	if base == "" {
		base = "http://localhost:3000"
	}
	return strings.TrimRight(base, "/")
}

// EnqueueWelcomeEmail schedules a welcome email to the user
func EnqueueWelcomeEmail(userID, email, name string) error {
	subject := fmt.Sprintf("Welcome to CollabHub, %s!", name)
	body := fmt.Sprintf("Hi %s, thanks for joining CollabHub.\n\nOpen CollabHub: %s\n\nIf the link doesn’t work, copy and paste the URL above.", name, appURL())

	payload := WelcomeEmailPayload{
		UserID: userID, Name: name, Email: email,
		Envelope: EmailEnvelope{To: email, Subject: subject, Body: body},
		SentAt:   time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := ensureClient().Enqueue(asynq.NewTask(TaskWelcomeEmail, b), asynq.Queue("emails"))
	return err
}

// EnqueuePasswordReset schedules a password reset notification
func EnqueuePasswordReset(userID, email, resetURL, name string) error {
	expiry := os.Getenv("PASSWORD_RESET_EXP_MINUTES")
	if expiry == "" {
		expiry = "30"
	}
	subject := "Password reset instructions"
	body := fmt.Sprintf("Hello %s,\n\nWe received a request to reset your CollabHub password.\n\nTo proceed, open the link below:\n%s\n\nThis link expires in %s minutes. If you did not request this, no action is required.\n\n— CollabHub Team", name, resetURL, expiry)

	payload := PasswordResetPayload{
		UserID: userID, Email: email, ResetURL: resetURL,
		Envelope:  EmailEnvelope{To: email, Subject: subject, Body: body},
		Requested: time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := ensureClient().Enqueue(asynq.NewTask(TaskPasswordReset, b), asynq.Queue("emails"))
	return err
}

// orderEventTask maps a lifecycle event to its email task type.
var orderEventTask = map[string]string{
	"offer:accepted":        TaskOfferAccepted,
	"offer:rejected":        TaskOfferRejected,
	"deliverable:submitted": TaskDeliverableReady,
	"milestone:submitted":   TaskMilestoneSubmitted,
	"work:approved":         TaskWorkApproved,
	"milestone:approved":    TaskMilestoneApproved,
	"project:completed":     TaskProjectCompleted,
	"tip:received":          TaskTipReceived,
}

// EnqueueOrderEvent schedules the email for an order lifecycle event.
// Unknown events are dropped; the in-app notification already exists.
func EnqueueOrderEvent(event, orderID, clientID, providerID, email, subject, body string) error {
	taskType, ok := orderEventTask[event]
	if !ok {
		return nil
	}
	payload := OrderEventPayload{
		OrderID: orderID, Event: event,
		ClientID: clientID, ProviderID: providerID, Email: email,
		Envelope: EmailEnvelope{To: email, Subject: subject, Body: body},
		SentAt:   time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := ensureClient().Enqueue(asynq.NewTask(taskType, b), asynq.Queue("emails"))
	return err
}

// EnqueueMessageNew notifies the recipient of a new direct message
func EnqueueMessageNew(conversationID, senderID, recipientID, email, preview string) error {
	if len(preview) > 140 {
		preview = preview[:140] + "…"
	}
	payload := MessageNewPayload{
		ConversationID: conversationID, SenderID: senderID, Recipient: recipientID,
		Email: email, Preview: preview,
		Envelope: EmailEnvelope{
			To:      email,
			Subject: "New message on CollabHub",
			Body:    fmt.Sprintf("You have a new message:\n\n%s\n\nReply: %s/messages/%s", preview, appURL(), conversationID),
		},
		SentAt: time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := ensureClient().Enqueue(asynq.NewTask(TaskMessageNew, b), asynq.Queue("emails"))
	return err
}

// EnqueueRoomInvite notifies the other party of a scheduled session
func EnqueueRoomInvite(roomID, hostID, guestID, email string, startsAt time.Time) error {
	payload := RoomInvitePayload{
		RoomID: roomID, HostID: hostID, GuestID: guestID, Email: email, StartsAt: startsAt,
		Envelope: EmailEnvelope{
			To:      email,
			Subject: "Collab session scheduled",
			Body:    fmt.Sprintf("A live collab session is scheduled for %s.\n\nJoin: %s/rooms/%s", startsAt.Format(time.RFC1123), appURL(), roomID),
		},
		SentAt: time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := ensureClient().Enqueue(asynq.NewTask(TaskRoomInvite, b), asynq.Queue("emails"))
	return err
}
