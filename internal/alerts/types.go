package alerts

import "time"

// Task type constants
const (
	TaskWelcomeEmail       = "email:welcome"
	TaskPasswordReset      = "email:password_reset"
	TaskOfferAccepted      = "email:offer_accepted"
	TaskOfferRejected      = "email:offer_rejected"
	TaskDeliverableReady   = "email:deliverable_ready"
	TaskMilestoneSubmitted = "email:milestone_submitted"
	TaskWorkApproved       = "email:work_approved"
	TaskMilestoneApproved  = "email:milestone_approved"
	TaskProjectCompleted   = "email:project_completed"
	TaskTipReceived        = "email:tip_received"
	TaskMessageNew         = "email:message_new"
	TaskRoomInvite         = "email:room_invite"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Welcome email payload
type WelcomeEmailPayload struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Password reset payload
type PasswordResetPayload struct {
	UserID    string        `json:"user_id"`
	Email     string        `json:"email"`
	ResetURL  string        `json:"reset_url"`
	Envelope  EmailEnvelope `json:"envelope"`
	Requested time.Time     `json:"requested"`
}

// OrderEventPayload covers every order and milestone lifecycle email.
// Event matches the in-app notification type (offer:accepted, ...).
type OrderEventPayload struct {
	OrderID    string        `json:"order_id"`
	Event      string        `json:"event"`
	ClientID   string        `json:"client_id"`
	ProviderID string        `json:"provider_id"`
	Email      string        `json:"email"`
	Envelope   EmailEnvelope `json:"envelope"`
	SentAt     time.Time     `json:"sent_at"`
}

// Message new payload (sent to recipient on new message)
type MessageNewPayload struct {
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Recipient      string        `json:"recipient"`
	Email          string        `json:"email"`
	Preview        string        `json:"preview"`
	Envelope       EmailEnvelope `json:"envelope"`
	SentAt         time.Time     `json:"sent_at"`
}

// Room invite payload (sent when a collab session is scheduled)
type RoomInvitePayload struct {
	RoomID   string        `json:"room_id"`
	HostID   string        `json:"host_id"`
	GuestID  string        `json:"guest_id"`
	Email    string        `json:"email"`
	StartsAt time.Time     `json:"starts_at"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}
