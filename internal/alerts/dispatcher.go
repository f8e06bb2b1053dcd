package alerts

import (
	"context"
	"log"

	"github.com/collabhub/collabhub/internal/db"
)

var eventTitles = map[string]string{
	"offer:accepted":        "Offer accepted",
	"offer:rejected":        "Offer declined",
	"deliverable:submitted": "Deliverable submitted",
	"milestone:submitted":   "Milestone submitted",
	"work:approved":         "Work approved",
	"milestone:approved":    "Milestone approved",
	"project:completed":     "Project completed",
	"tip:received":          "You received a tip",
}

// Dispatcher fans a lifecycle event out to an in-app notification row
// and an email task. It is the engine's Notifier: a failure here never
// rolls back the status flip, so everything inside is best-effort.
type Dispatcher struct{}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Notify(ctx context.Context, fromID, toID, event, message, reference string) error {
	title, ok := eventTitles[event]
	if !ok {
		title = event
	}

	if err := CreateNotification(toID, event, title, message, &reference); err != nil {
		log.Printf("[notify] create notification event=%s to=%s: %v", event, toID, err)
	}

	var email string
	if err := db.Conn.QueryRow(ctx,
		`SELECT email FROM users WHERE id = $1`, toID).Scan(&email); err != nil || email == "" {
		return err
	}
	return EnqueueOrderEvent(event, reference, fromID, toID, email, title, message)
}
