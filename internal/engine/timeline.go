package engine

import (
	"sort"
	"time"
)

// EventType mirrors the realtime change feed's event kinds.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
)

// TimelineItem is one entry in a conversation's shared timeline: a
// message, an inline order payload, or a collab session.
type TimelineItem struct {
	ID             string         `json:"id"`
	Table          string         `json:"table"`
	CreatedAt      time.Time      `json:"created_at"`
	SessionStartAt time.Time      `json:"session_start_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// When resolves the ordering timestamp through the fallback chain:
// created time, then session start time, then update time. Not every
// row type guarantees the same timestamp field.
func (it TimelineItem) When() time.Time {
	if !it.CreatedAt.IsZero() {
		return it.CreatedAt
	}
	if !it.SessionStartAt.IsZero() {
		return it.SessionStartAt
	}
	return it.UpdatedAt
}

// TimelineEvent is a pushed change from the realtime feed.
type TimelineEvent struct {
	Type EventType
	Item TimelineItem
}

// Timeline is the local view of a conversation: a cache of store state
// keyed by item id. The zero value is usable.
type Timeline struct {
	items map[string]TimelineItem
}

// Reduce merges a remote event into the timeline and returns the new
// state. Pure: the receiver is never mutated, so reconciliation is a
// deterministic function of (local state, event) regardless of the
// transport that delivered the event. Updates for unknown ids are
// treated as inserts so stale local state self-corrects.
func (t Timeline) Reduce(ev TimelineEvent) Timeline {
	next := Timeline{items: make(map[string]TimelineItem, len(t.items)+1)}
	for id, it := range t.items {
		next.items[id] = it
	}
	switch ev.Type {
	case EventInsert, EventUpdate:
		next.items[ev.Item.key()] = ev.Item
	}
	return next
}

// Items returns the timeline ordered by When, ties broken by id so the
// order is stable across replays.
func (t Timeline) Items() []TimelineItem {
	out := make([]TimelineItem, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := out[i].When(), out[j].When()
		if wi.Equal(wj) {
			return out[i].key() < out[j].key()
		}
		return wi.Before(wj)
	})
	return out
}

// Len reports the number of items.
func (t Timeline) Len() int { return len(t.items) }

func (it TimelineItem) key() string { return it.Table + "/" + it.ID }
