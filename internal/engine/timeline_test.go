package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/engine"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWhenFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		item engine.TimelineItem
		want time.Time
	}{
		{
			name: "created time wins",
			item: engine.TimelineItem{
				CreatedAt:      ts("2026-01-01T10:00:00Z"),
				SessionStartAt: ts("2026-01-01T11:00:00Z"),
				UpdatedAt:      ts("2026-01-01T12:00:00Z"),
			},
			want: ts("2026-01-01T10:00:00Z"),
		},
		{
			name: "session start when no created time",
			item: engine.TimelineItem{
				SessionStartAt: ts("2026-01-01T11:00:00Z"),
				UpdatedAt:      ts("2026-01-01T12:00:00Z"),
			},
			want: ts("2026-01-01T11:00:00Z"),
		},
		{
			name: "update time as last resort",
			item: engine.TimelineItem{UpdatedAt: ts("2026-01-01T12:00:00Z")},
			want: ts("2026-01-01T12:00:00Z"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.When())
		})
	}
}

func TestReduceInsertAndUpdate(t *testing.T) {
	var tl engine.Timeline

	tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
		ID: "m1", Table: "messages", CreatedAt: ts("2026-01-01T10:00:00Z"),
		Payload: map[string]any{"content": "hello"},
	}})
	tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
		ID: "o1", Table: "orders", CreatedAt: ts("2026-01-01T09:00:00Z"),
	}})
	tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
		ID: "r1", Table: "rooms", SessionStartAt: ts("2026-01-01T09:30:00Z"),
	}})

	items := tl.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "o1", items[0].ID)
	assert.Equal(t, "r1", items[1].ID)
	assert.Equal(t, "m1", items[2].ID)

	// An update replaces the cached row without reordering history.
	tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventUpdate, Item: engine.TimelineItem{
		ID: "o1", Table: "orders", CreatedAt: ts("2026-01-01T09:00:00Z"),
		Payload: map[string]any{"status": "accepted"},
	}})
	items = tl.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "accepted", items[0].Payload["status"])
}

func TestReduceUpdateForUnknownRowSelfCorrects(t *testing.T) {
	// Stale local state: an update arrives for a row this session never
	// saw inserted. It must be merged in, not dropped.
	var tl engine.Timeline
	tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventUpdate, Item: engine.TimelineItem{
		ID: "o9", Table: "orders", CreatedAt: ts("2026-01-01T08:00:00Z"),
	}})
	assert.Equal(t, 1, tl.Len())
}

func TestReduceIsPure(t *testing.T) {
	var base engine.Timeline
	base = base.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
		ID: "m1", Table: "messages", CreatedAt: ts("2026-01-01T10:00:00Z"),
	}})

	ev := engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{
		ID: "m2", Table: "messages", CreatedAt: ts("2026-01-01T10:05:00Z"),
	}}
	a := base.Reduce(ev)
	b := base.Reduce(ev)

	assert.Equal(t, 1, base.Len(), "reduce must not mutate its input")
	assert.Equal(t, a.Items(), b.Items(), "same state + same event must merge identically")
}

func TestItemsOrderStableAcrossTies(t *testing.T) {
	when := ts("2026-01-01T10:00:00Z")
	var tl engine.Timeline
	tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{ID: "b", Table: "messages", CreatedAt: when}})
	tl = tl.Reduce(engine.TimelineEvent{Type: engine.EventInsert, Item: engine.TimelineItem{ID: "a", Table: "messages", CreatedAt: when}})

	first := tl.Items()
	second := tl.Items()
	assert.Equal(t, first, second)
	assert.Equal(t, "a", first[0].ID)
}
