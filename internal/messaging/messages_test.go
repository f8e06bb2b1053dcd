package messaging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func handlerContext(userID string, paramNames, paramValues []string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	c.SetParamNames(paramNames...)
	c.SetParamValues(paramValues...)
	return c, rec
}

// The unread count is conversation-scoped: its route must bind the
// conversation under :id or the handler bails out before any query.
func TestUnreadCountRequiresConversationParam(t *testing.T) {
	c, rec := handlerContext("user-1", nil, nil)
	assert.NoError(t, UnreadCount(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnreadCountRequiresAuth(t *testing.T) {
	c, rec := handlerContext("", []string{"id"}, []string{"conv-1"})
	assert.NoError(t, UnreadCount(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Marking a message read takes both the conversation (:id) and the
// message (:message_id); a route carrying only one of them is dead.
func TestMarkMessageReadRequiresBothParams(t *testing.T) {
	tests := []struct {
		name   string
		names  []string
		values []string
	}{
		{"no params", nil, nil},
		{"conversation only", []string{"id"}, []string{"conv-1"}},
		{"message only", []string{"message_id"}, []string{"msg-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := handlerContext("user-1", tt.names, tt.values)
			assert.NoError(t, MarkMessageRead(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMarkMessageReadRequiresAuth(t *testing.T) {
	c, rec := handlerContext("", []string{"id", "message_id"}, []string{"conv-1", "msg-1"})
	assert.NoError(t, MarkMessageRead(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
