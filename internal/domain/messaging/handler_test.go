package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unicast/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter wires the handler behind a stand-in auth middleware that
// trusts the X-User-ID header directly.
func newTestRouter(svc *Service) *gin.Engine {
	r := gin.New()
	h := NewHandler(svc)

	api := r.Group("/api")
	h.RegisterWebhookRoutes(api)

	protected := api.Group("")
	protected.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, c.GetHeader("X-User-ID"))
		c.Next()
	})
	h.RegisterRoutes(protected)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendInvitationsEndpoint(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(newTestService(store, nil))

	w := doJSON(t, r, http.MethodPost, "/api/events/e1/invitations", "u1", gin.H{
		"recipientIds": []string{"u2", "u3"},
		"channels":     []string{"email", "sms"},
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Sent    int  `json:"sent"`
		Failed  int  `json:"failed"`
		Results []struct {
			Recipient string `json:"recipient"`
			Channel   string `json:"channel"`
			MessageID string `json:"messageId"`
			Status    string `json:"status"`
		} `json:"results"`
		Errors []struct {
			Recipient string `json:"recipient"`
			Channel   string `json:"channel"`
			Error     string `json:"error"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Sent)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Results, 2)
	require.Len(t, resp.Errors, 2)
	for _, res := range resp.Results {
		assert.Equal(t, "sent", res.Status)
		assert.NotEmpty(t, res.MessageID)
	}
	for _, e := range resp.Errors {
		assert.NotEmpty(t, e.Error)
	}
}

func TestDispatchEndpointErrors(t *testing.T) {
	r := newTestRouter(newTestService(newMemStore(), nil))

	t.Run("non-organizer gets 403", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/events/e1/invitations", "u2", gin.H{
			"recipientIds": []string{"u3"},
			"channels":     []string{"email"},
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown event gets 404", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/events/missing/invitations", "u1", gin.H{
			"recipientIds": []string{"u2"},
			"channels":     []string{"email"},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing recipients gets 400", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/events/e1/invitations", "u1", gin.H{
			"channels": []string{"email"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid channel gets 400", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/events/e1/invitations", "u1", gin.H{
			"recipientIds": []string{"u2"},
			"channels":     []string{"pigeon"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNotifyEndpointTakesTypeFromBody(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(newTestService(store, nil))

	w := doJSON(t, r, http.MethodPost, "/api/events/e1/notify", "u1", gin.H{
		"recipientIds": []string{"u2"},
		"channels":     []string{"email"},
		"type":         "thank-you",
	})

	require.Equal(t, http.StatusOK, w.Code)
	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, TypeThankYou, records[0].Type)
}

func TestScheduleEndpoint(t *testing.T) {
	enq := &stubEnqueuer{}
	r := newTestRouter(newTestService(newMemStore(), enq))

	w := doJSON(t, r, http.MethodPost, "/api/events/e1/schedule", "u1", gin.H{
		"recipientIds": []string{"u2"},
		"channels":     []string{"email"},
		"type":         "reminder",
		"sendAt":       "2026-09-01T10:00:00Z",
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, enq.calls)
	assert.Equal(t, TypeReminder, enq.req.Type)
}

func TestListMessagesEndpoint(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	r := newTestRouter(svc)

	_, err := svc.Dispatch(context.Background(), invitationReq([]string{"u2"}, []Channel{ChannelEmail}))
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/api/events/e1/messages", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messages"`)

	w = doJSON(t, r, http.MethodGet, "/api/events/e1/messages", "u9", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendGridWebhook(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	r := newTestRouter(svc)

	result, err := svc.Dispatch(context.Background(), invitationReq([]string{"u2"}, []Channel{ChannelEmail}))
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	externalID := store.all()[0].ExternalID

	w := doJSON(t, r, http.MethodPost, "/api/webhooks/sendgrid", "", []gin.H{
		{"event": "processed", "sg_message_id": externalID},
		{"event": "delivered", "sg_message_id": externalID},
		{"event": "delivered", "sg_message_id": ""},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":1`)
	assert.Equal(t, StatusDelivered, store.all()[0].Status)
}

func TestTwilioWebhook(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	r := newTestRouter(svc)

	result, err := svc.Dispatch(context.Background(), invitationReq([]string{"u3"}, []Channel{ChannelSMS}))
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	externalID := store.all()[0].ExternalID

	form := url.Values{}
	form.Set("MessageSid", externalID)
	form.Set("MessageStatus", "delivered")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusDelivered, store.all()[0].Status)
}

func TestUnknownProviderWebhook(t *testing.T) {
	r := newTestRouter(newTestService(newMemStore(), nil))

	w := doJSON(t, r, http.MethodPost, "/api/webhooks/mailgun", "", gin.H{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
