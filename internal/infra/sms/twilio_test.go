package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unicast/internal/domain/messaging"
)

func TestTwilioNotConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		sid  string
		tok  string
		from string
	}{
		{"no account sid", "", "token", "+15550001111"},
		{"no auth token", "AC123", "", "+15550001111"},
		{"no from number", "AC123", "token", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTwilioProvider(tt.sid, tt.tok, tt.from)
			p.baseURL = srv.URL

			_, err := p.Send(context.Background(), "15551234567", messaging.Content{Body: "hello"})
			assert.ErrorIs(t, err, messaging.ErrNotConfigured)
		})
	}
	assert.Zero(t, hits.Load(), "an unconfigured provider must not reach the network")
}

func TestTwilioSend(t *testing.T) {
	var captured struct {
		path string
		to   string
		from string
		body string
		user string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		require.NoError(t, r.ParseForm())
		captured.to = r.PostFormValue("To")
		captured.from = r.PostFormValue("From")
		captured.body = r.PostFormValue("Body")
		captured.user, _, _ = r.BasicAuth()

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "SM123abc"})
	}))
	defer srv.Close()

	p := NewTwilioProvider("AC123", "token", "+15550001111")
	p.baseURL = srv.URL

	id, err := p.Send(context.Background(), "15551234567", messaging.Content{Body: "your event starts soon"})
	require.NoError(t, err)
	assert.Equal(t, "SM123abc", id)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", captured.path)
	assert.Equal(t, "+15551234567", captured.to, "destinations without a leading plus are normalized")
	assert.Equal(t, "+15550001111", captured.from)
	assert.Equal(t, "your event starts soon", captured.body)
	assert.Equal(t, "AC123", captured.user)
}

func TestTwilioAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    21211,
			"message": "The 'To' number is not a valid phone number",
		})
	}))
	defer srv.Close()

	p := NewTwilioProvider("AC123", "token", "+15550001111")
	p.baseURL = srv.URL

	_, err := p.Send(context.Background(), "not-a-number", messaging.Content{Body: "hello"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid phone number")
}

func TestTwilioMissingSID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	p := NewTwilioProvider("AC123", "token", "+15550001111")
	p.baseURL = srv.URL

	_, err := p.Send(context.Background(), "15551234567", messaging.Content{Body: "hello"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing message sid")
}
