package template

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unicast/internal/domain/messaging"
)

var (
	fullEvent = &messaging.Event{
		ID:          "e1",
		Title:       "Summer Gala",
		Date:        time.Date(2026, time.September, 12, 0, 0, 0, 0, time.UTC),
		Time:        "7:00 PM",
		Location:    "Grand Hall",
		Description: "An evening of music and dinner.",
		OrganizerID: "u1",
	}
	bareEvent = &messaging.Event{
		ID:          "e2",
		Title:       "Standup",
		Date:        time.Date(2026, time.September, 14, 0, 0, 0, 0, time.UTC),
		OrganizerID: "u1",
	}
	recipient = &messaging.User{ID: "u2", Username: "ben", Email: "ben@example.com"}
)

var allTypes = []messaging.MessageType{
	messaging.TypeInvitation,
	messaging.TypeReminder,
	messaging.TypeThankYou,
	messaging.TypeUpdate,
	messaging.TypeCustom,
}

var allChannels = []messaging.Channel{
	messaging.ChannelEmail,
	messaging.ChannelSMS,
	messaging.ChannelInApp,
}

func TestRenderEveryTypeAndChannel(t *testing.T) {
	r := NewRenderer()

	for _, msgType := range allTypes {
		for _, channel := range allChannels {
			content, err := r.Render(fullEvent, recipient, msgType, channel)
			require.NoError(t, err, "%s/%s", msgType, channel)
			assert.NotEmpty(t, content.Body, "%s/%s body", msgType, channel)

			if channel == messaging.ChannelEmail {
				assert.NotEmpty(t, content.Subject, "%s email subject", msgType)
				assert.NotEmpty(t, content.HTMLBody, "%s email html", msgType)
			} else {
				assert.Empty(t, content.Subject, "%s/%s must have no subject", msgType, channel)
				assert.Empty(t, content.HTMLBody)
			}
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := NewRenderer()

	first, err := r.Render(fullEvent, recipient, messaging.TypeInvitation, messaging.ChannelEmail)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := r.Render(fullEvent, recipient, messaging.TypeInvitation, messaging.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderInvitationEmail(t *testing.T) {
	r := NewRenderer()

	content, err := r.Render(fullEvent, recipient, messaging.TypeInvitation, messaging.ChannelEmail)
	require.NoError(t, err)

	assert.Equal(t, "Invitation: Summer Gala", content.Subject)
	assert.Contains(t, content.Body, "Hello ben,")
	assert.Contains(t, content.Body, "Summer Gala")
	assert.Contains(t, content.Body, "Saturday, September 12, 2026")
	assert.Contains(t, content.Body, "Time: 7:00 PM")
	assert.Contains(t, content.Body, "Location: Grand Hall")
	assert.Contains(t, content.Body, "An evening of music and dinner.")

	assert.Contains(t, content.HTMLBody, "<h1>Event Invitation</h1>")
	assert.Contains(t, content.HTMLBody, "<p>")
}

func TestRenderOmitsOptionalFields(t *testing.T) {
	r := NewRenderer()

	content, err := r.Render(bareEvent, recipient, messaging.TypeInvitation, messaging.ChannelEmail)
	require.NoError(t, err)

	assert.NotContains(t, content.Body, "Time:")
	assert.NotContains(t, content.Body, "Location:")

	sms, err := r.Render(bareEvent, recipient, messaging.TypeInvitation, messaging.ChannelSMS)
	require.NoError(t, err)
	assert.NotContains(t, sms.Body, " at ")
}

func TestRenderSMSLength(t *testing.T) {
	r := NewRenderer()

	long := &messaging.Event{
		ID:          "e3",
		Title:       strings.Repeat("An Extremely Long Event Title ", 10),
		Date:        time.Date(2026, time.September, 12, 0, 0, 0, 0, time.UTC),
		Time:        "7:00 PM",
		Location:    "The Conference Center on the Far Side of Town, Hall B",
		OrganizerID: "u1",
	}

	for _, msgType := range allTypes {
		content, err := r.Render(long, recipient, msgType, messaging.ChannelSMS)
		require.NoError(t, err)
		runes := []rune(content.Body)
		assert.LessOrEqual(t, len(runes), smsMaxRunes, "%s sms too long", msgType)
	}

	truncated, err := r.Render(long, recipient, messaging.TypeInvitation, messaging.ChannelSMS)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(truncated.Body, "…"))
}

func TestRenderEscapesHTML(t *testing.T) {
	r := NewRenderer()

	hostile := &messaging.Event{
		ID:          "e4",
		Title:       "<script>alert(1)</script> Party",
		Date:        time.Date(2026, time.September, 12, 0, 0, 0, 0, time.UTC),
		OrganizerID: "u1",
	}

	content, err := r.Render(hostile, recipient, messaging.TypeInvitation, messaging.ChannelEmail)
	require.NoError(t, err)

	assert.NotContains(t, content.HTMLBody, "<script>")
	assert.Contains(t, content.HTMLBody, "&lt;script&gt;")
}

func TestRenderUnknownType(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render(fullEvent, recipient, messaging.MessageType("greeting"), messaging.ChannelEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no template registered")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "abcd…", truncate("abcdef", 5))

	// Rune-aware: multibyte characters count as one.
	assert.Equal(t, "héllo", truncate("héllo", 5))
	assert.Equal(t, "héll…", truncate("héllow", 5))
}
