package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unicast/internal/domain/messaging"
)

const defaultBaseURL = "https://api.twilio.com"

var _ messaging.Provider = (*TwilioProvider)(nil)

// TwilioProvider sends SMS messages using the Twilio REST API.
type TwilioProvider struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioProvider creates a new Twilio SMS provider. Missing
// credentials leave the provider unconfigured: every Send fails
// immediately without network I/O.
func NewTwilioProvider(accountSID, authToken, fromNumber string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel returns the sms channel identifier.
func (p *TwilioProvider) Channel() messaging.Channel {
	return messaging.ChannelSMS
}

// Send delivers an SMS via Twilio and returns the message SID. Twilio
// requires E.164 destinations; numbers stored without the leading plus
// get one prepended.
func (p *TwilioProvider) Send(ctx context.Context, destination string, content messaging.Content) (string, error) {
	if p.accountSID == "" || p.authToken == "" || p.fromNumber == "" {
		return "", fmt.Errorf("twilio: %w", messaging.ErrNotConfigured)
	}

	to := strings.TrimSpace(destination)
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.fromNumber)
	form.Set("Body", content.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = fmt.Sprintf("twilio API error: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("twilio: %s", msg)
	}

	var successResp struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return "", fmt.Errorf("parsing twilio response: %w", err)
	}
	if successResp.SID == "" {
		return "", fmt.Errorf("twilio: response missing message sid")
	}

	return successResp.SID, nil
}
