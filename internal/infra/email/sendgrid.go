package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"unicast/internal/domain/messaging"
)

const defaultBaseURL = "https://api.sendgrid.com"

var _ messaging.Provider = (*SendGridProvider)(nil)

// SendGridProvider sends emails using the SendGrid v3 API.
type SendGridProvider struct {
	apiKey      string
	fromAddress string
	fromName    string
	baseURL     string
	httpClient  *http.Client
}

// NewSendGridProvider creates a new SendGrid email provider. An empty
// apiKey leaves the provider unconfigured: every Send fails immediately
// without network I/O.
func NewSendGridProvider(apiKey, fromAddress, fromName string) *SendGridProvider {
	return &SendGridProvider{
		apiKey:      apiKey,
		fromAddress: fromAddress,
		fromName:    fromName,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel returns the email channel identifier.
func (p *SendGridProvider) Channel() messaging.Channel {
	return messaging.ChannelEmail
}

// Send delivers an email via SendGrid and returns the message id from the
// X-Message-Id response header.
func (p *SendGridProvider) Send(ctx context.Context, destination string, content messaging.Content) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("sendgrid: %w", messaging.ErrNotConfigured)
	}

	contents := []map[string]string{
		{"type": "text/plain", "value": content.Body},
	}
	if content.HTMLBody != "" {
		contents = append(contents, map[string]string{"type": "text/html", "value": content.HTMLBody})
	}

	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": destination}}},
		},
		"from":    map[string]string{"email": p.fromAddress, "name": p.fromName},
		"subject": content.Subject,
		"content": contents,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v3/mail/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := fmt.Sprintf("sendgrid API error: status %d", resp.StatusCode)
		if len(errResp.Errors) > 0 && errResp.Errors[0].Message != "" {
			msg = errResp.Errors[0].Message
		}
		return "", fmt.Errorf("sendgrid: %s", msg)
	}

	externalID := resp.Header.Get("X-Message-Id")
	if externalID == "" {
		return "", fmt.Errorf("sendgrid: response missing X-Message-Id header")
	}

	return externalID, nil
}
