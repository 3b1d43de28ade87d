package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultSendGridEndpoint is the SendGrid v3 mail send API.
const DefaultSendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// SendGridSender posts messages to the SendGrid v3 API.
type SendGridSender struct {
	APIKey   string
	From     string
	Endpoint string
	Client   *http.Client
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{
		APIKey:   apiKey,
		From:     from,
		Endpoint: DefaultSendGridEndpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send returns the HTTP status code. Any non-2xx status is an error
// wrapping ErrDelivery.
func (s *SendGridSender) Send(ctx context.Context, msg Message) (int, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}
	if s.APIKey == "" {
		return 0, fmt.Errorf("%w: sendgrid api key not configured", ErrDelivery)
	}

	payload, err := json.Marshal(sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.Recipient}}}},
		From:             sgAddress{Email: s.From},
		Subject:          msg.Subject,
		Content:          []sgContent{{Type: "text/plain", Value: msg.Body}},
	})
	if err != nil {
		return 0, fmt.Errorf("notify: encode sendgrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("%w: sendgrid status %d: %s", ErrDelivery, resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
