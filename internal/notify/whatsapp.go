package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// WhatsAppSender posts messages to the shop's WhatsApp gateway webhook.
type WhatsAppSender struct {
	url    string
	token  string
	client *http.Client
}

func NewWhatsAppSender(url, token string) *WhatsAppSender {
	return &WhatsAppSender{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type whatsAppPayload struct {
	Type  string `json:"type"`
	JobID int64  `json:"job_id"`
	Phone string `json:"phone"`
	Code  string `json:"code,omitempty"`
}

// Send posts one message. Any non-2xx response counts as a dispatch failure
// so the dispatcher retries it.
func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	if s.url == "" {
		return errors.New("whatsapp gateway url not configured")
	}
	body, err := json.Marshal(whatsAppPayload{
		Type:  msg.Kind,
		JobID: msg.JobID,
		Phone: msg.Phone,
		Code:  msg.Code,
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post whatsapp message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp gateway returned %d", resp.StatusCode)
	}
	return nil
}
