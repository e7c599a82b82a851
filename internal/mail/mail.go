// Package mail talks to the external mail-sending function. When no
// endpoint is configured the messages are logged instead, which is how
// development runs.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Sender struct {
	endpoint string
	client   *http.Client
}

func NewSender(endpoint string) *Sender {
	return &Sender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type otpPayload struct {
	To  string `json:"to"`
	OTP string `json:"otp"`
}

// SendOTP posts {to, otp} to the mail function.
func (s *Sender) SendOTP(ctx context.Context, to, otp string) error {
	if s.endpoint == "" {
		slog.Info("==========================================")
		slog.Info("📧 EMAIL SENT TO: " + to)
		slog.Info("Subject: Your Petals & Crumbs login code")
		slog.Info("OTP: " + otp)
		slog.Info("==========================================")
		return nil
	}

	body, err := json.Marshal(otpPayload{To: to, OTP: otp})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail endpoint returned %s", resp.Status)
	}
	return nil
}

// SendOrderLink logs the magic tracking link for an order. The external
// function only accepts OTP payloads, so order links stay log-only until
// it grows a template parameter.
func (s *Sender) SendOrderLink(to, subject, link string) {
	slog.Info("==========================================")
	slog.Info("📧 EMAIL SENT TO: " + to)
	slog.Info("Subject: " + subject)
	slog.Info("Link: " + link)
	slog.Info("==========================================")
}
