package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

// DisabledOtpSender is installed when no mail transport is configured.
type DisabledOtpSender struct{}

func (DisabledOtpSender) Enabled() bool {
	return false
}

func (DisabledOtpSender) SendOtp(context.Context, string, string, string, int) error {
	return ErrOtpUnavailable
}

type ResendOtpSender struct {
	client  *resend.Client
	From    string
	AppName string
}

// NewResendOtpSender returns a DisabledOtpSender when the API key or sender address is missing.
func NewResendOtpSender(apiKey string, from string, appName string) OtpSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return DisabledOtpSender{}
	}
	return &ResendOtpSender{
		client:  resend.NewClient(apiKey),
		From:    from,
		AppName: appName,
	}
}

func (s *ResendOtpSender) Enabled() bool {
	return s.client != nil
}

func (s *ResendOtpSender) SendOtp(ctx context.Context, email string, subject string, code string, ttlMinutes int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	html := fmt.Sprintf(
		"<p>Your %s verification code is:</p><h2 style=\"letter-spacing:4px\">%s</h2><p>It expires in %d minutes. If you did not request it, ignore this email.</p>",
		s.AppName, code, ttlMinutes,
	)
	text := fmt.Sprintf("Your %s verification code is %s. It expires in %d minutes.", s.AppName, code, ttlMinutes)
	params := &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{email},
		Subject: subject,
		Html:    html,
		Text:    text,
	}
	if _, err := s.client.Emails.Send(params); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}
