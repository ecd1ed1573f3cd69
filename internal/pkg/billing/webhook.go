package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/PlayVerse/app/models"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentRefunded  = "payment.refunded"
)

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false when the delivery was seen before.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.PaymentWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		provider = models.PaymentProviderDefault
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg, s.now().UTC())
}

// ParsePaymentEvent decodes a webhook body.
func ParsePaymentEvent(body []byte) (*PaymentEvent, error) {
	var ev PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, apperr.Validation("invalid payment event: %v", err)
	}
	ev.Type = strings.ToLower(strings.TrimSpace(ev.Type))
	if ev.Type == "" {
		return nil, apperr.Validation("payment event type is required")
	}
	if ev.UserID == 0 {
		return nil, apperr.Validation("payment event user_id is required")
	}
	return &ev, nil
}

// IsHandledPaymentEvent reports whether HandlePaymentEvent acts on eventType.
func IsHandledPaymentEvent(eventType string) bool {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case EventPaymentSucceeded, EventPaymentRefunded:
		return true
	default:
		return false
	}
}

// HandlePaymentEvent applies a verified payment event. Succeeded payments
// upgrade the user to premium, refunds cancel the plan.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev *PaymentEvent) error {
	switch ev.Type {
	case EventPaymentSucceeded:
		_, err := s.Upgrade(ctx, UpgradeRequest{
			UserID:    ev.UserID,
			ToRole:    models.ROLE_PREMIUM,
			Plan:      ev.Plan,
			Trial:     ev.Trial,
			PaymentID: ev.PaymentID,
			Reason:    "payment " + ev.EventID,
		})
		return err
	case EventPaymentRefunded:
		_, err := s.Cancel(ctx, ev.UserID, "refund "+ev.PaymentID)
		return err
	default:
		return fmt.Errorf("unsupported payment event %q", ev.Type)
	}
}
