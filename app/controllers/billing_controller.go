package controllers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/apperr"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/billing"
)

// BillingController receives payment provider webhooks.
type BillingController struct {
	billing       *billing.Service
	webhookSecret string
}

func NewBillingController(svc *billing.Service, webhookSecret string) *BillingController {
	return &BillingController{billing: svc, webhookSecret: webhookSecret}
}

// HandlePaymentWebhook stores every delivery once, verifies its signature
// and applies succeeded and refunded payments to the user's plan.
func (bc *BillingController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	var probe struct {
		EventID string `json:"event_id"`
		Type    string `json:"type"`
	}
	_ = json.Unmarshal(rawBody, &probe)

	eventType := firstHeaderValue(c, "X-PlayVerse-Event")
	if eventType == "" {
		eventType = probe.Type
	}
	eventID := firstHeaderValue(c, "X-PlayVerse-Delivery", "X-PlayVerse-Event-ID")
	if eventID == "" {
		eventID = probe.EventID
	}
	signature := strings.TrimSpace(c.Get(billing.SignatureHeader))

	ctx, cancel := requestContext(c)
	defer cancel()

	signatureValid := billing.VerifyWebhookSignature(rawBody, signature, bc.webhookSecret)
	created, stored, err := bc.billing.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        firstHeaderValue(c, "X-PlayVerse-Provider"),
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Errorf("[Billing] webhook persist failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		log.Warnf("[Billing] rejected webhook %s from %s: invalid signature", stored.ProviderEventID, ClientIP(c))
		_ = bc.billing.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if !billing.IsHandledPaymentEvent(eventType) {
		_ = bc.billing.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	event, err := billing.ParsePaymentEvent(rawBody)
	if err != nil {
		_ = bc.billing.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if event.EventID == "" {
		event.EventID = stored.ProviderEventID
	}

	handleErr := bc.billing.HandlePaymentEvent(ctx, event)
	_ = bc.billing.MarkWebhookProcessed(ctx, stored.ID, handleErr)
	if handleErr != nil {
		if apperr.IsNotFound(handleErr) || apperr.IsValidation(handleErr) {
			// The delivery is recorded with its error; a retry would fail the same way.
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true, "message": handleErr.Error()})
		}
		log.Errorf("[Billing] webhook %s failed: %v", stored.ProviderEventID, handleErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "plan_update_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
