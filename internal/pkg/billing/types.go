package billing

import "time"

// UpgradeRequest describes a role change requested for a user. Plan is only
// read when ToRole is premium and falls back to Config.DefaultPlan.
type UpgradeRequest struct {
	UserID    uint
	ToRole    string
	Plan      string
	Trial     bool
	PaymentID string
	Reason    string
}

type UpgradeResult struct {
	OK             bool       `json:"ok"`
	Role           string     `json:"role"`
	Plan           string     `json:"plan,omitempty"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AutoRenew      bool       `json:"auto_renew"`
	SubscriptionID uint       `json:"subscription_id,omitempty"`
	Warnings       []string   `json:"warnings,omitempty"`
}

type CancelResult struct {
	OK          bool     `json:"ok"`
	NewRole     string   `json:"new_role"`
	AlreadyFree bool     `json:"already_free"`
	Warnings    []string `json:"warnings,omitempty"`
}

type AutoRenewResult struct {
	OK        bool     `json:"ok"`
	AutoRenew bool     `json:"auto_renew"`
	Warnings  []string `json:"warnings,omitempty"`
}

type SweepResult struct {
	OK              bool     `json:"ok"`
	ExpiredCount    int      `json:"expired_count"`
	DowngradedCount int      `json:"downgraded_count"`
	FailedCount     int      `json:"failed_count"`
	Warnings        []string `json:"warnings,omitempty"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// PaymentEvent is the payload a payment provider posts to the webhook.
type PaymentEvent struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	UserID    uint   `json:"user_id"`
	Plan      string `json:"plan"`
	Trial     bool   `json:"trial"`
	PaymentID string `json:"payment_id"`
}
