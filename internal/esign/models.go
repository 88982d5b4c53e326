// Package esign drives document signing envelopes through an external
// e-signature provider.
package esign

import "time"

type EnvelopeStatus string

const (
	StatusCreated   EnvelopeStatus = "created"
	StatusSent      EnvelopeStatus = "sent"
	StatusDelivered EnvelopeStatus = "delivered"
	StatusCompleted EnvelopeStatus = "completed"
	StatusDeclined  EnvelopeStatus = "declined"
	StatusVoided    EnvelopeStatus = "voided"
)

// Terminal reports whether the envelope can no longer change.
func (s EnvelopeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDeclined || s == StatusVoided
}

type Signer struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	// RoutingOrder sequences signers; equal values sign in parallel.
	RoutingOrder int `json:"routing_order,omitempty" validate:"gte=0"`
}

type Document struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
	Content     []byte `json:"content" validate:"required"`
}

type SignerStatus struct {
	Email    string         `json:"email"`
	Status   EnvelopeStatus `json:"status"`
	SignedAt *time.Time     `json:"signed_at,omitempty"`
}

// Status is the provider's view of an envelope.
type Status struct {
	EnvelopeID string         `json:"envelope_id"`
	Status     EnvelopeStatus `json:"status"`
	Signers    []SignerStatus `json:"signers"`
}
