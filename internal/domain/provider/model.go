package provider

import (
	"time"

	"github.com/google/uuid"
)

// Provider maps to the provider table.
type Provider struct {
	ID           uuid.UUID `db:"id" json:"id"`
	NPI          string    `db:"npi" json:"npi"`
	Name         string    `db:"name" json:"name"`
	Specialty    *string   `db:"specialty" json:"specialty,omitempty"`
	AddressLine1 *string   `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2 *string   `db:"address_line2" json:"address_line2,omitempty"`
	City         *string   `db:"city" json:"city,omitempty"`
	State        *string   `db:"state" json:"state,omitempty"`
	ZipCode      *string   `db:"zip_code" json:"zip_code,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Fax          *string   `db:"fax" json:"fax,omitempty"`
	Email        *string   `db:"email" json:"email,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Affiliation statuses.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Affiliation maps to the provider_affiliation table. An affiliation links a
// portal user to a provider organization; access to patient data requires an
// approved affiliation.
type Affiliation struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	UserID             uuid.UUID  `db:"user_id" json:"user_id"`
	ProviderID         uuid.UUID  `db:"provider_id" json:"provider_id"`
	Status             string     `db:"status" json:"status"`
	RequestedAt        time.Time  `db:"requested_at" json:"requested_at"`
	VerifiedAt         *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy         *uuid.UUID `db:"verified_by" json:"verified_by,omitempty"`
	VerificationReason *string    `db:"verification_reason" json:"verification_reason,omitempty"`
}

// AffiliationDetail is an affiliation with its provider hydrated for API
// responses.
type AffiliationDetail struct {
	Affiliation
	Provider *Provider `json:"provider,omitempty"`
}
