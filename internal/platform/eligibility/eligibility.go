// Package eligibility performs benefits investigations against a payer.
// It defines the Investigator interface, a deterministic rule-based
// implementation for local use, and an HTTP client for an external
// benefits API.
package eligibility

import (
	"context"
	"fmt"
)

// Request carries the coverage details for a single investigation.
type Request struct {
	PatientID      string `json:"patientId"`
	MemberID       string `json:"memberId"`
	PayerName      string `json:"payerName"`
	PayerPlanID    string `json:"payerPlanId,omitempty"`
	MedicationName string `json:"medicationName,omitempty"`
}

// Result is the outcome of a benefits investigation.
type Result struct {
	CoverageStatus            string                 `json:"coverageStatus"`
	CoverageType              string                 `json:"coverageType"`
	PriorAuthRequired         bool                   `json:"priorAuthRequired"`
	DeductibleApplies         bool                   `json:"deductibleApplies"`
	SpecialtyPharmacyRequired bool                   `json:"specialtyPharmacyRequired"`
	Notes                     string                 `json:"notes,omitempty"`
	AdditionalData            map[string]interface{} `json:"additionalData,omitempty"`
}

// Coverage type classifications.
const (
	CoverageMedicare   = "MEDICARE"
	CoverageMedicaid   = "MEDICAID"
	CoverageCommercial = "COMMERCIAL"
	CoverageUnknown    = "UNKNOWN"
)

// StatusActive marks coverage confirmed by the investigation.
const StatusActive = "ACTIVE"

// Investigator is the contract for benefits investigation backends.
type Investigator interface {
	InvestigateMedical(ctx context.Context, req Request) (*Result, error)
	InvestigatePharmacy(ctx context.Context, req Request) (*Result, error)
	Available(ctx context.Context) bool
}

// TransportError wraps a failure talking to an external benefits API.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("eligibility: request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
