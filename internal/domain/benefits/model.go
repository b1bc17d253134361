package benefits

import (
	"time"

	"github.com/google/uuid"
)

// Investigation types.
const (
	TypeMedical  = "MEDICAL"
	TypePharmacy = "PHARMACY"
)

// Investigation maps to the benefit_investigation table. Each row is an
// immutable snapshot of one investigation: the inputs sent to the payer and
// the result that came back.
type Investigation struct {
	ID                        uuid.UUID              `db:"id" json:"id"`
	PatientID                 uuid.UUID              `db:"patient_id" json:"patient_id"`
	ProgramID                 *uuid.UUID             `db:"program_id" json:"program_id,omitempty"`
	InvestigationType         string                 `db:"investigation_type" json:"investigation_type"`
	PayerName                 string                 `db:"payer_name" json:"payer_name"`
	PayerPlanID               *string                `db:"payer_plan_id" json:"payer_plan_id,omitempty"`
	MemberID                  *string                `db:"member_id" json:"member_id,omitempty"`
	PatientState              *string                `db:"patient_state" json:"patient_state,omitempty"`
	MedicationName            *string                `db:"medication_name" json:"medication_name,omitempty"`
	CoverageStatus            string                 `db:"coverage_status" json:"coverage_status"`
	CoverageType              *string                `db:"coverage_type" json:"coverage_type,omitempty"`
	PriorAuthRequired         bool                   `db:"prior_auth_required" json:"prior_auth_required"`
	DeductibleApplies         bool                   `db:"deductible_applies" json:"deductible_applies"`
	SpecialtyPharmacyRequired bool                   `db:"specialty_pharmacy_required" json:"specialty_pharmacy_required"`
	Notes                     *string                `db:"notes" json:"notes,omitempty"`
	ResultPayload             map[string]interface{} `db:"result_payload" json:"result_payload,omitempty"`
	ExpiresAt                 time.Time              `db:"expires_at" json:"expires_at"`
	CreatedBy                 uuid.UUID              `db:"created_by" json:"created_by"`
	CreatedAt                 time.Time              `db:"created_at" json:"created_at"`
}

// Expired reports whether the investigation result has passed its validity
// window and should be re-run before being relied on.
func (i *Investigation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// RunRequest is the payload for starting a new investigation.
type RunRequest struct {
	ProgramID         *uuid.UUID `json:"program_id,omitempty"`
	InvestigationType string     `json:"investigation_type"`
	PayerName         string     `json:"payer_name"`
	PayerPlanID       string     `json:"payer_plan_id,omitempty"`
	MemberID          string     `json:"member_id,omitempty"`
	PatientState      string     `json:"patient_state,omitempty"`
	MedicationName    string     `json:"medication_name,omitempty"`
}
