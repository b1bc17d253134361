package enrollment

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment statuses. DRAFT enrollments are mutable working copies; every
// other status is reached through UpdateStatus and leaves a history row.
const (
	StatusDraft              = "DRAFT"
	StatusSubmitted          = "SUBMITTED"
	StatusUnderReview        = "UNDER_REVIEW"
	StatusMissingInformation = "MISSING_INFORMATION"
	StatusApproved           = "APPROVED"
	StatusDenied             = "DENIED"
	StatusWithdrawn          = "WITHDRAWN"
)

// Enrollment maps to the enrollment table.
type Enrollment struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProgramID            uuid.UUID  `db:"program_id" json:"program_id"`
	PrescriberID         *uuid.UUID `db:"prescriber_id" json:"prescriber_id,omitempty"`
	Status               string     `db:"status" json:"status"`
	DiagnosisCode        *string    `db:"diagnosis_code" json:"diagnosis_code,omitempty"`
	DiagnosisDescription *string    `db:"diagnosis_description" json:"diagnosis_description,omitempty"`
	MedicationName       *string    `db:"medication_name" json:"medication_name,omitempty"`
	Notes                *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy            uuid.UUID  `db:"created_by" json:"created_by"`
	SubmittedAt          *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusChange maps to the enrollment_status_history table. FromStatus is
// nil for the first transition of an enrollment.
type StatusChange struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	EnrollmentID uuid.UUID  `db:"enrollment_id" json:"enrollment_id"`
	FromStatus   *string    `db:"from_status" json:"from_status,omitempty"`
	ToStatus     string     `db:"to_status" json:"to_status"`
	Reason       *string    `db:"reason" json:"reason,omitempty"`
	ChangedBy    uuid.UUID  `db:"changed_by" json:"changed_by"`
	ChangedAt    time.Time  `db:"changed_at" json:"changed_at"`
}

// SaveRequest is the create-or-update payload. When Submit is true the
// draft moves to SUBMITTED in the same call.
type SaveRequest struct {
	ProgramID            uuid.UUID  `json:"program_id"`
	PrescriberID         *uuid.UUID `json:"prescriber_id,omitempty"`
	DiagnosisCode        *string    `json:"diagnosis_code,omitempty"`
	DiagnosisDescription *string    `json:"diagnosis_description,omitempty"`
	MedicationName       *string    `json:"medication_name,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
	Submit               bool       `json:"submit"`
}

// ValidStatus reports whether s is one of the recognized enrollment
// statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview,
		StatusMissingInformation, StatusApproved, StatusDenied, StatusWithdrawn:
		return true
	}
	return false
}
