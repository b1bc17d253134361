package program

import (
	"time"

	"github.com/google/uuid"
)

// Program maps to the program table. Programs are the patient-support
// offerings a patient can enroll in.
type Program struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Service enrollment statuses.
const (
	EnrollmentStatusActive    = "ACTIVE"
	EnrollmentStatusInactive  = "INACTIVE"
	EnrollmentStatusCompleted = "COMPLETED"
	EnrollmentStatusCancelled = "CANCELLED"
)

// SupportService maps to the support_service table. Services are the
// optional offerings attached to a program (copay assistance, nurse
// support, and the like).
type SupportService struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProgramID   uuid.UUID `db:"program_id" json:"program_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	ServiceType string    `db:"service_type" json:"service_type"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ServiceEnrollment maps to the patient_service_enrollment table. It
// ties a patient to a support service, optionally linked back to the
// program enrollment that triggered it.
type ServiceEnrollment struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	ServiceID    uuid.UUID  `db:"service_id" json:"service_id"`
	EnrollmentID *uuid.UUID `db:"enrollment_id" json:"enrollment_id,omitempty"`
	Status       string     `db:"status" json:"status"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	EnrolledBy   uuid.UUID  `db:"enrolled_by" json:"enrolled_by"`
	EnrolledAt   time.Time  `db:"enrolled_at" json:"enrolled_at"`
}
