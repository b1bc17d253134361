package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. ReferenceID is the human-facing
// identifier (PT000001 style) generated from a database sequence.
type Patient struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ReferenceID  string     `db:"reference_id" json:"reference_id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	DateOfBirth  time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender       *string    `db:"gender" json:"gender,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Email        *string    `db:"email" json:"email,omitempty"`
	AddressLine1 *string    `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2 *string    `db:"address_line2" json:"address_line2,omitempty"`
	City         *string    `db:"city" json:"city,omitempty"`
	State        *string    `db:"state" json:"state,omitempty"`
	ZipCode      *string    `db:"zip_code" json:"zip_code,omitempty"`
	CreatedBy    uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the patient's display name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
