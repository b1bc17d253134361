package program

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Program) error
	GetByID(ctx context.Context, id uuid.UUID) (*Program, error)
	ListActive(ctx context.Context) ([]*Program, error)
	Update(ctx context.Context, p *Program) error
}

type ServiceRepository interface {
	Create(ctx context.Context, s *SupportService) error
	ListActiveByProgram(ctx context.Context, programID uuid.UUID) ([]*SupportService, error)
	GetByID(ctx context.Context, id uuid.UUID) (*SupportService, error)
}

type ServiceEnrollmentRepository interface {
	Create(ctx context.Context, e *ServiceEnrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceEnrollment, error)
	GetByPatientAndService(ctx context.Context, patientID, serviceID uuid.UUID) (*ServiceEnrollment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ServiceEnrollment, error)
	HasActiveByPatient(ctx context.Context, patientID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
