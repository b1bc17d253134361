package program

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/platform/auth"
)

// ── Mock Repositories ──

type mockRepo struct {
	data map[uuid.UUID]*Program
}

func newMockRepo() *mockRepo {
	return &mockRepo{data: make(map[uuid.UUID]*Program)}
}

func (m *mockRepo) Create(_ context.Context, p *Program) error {
	p.ID = uuid.New()
	m.data[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Program, error) {
	p, ok := m.data[id]
	if !ok {
		return nil, ErrProgramNotFound
	}
	return p, nil
}

func (m *mockRepo) ListActive(_ context.Context) ([]*Program, error) {
	var out []*Program
	for _, p := range m.data {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, p *Program) error {
	if _, ok := m.data[p.ID]; !ok {
		return ErrProgramNotFound
	}
	m.data[p.ID] = p
	return nil
}

type mockServiceRepo struct {
	data map[uuid.UUID]*SupportService
}

func newMockServiceRepo() *mockServiceRepo {
	return &mockServiceRepo{data: make(map[uuid.UUID]*SupportService)}
}

func (m *mockServiceRepo) Create(_ context.Context, s *SupportService) error {
	s.ID = uuid.New()
	m.data[s.ID] = s
	return nil
}

func (m *mockServiceRepo) ListActiveByProgram(_ context.Context, programID uuid.UUID) ([]*SupportService, error) {
	var out []*SupportService
	for _, s := range m.data {
		if s.ProgramID == programID && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockServiceRepo) GetByID(_ context.Context, id uuid.UUID) (*SupportService, error) {
	s, ok := m.data[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return s, nil
}

type mockEnrollmentRepo struct {
	data map[uuid.UUID]*ServiceEnrollment
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{data: make(map[uuid.UUID]*ServiceEnrollment)}
}

func (m *mockEnrollmentRepo) Create(_ context.Context, e *ServiceEnrollment) error {
	e.ID = uuid.New()
	m.data[e.ID] = e
	return nil
}

func (m *mockEnrollmentRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceEnrollment, error) {
	e, ok := m.data[id]
	if !ok {
		return nil, ErrServiceEnrollmentNotFound
	}
	return e, nil
}

func (m *mockEnrollmentRepo) GetByPatientAndService(_ context.Context, patientID, serviceID uuid.UUID) (*ServiceEnrollment, error) {
	for _, e := range m.data {
		if e.PatientID == patientID && e.ServiceID == serviceID {
			return e, nil
		}
	}
	return nil, ErrServiceEnrollmentNotFound
}

func (m *mockEnrollmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*ServiceEnrollment, error) {
	var out []*ServiceEnrollment
	for _, e := range m.data {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) HasActiveByPatient(_ context.Context, patientID uuid.UUID) (bool, error) {
	for _, e := range m.data {
		if e.PatientID == patientID && e.Status == EnrollmentStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	e, ok := m.data[id]
	if !ok {
		return ErrServiceEnrollmentNotFound
	}
	e.Status = status
	return nil
}

type mockPatients struct {
	data map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.data[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

type mockAuditor struct {
	events []string
}

func (m *mockAuditor) Log(_ context.Context, eventType, _ string, _ uuid.UUID, _ string) {
	m.events = append(m.events, eventType)
}

// ── Fixture ──

type fixture struct {
	svc         *Service
	programs    *mockRepo
	services    *mockServiceRepo
	enrollments *mockEnrollmentRepo
	patients    *mockPatients
	audit       *mockAuditor
	user        *auth.User
	patient     *patient.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		programs:    newMockRepo(),
		services:    newMockServiceRepo(),
		enrollments: newMockEnrollmentRepo(),
		patients:    &mockPatients{data: make(map[uuid.UUID]*patient.Patient)},
		audit:       &mockAuditor{},
		user: &auth.User{
			ID:    uuid.New(),
			Email: "staff@clinic.example",
			Roles: []string{auth.RoleOfficeStaff},
		},
	}
	f.svc = NewService(f.programs, f.services, f.enrollments, f.patients, f.audit, zerolog.Nop())

	f.patient = &patient.Patient{ID: uuid.New(), FirstName: "Jane", LastName: "Doe"}
	f.patients.data[f.patient.ID] = f.patient
	return f
}

func (f *fixture) ctx() context.Context {
	return context.WithValue(context.Background(), auth.UserKey, f.user)
}

// ── Tests ──

func TestCreateProgram(t *testing.T) {
	f := newFixture(t)

	p := &Program{Name: "Oncology Support"}
	if err := f.svc.CreateProgram(context.Background(), p); err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected program id to be assigned")
	}
	if !p.Active {
		t.Error("expected new program to be active")
	}
	if len(f.audit.events) != 1 || f.audit.events[0] != "PROGRAM_CREATED" {
		t.Errorf("audit events = %v, want [PROGRAM_CREATED]", f.audit.events)
	}
}

func TestCreateProgram_MissingName(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.CreateProgram(context.Background(), &Program{}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestListActivePrograms(t *testing.T) {
	f := newFixture(t)

	active := &Program{Name: "Active"}
	if err := f.svc.CreateProgram(context.Background(), active); err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	inactive := &Program{Name: "Retired", Active: false}
	inactive.ID = uuid.New()
	f.programs.data[inactive.ID] = inactive

	list, err := f.svc.ListActivePrograms(context.Background())
	if err != nil {
		t.Fatalf("ListActivePrograms() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d programs, want 1", len(list))
	}
	if list[0].Name != "Active" {
		t.Errorf("program name = %q, want %q", list[0].Name, "Active")
	}
}

func TestListProgramServices_UnknownProgram(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListProgramServices(context.Background(), uuid.New())
	if !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("error = %v, want ErrProgramNotFound", err)
	}
}

func TestAddService(t *testing.T) {
	f := newFixture(t)

	p := &Program{Name: "Oncology Support"}
	if err := f.svc.CreateProgram(context.Background(), p); err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}

	s := &SupportService{Name: "Copay Assistance", ServiceType: "FINANCIAL"}
	if err := f.svc.AddService(context.Background(), p.ID, s); err != nil {
		t.Fatalf("AddService() error = %v", err)
	}
	if s.ProgramID != p.ID {
		t.Errorf("service program id = %s, want %s", s.ProgramID, p.ID)
	}
	if !s.Active {
		t.Error("expected new service to be active")
	}

	list, err := f.svc.ListProgramServices(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListProgramServices() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d services, want 1", len(list))
	}

	if len(f.audit.events) != 2 || f.audit.events[1] != "SERVICE_ADDED" {
		t.Errorf("audit events = %v, want [PROGRAM_CREATED SERVICE_ADDED]", f.audit.events)
	}
}

func TestAddService_Validation(t *testing.T) {
	f := newFixture(t)

	p := &Program{Name: "Oncology Support"}
	if err := f.svc.CreateProgram(context.Background(), p); err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}

	tests := []struct {
		name string
		svc  SupportService
	}{
		{"missing name", SupportService{ServiceType: "FINANCIAL"}},
		{"missing service type", SupportService{Name: "Copay Assistance"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.svc
			if err := f.svc.AddService(context.Background(), p.ID, &s); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAddService_UnknownProgram(t *testing.T) {
	f := newFixture(t)

	s := &SupportService{Name: "Copay Assistance", ServiceType: "FINANCIAL"}
	err := f.svc.AddService(context.Background(), uuid.New(), s)
	if !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("error = %v, want ErrProgramNotFound", err)
	}
}

func (f *fixture) seedService(t *testing.T) *SupportService {
	t.Helper()
	p := &Program{Name: "Oncology Support"}
	if err := f.svc.CreateProgram(context.Background(), p); err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	s := &SupportService{Name: "Nurse Support", ServiceType: "CLINICAL"}
	if err := f.svc.AddService(context.Background(), p.ID, s); err != nil {
		t.Fatalf("AddService() error = %v", err)
	}
	return s
}

func TestEnrollPatientInService(t *testing.T) {
	f := newFixture(t)
	s := f.seedService(t)

	e := &ServiceEnrollment{ServiceID: s.ID}
	if err := f.svc.EnrollPatientInService(f.ctx(), f.patient.ID, e); err != nil {
		t.Fatalf("EnrollPatientInService() error = %v", err)
	}
	if e.Status != EnrollmentStatusActive {
		t.Errorf("status = %q, want %q", e.Status, EnrollmentStatusActive)
	}
	if e.PatientID != f.patient.ID {
		t.Errorf("patient id = %s, want %s", e.PatientID, f.patient.ID)
	}
	if e.EnrolledBy != f.user.ID {
		t.Errorf("enrolled_by = %s, want %s", e.EnrolledBy, f.user.ID)
	}

	last := f.audit.events[len(f.audit.events)-1]
	if last != "SERVICE_ENROLLMENT_CREATED" {
		t.Errorf("last audit event = %q, want SERVICE_ENROLLMENT_CREATED", last)
	}

	active, err := f.enrollments.HasActiveByPatient(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("HasActiveByPatient() error = %v", err)
	}
	if !active {
		t.Error("expected patient to have an active service enrollment")
	}
}

func TestEnrollPatientInService_Duplicate(t *testing.T) {
	f := newFixture(t)
	s := f.seedService(t)

	if err := f.svc.EnrollPatientInService(f.ctx(), f.patient.ID, &ServiceEnrollment{ServiceID: s.ID}); err != nil {
		t.Fatalf("EnrollPatientInService() error = %v", err)
	}
	err := f.svc.EnrollPatientInService(f.ctx(), f.patient.ID, &ServiceEnrollment{ServiceID: s.ID})
	if !errors.Is(err, ErrAlreadyEnrolled) {
		t.Errorf("error = %v, want ErrAlreadyEnrolled", err)
	}
}

func TestEnrollPatientInService_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	s := f.seedService(t)

	err := f.svc.EnrollPatientInService(context.Background(), f.patient.ID, &ServiceEnrollment{ServiceID: s.ID})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("error = %v, want ErrNotAuthenticated", err)
	}
}

func TestEnrollPatientInService_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	s := f.seedService(t)

	err := f.svc.EnrollPatientInService(f.ctx(), uuid.New(), &ServiceEnrollment{ServiceID: s.ID})
	if !errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("error = %v, want ErrPatientNotFound", err)
	}
}

func TestEnrollPatientInService_UnknownService(t *testing.T) {
	f := newFixture(t)

	err := f.svc.EnrollPatientInService(f.ctx(), f.patient.ID, &ServiceEnrollment{ServiceID: uuid.New()})
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("error = %v, want ErrServiceNotFound", err)
	}
}

func TestUpdateServiceEnrollmentStatus(t *testing.T) {
	f := newFixture(t)
	s := f.seedService(t)

	e := &ServiceEnrollment{ServiceID: s.ID}
	if err := f.svc.EnrollPatientInService(f.ctx(), f.patient.ID, e); err != nil {
		t.Fatalf("EnrollPatientInService() error = %v", err)
	}

	if err := f.svc.UpdateServiceEnrollmentStatus(f.ctx(), e.ID, EnrollmentStatusCompleted); err != nil {
		t.Fatalf("UpdateServiceEnrollmentStatus() error = %v", err)
	}
	if f.enrollments.data[e.ID].Status != EnrollmentStatusCompleted {
		t.Errorf("status = %q, want %q", f.enrollments.data[e.ID].Status, EnrollmentStatusCompleted)
	}

	active, err := f.enrollments.HasActiveByPatient(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("HasActiveByPatient() error = %v", err)
	}
	if active {
		t.Error("completed enrollment should not count as active")
	}
}

func TestUpdateServiceEnrollmentStatus_Invalid(t *testing.T) {
	f := newFixture(t)
	s := f.seedService(t)

	e := &ServiceEnrollment{ServiceID: s.ID}
	if err := f.svc.EnrollPatientInService(f.ctx(), f.patient.ID, e); err != nil {
		t.Fatalf("EnrollPatientInService() error = %v", err)
	}
	if err := f.svc.UpdateServiceEnrollmentStatus(f.ctx(), e.ID, "PAUSED"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestListPatientServiceEnrollments(t *testing.T) {
	f := newFixture(t)
	s := f.seedService(t)

	if err := f.svc.EnrollPatientInService(f.ctx(), f.patient.ID, &ServiceEnrollment{ServiceID: s.ID}); err != nil {
		t.Fatalf("EnrollPatientInService() error = %v", err)
	}

	list, err := f.svc.ListPatientServiceEnrollments(f.ctx(), f.patient.ID)
	if err != nil {
		t.Fatalf("ListPatientServiceEnrollments() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d enrollments, want 1", len(list))
	}
}
