package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/events"
)

// ── Mock Repositories ──

type mockProviderRepo struct {
	data map[uuid.UUID]*Provider
}

func (m *mockProviderRepo) Create(_ context.Context, p *Provider) error {
	p.ID = uuid.New()
	m.data[p.ID] = p
	return nil
}

func (m *mockProviderRepo) GetByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	if p, ok := m.data[id]; ok {
		return p, nil
	}
	return nil, ErrProviderNotFound
}

func (m *mockProviderRepo) GetByNPI(_ context.Context, npi string) (*Provider, error) {
	for _, p := range m.data {
		if p.NPI == npi {
			return p, nil
		}
	}
	return nil, ErrProviderNotFound
}

func (m *mockProviderRepo) Update(_ context.Context, p *Provider) error {
	m.data[p.ID] = p
	return nil
}

func (m *mockProviderRepo) List(_ context.Context, limit, offset int) ([]*Provider, int, error) {
	var items []*Provider
	for _, p := range m.data {
		items = append(items, p)
	}
	return items, len(items), nil
}

func (m *mockProviderRepo) Search(_ context.Context, query string, limit, offset int) ([]*Provider, int, error) {
	return m.List(context.Background(), limit, offset)
}

type mockAffiliationRepo struct {
	data map[uuid.UUID]*Affiliation
}

func (m *mockAffiliationRepo) Create(_ context.Context, a *Affiliation) error {
	a.ID = uuid.New()
	m.data[a.ID] = a
	return nil
}

func (m *mockAffiliationRepo) GetByID(_ context.Context, id uuid.UUID) (*Affiliation, error) {
	if a, ok := m.data[id]; ok {
		return a, nil
	}
	return nil, ErrAffiliationNotFound
}

func (m *mockAffiliationRepo) GetByUserAndProvider(_ context.Context, userID, providerID uuid.UUID) (*Affiliation, error) {
	for _, a := range m.data {
		if a.UserID == userID && a.ProviderID == providerID {
			return a, nil
		}
	}
	return nil, ErrAffiliationNotFound
}

func (m *mockAffiliationRepo) Update(_ context.Context, a *Affiliation) error {
	m.data[a.ID] = a
	return nil
}

func (m *mockAffiliationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*Affiliation, error) {
	var items []*Affiliation
	for _, a := range m.data {
		if a.UserID == userID {
			items = append(items, a)
		}
	}
	return items, nil
}

func (m *mockAffiliationRepo) ListByStatus(_ context.Context, status string) ([]*Affiliation, error) {
	var items []*Affiliation
	for _, a := range m.data {
		if a.Status == status {
			items = append(items, a)
		}
	}
	return items, nil
}

func (m *mockAffiliationRepo) CountByUserAndStatus(_ context.Context, userID uuid.UUID, status string) (int, error) {
	n := 0
	for _, a := range m.data {
		if a.UserID == userID && a.Status == status {
			n++
		}
	}
	return n, nil
}

type mockUserDirectory struct {
	users map[uuid.UUID]*auth.User
}

func (m *mockUserDirectory) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

type mockNotifier struct {
	approvals []string
}

func (m *mockNotifier) NotifyAffiliationApproved(_ context.Context, userEmail, _ string) error {
	m.approvals = append(m.approvals, userEmail)
	return nil
}

type mockAuditor struct{ events []string }

func (m *mockAuditor) Log(_ context.Context, eventType, _ string, _ uuid.UUID, _ string) {
	m.events = append(m.events, eventType)
}

type fixture struct {
	svc       *Service
	providers *mockProviderRepo
	affs      *mockAffiliationRepo
	users     *mockUserDirectory
	notifier  *mockNotifier
	bus       *events.InMemoryBus
	published []events.Event
}

func newFixture() *fixture {
	f := &fixture{
		providers: &mockProviderRepo{data: make(map[uuid.UUID]*Provider)},
		affs:      &mockAffiliationRepo{data: make(map[uuid.UUID]*Affiliation)},
		users:     &mockUserDirectory{users: make(map[uuid.UUID]*auth.User)},
		notifier:  &mockNotifier{},
		bus:       events.NewInMemoryBus(zerolog.Nop()),
	}
	f.bus.Subscribe(EventAffiliationApproved, func(_ context.Context, e events.Event) {
		f.published = append(f.published, e)
	})
	RegisterEventHandlers(f.bus, f.users, f.notifier, zerolog.Nop())
	f.svc = NewService(f.providers, f.affs, f.bus, &mockAuditor{}, zerolog.Nop())
	return f
}

func userCtx(f *fixture) (context.Context, *auth.User) {
	u := &auth.User{ID: uuid.New(), Email: "staff@clinic.test", Roles: []string{auth.RoleOfficeStaff}}
	f.users.users[u.ID] = u
	return context.WithValue(context.Background(), auth.UserKey, u), u
}

func seedProvider(f *fixture) *Provider {
	p := &Provider{NPI: "1234567890", Name: "Lakeside Oncology", Active: true}
	_ = f.providers.Create(context.Background(), p)
	return p
}

// ── Tests ──

func TestCreateProvider_ValidatesNPI(t *testing.T) {
	f := newFixture()

	for _, npi := range []string{"", "123", "12345678901", "12345abcde"} {
		if err := f.svc.CreateProvider(context.Background(), &Provider{NPI: npi, Name: "X"}); err == nil {
			t.Errorf("expected error for npi %q", npi)
		}
	}
	if err := f.svc.CreateProvider(context.Background(), &Provider{NPI: "1234567890", Name: "X"}); err != nil {
		t.Errorf("unexpected error for valid npi: %v", err)
	}
}

func TestCreateProvider_DuplicateNPI(t *testing.T) {
	f := newFixture()
	seedProvider(f)

	err := f.svc.CreateProvider(context.Background(), &Provider{NPI: "1234567890", Name: "Other"})
	if err == nil {
		t.Error("expected error for duplicate npi")
	}
}

func TestRequestAffiliation(t *testing.T) {
	f := newFixture()
	ctx, u := userCtx(f)
	p := seedProvider(f)

	a, err := f.svc.RequestAffiliation(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", a.Status)
	}
	if a.UserID != u.ID || a.ProviderID != p.ID {
		t.Error("unexpected affiliation identity")
	}
	if a.Provider == nil || a.Provider.Name != "Lakeside Oncology" {
		t.Error("expected hydrated provider")
	}
}

func TestRequestAffiliation_Duplicate(t *testing.T) {
	f := newFixture()
	ctx, _ := userCtx(f)
	p := seedProvider(f)

	if _, err := f.svc.RequestAffiliation(ctx, p.ID); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err := f.svc.RequestAffiliation(ctx, p.ID)
	if !errors.Is(err, ErrAffiliationExists) {
		t.Errorf("expected ErrAffiliationExists, got %v", err)
	}
}

func TestRequestAffiliation_UnknownProvider(t *testing.T) {
	f := newFixture()
	ctx, _ := userCtx(f)

	_, err := f.svc.RequestAffiliation(ctx, uuid.New())
	if !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestVerifyAffiliation_Approve(t *testing.T) {
	f := newFixture()
	ctx, u := userCtx(f)
	p := seedProvider(f)
	a, _ := f.svc.RequestAffiliation(ctx, p.ID)

	admin := &auth.User{ID: uuid.New(), Email: "admin@clinic.test", Roles: []string{auth.RoleAdmin}}
	adminCtx := context.WithValue(context.Background(), auth.UserKey, admin)

	got, err := f.svc.VerifyAffiliation(adminCtx, a.ID, true, "credentials verified")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected APPROVED, got %s", got.Status)
	}
	if got.VerifiedBy == nil || *got.VerifiedBy != admin.ID {
		t.Error("expected verified_by to be the admin")
	}
	if got.VerifiedAt == nil {
		t.Error("expected verified_at to be set")
	}

	if len(f.published) != 1 || f.published[0].Type != EventAffiliationApproved {
		t.Errorf("expected affiliation.approved event, got %v", f.published)
	}
	if len(f.notifier.approvals) != 1 || f.notifier.approvals[0] != u.Email {
		t.Errorf("expected approval notification to %s, got %v", u.Email, f.notifier.approvals)
	}

	ok, err := f.svc.HasApprovedAffiliation(context.Background(), u.ID)
	if err != nil || !ok {
		t.Errorf("expected approved affiliation, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyAffiliation_Reject(t *testing.T) {
	f := newFixture()
	ctx, u := userCtx(f)
	p := seedProvider(f)
	a, _ := f.svc.RequestAffiliation(ctx, p.ID)

	admin := &auth.User{ID: uuid.New(), Roles: []string{auth.RoleAdmin}}
	adminCtx := context.WithValue(context.Background(), auth.UserKey, admin)

	got, err := f.svc.VerifyAffiliation(adminCtx, a.ID, false, "could not verify")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusRejected {
		t.Errorf("expected REJECTED, got %s", got.Status)
	}
	if len(f.published) != 0 {
		t.Error("expected no event for rejection")
	}
	if len(f.notifier.approvals) != 0 {
		t.Error("expected no notification for rejection")
	}

	ok, _ := f.svc.HasApprovedAffiliation(context.Background(), u.ID)
	if ok {
		t.Error("rejected affiliation must not grant access")
	}
}

func TestVerifyAffiliation_AlreadyProcessed(t *testing.T) {
	f := newFixture()
	ctx, _ := userCtx(f)
	p := seedProvider(f)
	a, _ := f.svc.RequestAffiliation(ctx, p.ID)

	admin := &auth.User{ID: uuid.New(), Roles: []string{auth.RoleAdmin}}
	adminCtx := context.WithValue(context.Background(), auth.UserKey, admin)

	if _, err := f.svc.VerifyAffiliation(adminCtx, a.ID, true, ""); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	_, err := f.svc.VerifyAffiliation(adminCtx, a.ID, false, "")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestListPendingAffiliations(t *testing.T) {
	f := newFixture()
	ctx, _ := userCtx(f)
	p := seedProvider(f)
	_, _ = f.svc.RequestAffiliation(ctx, p.ID)

	pending, err := f.svc.ListPendingAffiliations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != StatusPending {
		t.Errorf("unexpected pending list: %v", pending)
	}
}
