package messaging

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/domain/program"
	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/filestore"
)

// ── Mock Repositories ──

type mockThreadRepo struct {
	data map[uuid.UUID]*Thread
}

func newMockThreadRepo() *mockThreadRepo {
	return &mockThreadRepo{data: make(map[uuid.UUID]*Thread)}
}

func (m *mockThreadRepo) Create(_ context.Context, t *Thread) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	m.data[t.ID] = t
	return nil
}

func (m *mockThreadRepo) GetByID(_ context.Context, id uuid.UUID) (*Thread, error) {
	t, ok := m.data[id]
	if !ok {
		return nil, ErrThreadNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockThreadRepo) ListByUser(ctx context.Context, userID uuid.UUID, _, _ int) ([]*Thread, int, error) {
	var out []*Thread
	for _, t := range m.data {
		if t.CreatedBy == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, len(out), nil
}

func (m *mockThreadRepo) SetLastMessageAt(_ context.Context, id uuid.UUID, at time.Time) error {
	t, ok := m.data[id]
	if !ok {
		return ErrThreadNotFound
	}
	t.LastMessageAt = &at
	return nil
}

type mockMessageRepo struct {
	data map[uuid.UUID]*Message
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{data: make(map[uuid.UUID]*Message)}
}

func (m *mockMessageRepo) Create(_ context.Context, msg *Message) error {
	msg.ID = uuid.New()
	msg.SentAt = time.Now().UTC()
	m.data[msg.ID] = msg
	return nil
}

func (m *mockMessageRepo) ListByThread(_ context.Context, threadID uuid.UUID) ([]*Message, error) {
	var out []*Message
	for _, msg := range m.data {
		if msg.ThreadID == threadID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SentAt.Before(out[b].SentAt) })
	return out, nil
}

func (m *mockMessageRepo) MarkRead(_ context.Context, threadID, readerID uuid.UUID, at time.Time) error {
	for _, msg := range m.data {
		if msg.ThreadID == threadID && msg.SentBy != readerID && msg.ReadAt == nil {
			t := at
			msg.ReadAt = &t
		}
	}
	return nil
}

func (m *mockMessageRepo) CountUnread(_ context.Context, threadID, userID uuid.UUID) (int64, error) {
	var n int64
	for _, msg := range m.data {
		if msg.ThreadID == threadID && msg.SentBy != userID && msg.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

type mockAttachmentRepo struct {
	data map[uuid.UUID]*Attachment
}

func newMockAttachmentRepo() *mockAttachmentRepo {
	return &mockAttachmentRepo{data: make(map[uuid.UUID]*Attachment)}
}

func (m *mockAttachmentRepo) Create(_ context.Context, a *Attachment) error {
	a.ID = uuid.New()
	a.UploadedAt = time.Now().UTC()
	m.data[a.ID] = a
	return nil
}

func (m *mockAttachmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Attachment, error) {
	a, ok := m.data[id]
	if !ok {
		return nil, ErrAttachmentNotFound
	}
	return a, nil
}

func (m *mockAttachmentRepo) LinkToMessage(_ context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error {
	for _, id := range attachmentIDs {
		if a, ok := m.data[id]; ok {
			mid := messageID
			a.MessageID = &mid
		}
	}
	return nil
}

func (m *mockAttachmentRepo) ListByMessage(_ context.Context, messageID uuid.UUID) ([]*Attachment, error) {
	var out []*Attachment
	for _, a := range m.data {
		if a.MessageID != nil && *a.MessageID == messageID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockPatientDir struct {
	data map[uuid.UUID]*patient.Patient
}

func (m *mockPatientDir) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.data[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

type mockProgramDir struct {
	data map[uuid.UUID]*program.Program
}

func (m *mockProgramDir) GetByID(_ context.Context, id uuid.UUID) (*program.Program, error) {
	p, ok := m.data[id]
	if !ok {
		return nil, program.ErrProgramNotFound
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
	threads     *mockThreadRepo
	messages    *mockMessageRepo
	attachments *mockAttachmentRepo
	store       *filestore.MemoryStore
	audit       *mockAuditor

	staff      *auth.User
	prescriber *auth.User
	patientID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		threads:     newMockThreadRepo(),
		messages:    newMockMessageRepo(),
		attachments: newMockAttachmentRepo(),
		store:       filestore.NewMemoryStore(),
		audit:       &mockAuditor{},
	}
	f.staff = &auth.User{ID: uuid.New(), Email: "staff@clinic.example"}
	f.prescriber = &auth.User{ID: uuid.New(), Email: "dr@clinic.example"}
	f.patientID = uuid.New()

	patients := &mockPatientDir{data: map[uuid.UUID]*patient.Patient{
		f.patientID: {ID: f.patientID, FirstName: "Jane", LastName: "Doe"},
	}}
	programs := &mockProgramDir{data: map[uuid.UUID]*program.Program{}}

	f.svc = NewService(
		f.threads, f.messages, f.attachments, patients, programs,
		f.store, f.audit, nil, zerolog.Nop(),
	)
	return f
}

func ctxFor(u *auth.User) context.Context {
	return context.WithValue(context.Background(), auth.UserKey, u)
}

// ── Tests ──

func TestCreateThread(t *testing.T) {
	f := newFixture(t)

	th, err := f.svc.CreateThread(ctxFor(f.staff), CreateThreadInput{
		Subject:   "Enrollment question",
		PatientID: &f.patientID,
	})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if th.CreatedBy != f.staff.ID {
		t.Errorf("created_by = %s, want %s", th.CreatedBy, f.staff.ID)
	}
	if len(f.audit.events) != 1 || f.audit.events[0] != "MESSAGE_THREAD_CREATED" {
		t.Errorf("audit events = %v, want [MESSAGE_THREAD_CREATED]", f.audit.events)
	}
}

func TestCreateThread_Validation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.CreateThread(ctxFor(f.staff), CreateThreadInput{}); err == nil {
		t.Error("expected error for missing subject")
	}

	unknown := uuid.New()
	_, err := f.svc.CreateThread(ctxFor(f.staff), CreateThreadInput{
		Subject:   "S",
		PatientID: &unknown,
	})
	if !errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("error = %v, want ErrPatientNotFound", err)
	}
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)

	th, err := f.svc.CreateThread(ctxFor(f.staff), CreateThreadInput{Subject: "S"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	m, err := f.svc.SendMessage(ctxFor(f.staff), th.ID, "Hello", nil)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if m.ThreadID != th.ID {
		t.Errorf("thread id = %s, want %s", m.ThreadID, th.ID)
	}

	updated, err := f.threads.GetByID(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if updated.LastMessageAt == nil || !updated.LastMessageAt.Equal(m.SentAt) {
		t.Error("expected thread last_message_at to match message sent_at")
	}
}

func TestSendMessage_LinksAttachments(t *testing.T) {
	f := newFixture(t)

	th, err := f.svc.CreateThread(ctxFor(f.staff), CreateThreadInput{Subject: "S"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	a, err := f.svc.UploadAttachment(ctxFor(f.staff), "scan.pdf", "application/pdf",
		4, strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}

	m, err := f.svc.SendMessage(ctxFor(f.staff), th.ID, "See attached", []uuid.UUID{a.ID})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(m.Attachments) != 1 || m.Attachments[0].ID != a.ID {
		t.Fatal("expected attachment linked to the message")
	}

	// The same attachment cannot ride on a second message.
	if _, err := f.svc.SendMessage(ctxFor(f.staff), th.ID, "Again", []uuid.UUID{a.ID}); err == nil {
		t.Error("expected error reusing a linked attachment")
	}
}

func TestUploadAttachment_Limits(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.UploadAttachment(ctxFor(f.staff), "x.pdf", "application/pdf",
		0, strings.NewReader("")); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("empty file error = %v, want ErrEmptyFile", err)
	}
	if _, err := f.svc.UploadAttachment(ctxFor(f.staff), "x.pdf", "application/pdf",
		maxAttachmentSize+1, strings.NewReader("x")); !errors.Is(err, ErrAttachmentTooBig) {
		t.Errorf("oversize error = %v, want ErrAttachmentTooBig", err)
	}
}

func TestUploadAttachment_KeyLayout(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.UploadAttachment(ctxFor(f.staff), "lab result.pdf", "application/pdf",
		4, strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}
	if !strings.HasPrefix(a.FilePath, "attachments/") {
		t.Errorf("key = %q, want attachments/ prefix", a.FilePath)
	}
	if !strings.HasSuffix(a.FilePath, "/lab_result.pdf") {
		t.Errorf("key = %q, want sanitized file name suffix", a.FilePath)
	}
	if a.MessageID != nil {
		t.Error("fresh attachment should not be linked to a message")
	}
}

func TestDownloadAttachment(t *testing.T) {
	f := newFixture(t)

	th, err := f.svc.CreateThread(ctxFor(f.staff), CreateThreadInput{Subject: "S"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	a, err := f.svc.UploadAttachment(ctxFor(f.staff), "scan.pdf", "application/pdf",
		4, strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}

	// Unlinked attachments cannot be downloaded.
	if _, _, err := f.svc.DownloadAttachment(ctxFor(f.prescriber), a.ID); !errors.Is(err, ErrAttachmentUnlinked) {
		t.Errorf("error = %v, want ErrAttachmentUnlinked", err)
	}

	if _, err := f.svc.SendMessage(ctxFor(f.staff), th.ID, "See attached", []uuid.UUID{a.ID}); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	content, got, err := f.svc.DownloadAttachment(ctxFor(f.prescriber), a.ID)
	if err != nil {
		t.Fatalf("DownloadAttachment() error = %v", err)
	}
	defer content.Close()
	data, _ := io.ReadAll(content)
	if string(data) != "%PDF" {
		t.Error("downloaded content does not match upload")
	}
	if got.FileName != "scan.pdf" {
		t.Errorf("file name = %q, want scan.pdf", got.FileName)
	}
}

func TestGetThread_MarksRead(t *testing.T) {
	f := newFixture(t)

	th, err := f.svc.CreateThread(ctxFor(f.staff), CreateThreadInput{Subject: "S"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if _, err := f.svc.SendMessage(ctxFor(f.staff), th.ID, "Hello", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	// The prescriber has one unread message until they open the thread.
	n, _ := f.messages.CountUnread(context.Background(), th.ID, f.prescriber.ID)
	if n != 1 {
		t.Fatalf("unread = %d, want 1", n)
	}

	got, err := f.svc.GetThread(ctxFor(f.prescriber), th.ID)
	if err != nil {
		t.Fatalf("GetThread() error = %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(got.Messages))
	}

	n, _ = f.messages.CountUnread(context.Background(), th.ID, f.prescriber.ID)
	if n != 0 {
		t.Errorf("unread after open = %d, want 0", n)
	}

	// The sender's own message is never marked read by the sender.
	n, _ = f.messages.CountUnread(context.Background(), th.ID, f.staff.ID)
	if n != 0 {
		t.Errorf("sender unread = %d, want 0", n)
	}
}

func TestListThreads_UnreadCounts(t *testing.T) {
	f := newFixture(t)

	th, err := f.svc.CreateThread(ctxFor(f.prescriber), CreateThreadInput{Subject: "S"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if _, err := f.svc.SendMessage(ctxFor(f.staff), th.ID, "Hello", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if _, err := f.svc.SendMessage(ctxFor(f.staff), th.ID, "Anyone there?", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	threads, total, err := f.svc.ListThreads(ctxFor(f.prescriber), 20, 0)
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if total != 1 || len(threads) != 1 {
		t.Fatalf("got %d threads, want 1", total)
	}
	if threads[0].UnreadCount != 2 {
		t.Errorf("unread count = %d, want 2", threads[0].UnreadCount)
	}
}
