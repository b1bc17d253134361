package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Template Engine Tests
// ---------------------------------------------------------------------------

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Name:    "Test Template",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q, want %q", subject, "Hello Alice")
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q, want %q", body, "Dear Alice, your code is 1234.")
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	_, _, err := eng.Render("nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	builtIn := []string{
		TemplateEnrollmentStatus,
		TemplateAffiliationApproved,
		TemplateMissingInformation,
		TemplateBenefitsComplete,
		TemplateWelcome,
	}
	for _, id := range builtIn {
		if _, _, err := eng.Render(id, nil); err != nil {
			t.Errorf("built-in template %q missing: %v", id, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Notifier Tests
// ---------------------------------------------------------------------------

func TestNotifier_Send(t *testing.T) {
	sender := &MockEmailSender{}
	n := NewNotifier(sender, NewTemplateEngine())

	msg := &Notification{
		Recipient: "staff@clinic.test",
		Subject:   "Enrollment update",
		Body:      "Status changed.",
	}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID == "" || msg.Status != "sent" || msg.SentAt == nil {
		t.Errorf("unexpected notification state: %+v", msg)
	}
	if calls := sender.Calls(); len(calls) != 1 || calls[0].To != "staff@clinic.test" {
		t.Errorf("unexpected sender calls: %v", calls)
	}
}

func TestNotifier_SendFailureRecorded(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true, FailError: "relay down"}
	n := NewNotifier(sender, NewTemplateEngine())

	msg := &Notification{Recipient: "staff@clinic.test", Subject: "s", Body: "b"}
	if err := n.Send(context.Background(), msg); err == nil {
		t.Fatal("expected send error")
	}
	if msg.Status != "failed" || msg.Error != "relay down" {
		t.Errorf("unexpected notification state: %+v", msg)
	}

	got, err := n.Get(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "failed" {
		t.Errorf("expected failed status in history, got %s", got.Status)
	}
}

func TestNotifier_Retry(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true, FailError: "relay down"}
	n := NewNotifier(sender, NewTemplateEngine())

	msg := &Notification{Recipient: "staff@clinic.test", Subject: "s", Body: "b"}
	_ = n.Send(context.Background(), msg)

	sender.ShouldFail = false
	if err := n.Retry(context.Background(), msg.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := n.Get(context.Background(), msg.ID)
	if got.Status != "sent" || got.Error != "" {
		t.Errorf("expected retried notification to be sent, got %+v", got)
	}

	// Retrying a sent notification is rejected.
	if err := n.Retry(context.Background(), msg.ID); err == nil {
		t.Error("expected error retrying a sent notification")
	}
}

func TestNotifier_NotifyEnrollmentStatusChange(t *testing.T) {
	sender := &MockEmailSender{}
	n := NewNotifier(sender, NewTemplateEngine())

	err := n.NotifyEnrollmentStatusChange(context.Background(), "staff@clinic.test", "Jane Doe", "SUBMITTED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Subject, "Jane Doe") {
		t.Errorf("subject missing patient name: %s", calls[0].Subject)
	}
	if !strings.Contains(calls[0].Body, "SUBMITTED") {
		t.Errorf("body missing status: %s", calls[0].Body)
	}
}

func TestNotifier_NotifyAffiliationApproved(t *testing.T) {
	sender := &MockEmailSender{}
	n := NewNotifier(sender, NewTemplateEngine())

	if err := n.NotifyAffiliationApproved(context.Background(), "doc@clinic.test", "Lakeside Oncology"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := sender.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Body, "Lakeside Oncology") {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestNotifier_Stats(t *testing.T) {
	sender := &MockEmailSender{}
	n := NewNotifier(sender, NewTemplateEngine())

	_ = n.Send(context.Background(), &Notification{Recipient: "a@x.test", Body: "1"})
	sender.ShouldFail = true
	sender.FailError = "boom"
	_ = n.Send(context.Background(), &Notification{Recipient: "b@x.test", Body: "2"})

	stats := n.Stats(context.Background())
	if stats["sent"] != 1 || stats["failed"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

// ---------------------------------------------------------------------------
// Sender Tests
// ---------------------------------------------------------------------------

func TestSMTPEmailSender_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	s := NewSMTPEmailSender(SMTPConfig{
		Host: "mail.clinic.test",
		Port: 587,
		From: "portal@clinic.test",
	})
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := s.SendEmail(context.Background(), "staff@clinic.test", "Subject line", "Body text"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "mail.clinic.test:587" {
		t.Errorf("unexpected addr %s", gotAddr)
	}
	if gotFrom != "portal@clinic.test" || len(gotTo) != 1 || gotTo[0] != "staff@clinic.test" {
		t.Errorf("unexpected envelope from=%s to=%v", gotFrom, gotTo)
	}

	msg := gotMsg
	text := string(msg)
	for _, want := range []string{
		"From: portal@clinic.test\r\n",
		"To: staff@clinic.test\r\n",
		"Subject: Subject line\r\n",
		"\r\n\r\nBody text",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}
}

// ---------------------------------------------------------------------------
// HTTP Handler Tests
// ---------------------------------------------------------------------------

func TestHandler_SendAndGet(t *testing.T) {
	sender := &MockEmailSender{}
	h := NewHandler(NewNotifier(sender, NewTemplateEngine()))

	e := echo.New()
	body := `{"recipient":"staff@clinic.test","subject":"s","body":"b"}`
	req := httptest.NewRequest(http.MethodPost, "/notifications/send", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleSend(c); err != nil {
		t.Fatalf("send: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var n Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.ID == "" || n.Status != "sent" {
		t.Errorf("unexpected notification: %+v", n)
	}

	req = httptest.NewRequest(http.MethodGet, "/notifications/"+n.ID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(n.ID)
	if err := h.HandleGet(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_SendTemplate(t *testing.T) {
	sender := &MockEmailSender{}
	h := NewHandler(NewNotifier(sender, NewTemplateEngine()))

	e := echo.New()
	body := `{"template_id":"affiliation-approved","recipient":"doc@clinic.test","data":{"provider_name":"Lakeside Oncology"}}`
	req := httptest.NewRequest(http.MethodPost, "/notifications/send-template", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleSendTemplate(c); err != nil {
		t.Fatalf("send-template: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if calls := sender.Calls(); len(calls) != 1 || !strings.Contains(calls[0].Body, "Lakeside Oncology") {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestHandler_ListRequiresRecipient(t *testing.T) {
	h := NewHandler(NewNotifier(&MockEmailSender{}, NewTemplateEngine()))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleList(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
