package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/config"
	"github.com/sonexus/portal/internal/platform/eligibility"
	"github.com/sonexus/portal/internal/platform/filestore"
)

func TestBuildFileStore_Memory(t *testing.T) {
	cfg := &config.Config{FileStore: "memory"}
	store, err := buildFileStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildFileStore() error = %v", err)
	}
	if _, ok := store.(*filestore.MemoryStore); !ok {
		t.Errorf("store = %T, want *filestore.MemoryStore", store)
	}
}

func TestBuildInvestigator_Rules(t *testing.T) {
	cfg := &config.Config{BenefitsAdapter: "rules"}
	inv := buildInvestigator(cfg, zerolog.Nop())
	if _, ok := inv.(*eligibility.RuleBasedInvestigator); !ok {
		t.Errorf("investigator = %T, want *eligibility.RuleBasedInvestigator", inv)
	}
}

func TestBuildInvestigator_HTTP(t *testing.T) {
	cfg := &config.Config{BenefitsAdapter: "http", BenefitsAPIURL: "http://benefits.internal"}
	inv := buildInvestigator(cfg, zerolog.Nop())
	if _, ok := inv.(*eligibility.HTTPInvestigator); !ok {
		t.Errorf("investigator = %T, want *eligibility.HTTPInvestigator", inv)
	}
}

func TestBuildNotifier_LogSender(t *testing.T) {
	cfg := &config.Config{Notifier: "log"}
	n := buildNotifier(cfg, zerolog.Nop())
	if n == nil {
		t.Fatal("expected a notifier")
	}
	if err := n.NotifyAffiliationApproved(context.Background(), "user@clinic.example", "Dr. Smith"); err != nil {
		t.Errorf("NotifyAffiliationApproved() error = %v", err)
	}
}

func TestBuildNotifier_SMTP(t *testing.T) {
	cfg := &config.Config{
		Notifier: "smtp",
		SMTPHost: "mail.internal",
		SMTPPort: 587,
	}
	if n := buildNotifier(cfg, zerolog.Nop()); n == nil {
		t.Fatal("expected a notifier")
	}
}

func TestMigrateCmd_Subcommands(t *testing.T) {
	cmd := migrateCmd()
	want := map[string]bool{"up": false, "status": false, "down": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("migrate %s subcommand not registered", name)
		}
	}
}
