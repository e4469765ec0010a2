package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validJSON = `{
	"discord": {"token": "tok", "app_id": "1", "guild_id": "100000000000000000"},
	"data": {"dir": "/tmp/nsbot"},
	"tickets": {
		"category_id": "200000000000000000",
		"log_channel_id": "300000000000000000",
		"fallback_staff_role_id": "400000000000000000",
		"types": [
			{"key": "general", "label": "General Support"},
			{"key": "commission", "label": "Commission", "staff_role_id": "500000000000000000"}
		]
	},
	"orders": {
		"category_id": "600000000000000000",
		"log_channel_id": "700000000000000000",
		"fallback_staff_role_id": "400000000000000000",
		"types": [{"key": "emote-pack", "label": "Emote Pack"}],
		"pay_methods": [{"key": "paypal", "label": "PayPal"}, {"key": "booth", "label": "Booth"}]
	}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.GuildID != "100000000000000000" {
		t.Errorf("unexpected guild id: %q", cfg.Discord.GuildID)
	}
	if len(cfg.Tickets.Types) != 2 {
		t.Fatalf("expected 2 ticket types, got %d", len(cfg.Tickets.Types))
	}
	if cfg.Tickets.NameFormat != "ticket-{type}-{user}" {
		t.Errorf("default name format not applied: %q", cfg.Tickets.NameFormat)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(writeConfig(t, `{"data": {"dir": "/tmp"}}`))
	if err == nil {
		t.Fatal("expected validation error for missing discord settings")
	}
}

func TestTypeLookups(t *testing.T) {
	cfg, _ := Load(writeConfig(t, validJSON))

	tt, ok := cfg.TicketType("commission")
	if !ok || tt.StaffRoleID != "500000000000000000" {
		t.Errorf("ticket type lookup: %+v ok=%v", tt, ok)
	}
	if _, ok := cfg.TicketType("nonexistent"); ok {
		t.Error("expected miss for unknown ticket type")
	}
	if _, ok := cfg.PayMethod("booth"); !ok {
		t.Error("expected pay method hit")
	}
}

func TestStaffRoleIDs(t *testing.T) {
	cfg, _ := Load(writeConfig(t, validJSON))
	roles := cfg.StaffRoleIDs()
	if len(roles) != 2 {
		t.Fatalf("expected 2 distinct staff roles, got %v", roles)
	}
}

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, validJSON)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	first := m.Current()

	// Edits only take effect after an explicit reload.
	updated := []byte(`{
		"discord": {"token": "tok", "guild_id": "100000000000000000"},
		"data": {"dir": "/tmp/nsbot2"}
	}`)
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if m.Current().Data.Dir != first.Data.Dir {
		t.Error("snapshot changed without reload")
	}

	if _, err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Current().Data.Dir != "/tmp/nsbot2" {
		t.Errorf("reload did not take: %q", m.Current().Data.Dir)
	}
}

func TestManagerReloadKeepsOldOnError(t *testing.T) {
	path := writeConfig(t, validJSON)
	m, _ := NewManager(path)

	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := m.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if m.Current().Discord.GuildID != "100000000000000000" {
		t.Error("previous snapshot should remain active after failed reload")
	}
}
