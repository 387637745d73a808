package app

import (
	"testing"

	"autopost-go/internal/agent"
	"autopost-go/internal/config"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.History.Type = "memory"
	return cfg
}

func TestNewApp_WiresEverything(t *testing.T) {
	a, err := NewApp(testAppConfig(t), "Test", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	rec, err := a.CreateAgent("crossposter", "d", "me@chat", []string{"g1"}, []string{"fitness"})
	if err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if rec.Name() != "crossposter" {
		t.Errorf("Name() = %q, want %q", rec.Name(), "crossposter")
	}

	// Without a vault secret, credentials still store (unencrypted).
	if err := a.SetCredentials("crossposter", "instagram", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	orch, record, err := a.Orchestrator("crossposter")
	if err != nil {
		t.Fatalf("Orchestrator() error = %v", err)
	}
	if record != rec {
		t.Error("Orchestrator() should reuse the cached record")
	}

	if !orch.Start() {
		t.Fatal("Start() = false")
	}
	orch.Stop()
}

func TestNewApp_VaultSecretEncrypts(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Vault.WorkFactor = 10

	a, err := NewApp(cfg, "Test", "correct-horse-battery-staple-000000")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.CreateAgent("crossposter", "", "", nil, nil); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if err := a.SetCredentials("crossposter", "tiktok", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	rec, err := a.Registry().Get("crossposter")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Config.Platforms["tiktok"].Password == "hunter2" {
		t.Error("stored password is plaintext despite a vault secret")
	}
	creds, err := rec.Credentials("tiktok")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Password != "hunter2" {
		t.Errorf("decrypted password = %q, want %q", creds.Password, "hunter2")
	}
}

func TestApp_Orchestrator_MissingAgent(t *testing.T) {
	a, err := NewApp(testAppConfig(t), "Test", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if _, _, err := a.Orchestrator("nobody"); err == nil {
		t.Error("Orchestrator() for a missing agent should fail")
	}
}

func TestApp_StopAll(t *testing.T) {
	a, err := NewApp(testAppConfig(t), "Test", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.CreateAgent("crossposter", "", "", nil, nil); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	orch, record, err := a.Orchestrator("crossposter")
	if err != nil {
		t.Fatalf("Orchestrator() error = %v", err)
	}
	if !orch.Start() {
		t.Fatal("Start() = false")
	}

	a.StopAll()

	if got := record.Status(); got != agent.StatusStopped {
		t.Errorf("Status() after StopAll = %q, want %q", got, agent.StatusStopped)
	}
	// A second call with nothing running is a no-op.
	a.StopAll()
}

func TestApp_RecentHistory_Empty(t *testing.T) {
	a, err := NewApp(testAppConfig(t), "Test", "")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer a.Close()

	posts, err := a.RecentHistory("crossposter", 10)
	if err != nil {
		t.Fatalf("RecentHistory() error = %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("RecentHistory() = %v, want empty", posts)
	}
}
