package agent_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"autopost-go/internal/agent"
	"autopost-go/internal/vault"
)

func newTestRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	reg, err := agent.NewRegistry(t.TempDir(), vault.NewTestCipher(), nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func testConfig(t *testing.T, name string) *agent.Config {
	t.Helper()
	cfg, err := agent.NewConfig(name, "d", "me@chat", []string{"g1"}, nil, testNow)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	return cfg
}

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	rec, err := reg.Create(testConfig(t, "crossposter"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := reg.Get("crossposter")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != rec {
		t.Error("Get() should return the cached Record instance")
	}
}

func TestRegistry_Create_Duplicate(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	if _, err := reg.Create(testConfig(t, "crossposter")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := reg.Create(testConfig(t, "crossposter"))
	if !errors.Is(err, agent.ErrDuplicateAgent) {
		t.Errorf("second Create() error = %v, want ErrDuplicateAgent", err)
	}
}

func TestRegistry_SaveAndReload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	reg, err := agent.NewRegistry(dir, vault.NewTestCipher(), nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	rec, err := reg.Create(testConfig(t, "crossposter"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := rec.SetCredentials("instagram", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	rec.RecordPost(testNow)
	if err := reg.Save(rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Fresh registry simulates a new process.
	reg2, err := agent.NewRegistry(dir, vault.NewTestCipher(), nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	got, err := reg2.Get("crossposter")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil after reload")
	}
	if got.TotalPosts() != 1 {
		t.Errorf("TotalPosts = %d, want 1", got.TotalPosts())
	}
	creds, err := got.Credentials("instagram")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Password != "hunter2" {
		t.Errorf("password = %q, want %q", creds.Password, "hunter2")
	}
}

func TestRegistry_Load_Missing(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	rec, err := reg.Load("no-such-agent")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Load() = %v for missing agent, want nil", rec)
	}
}

func TestRegistry_Load_CorruptFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	reg, err := agent.NewRegistry(dir, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	rec, err := reg.Load("broken")
	if err != nil {
		t.Fatalf("Load() of corrupt file error = %v, want nil error", err)
	}
	if rec != nil {
		t.Errorf("Load() = %v for corrupt file, want nil", rec)
	}
}

func TestRegistry_Delete(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	if _, err := reg.Create(testConfig(t, "crossposter")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deleted, err := reg.Delete("crossposter")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("Delete() = false for existing agent")
	}
	if reg.Exists("crossposter") {
		t.Error("agent file still present after Delete")
	}

	deleted, err = reg.Delete("crossposter")
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if deleted {
		t.Error("Delete() = true for missing agent, want false")
	}
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	reg, err := agent.NewRegistry(dir, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	for _, name := range []string{"agent-a", "agent-b", "agent-c"} {
		if _, err := reg.Create(testConfig(t, name)); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	// Corrupt files are skipped, not fatal.
	if err := os.WriteFile(filepath.Join(dir, "junk.json"), []byte("oops"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Fresh registry must discover everything from disk.
	reg2, err := agent.NewRegistry(dir, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	records, err := reg2.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("List() returned %d records, want 3", len(records))
	}
}

func TestRegistry_List_KeepsCachedInstance(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	// "my agent" sanitizes to my_agent.json, so the filename stem differs
	// from the cache key; List must still recognize the cached record.
	rec, err := reg.Create(testConfig(t, "my agent"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rec.SetStatus(agent.StatusRunning)

	if _, err := reg.List(); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	got, err := reg.Get("my agent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != rec {
		t.Fatal("Get() returned a different Record instance after List()")
	}
	if got.Status() != agent.StatusRunning {
		t.Errorf("Status after List() = %s, want %s", got.Status(), agent.StatusRunning)
	}

	running, err := reg.RunningAgents()
	if err != nil {
		t.Fatalf("RunningAgents() error = %v", err)
	}
	if len(running) != 1 {
		t.Errorf("RunningAgents() = %d, want 1", len(running))
	}
}

func TestRegistry_SanitizedNameCollision(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	// Both names sanitize to "my_agent.json"; the second Create sees the
	// first's file and refuses rather than clobbering it.
	if _, err := reg.Create(testConfig(t, "my agent")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := reg.Create(testConfig(t, "my  agent"))
	if !errors.Is(err, agent.ErrDuplicateAgent) {
		t.Errorf("colliding Create() error = %v, want ErrDuplicateAgent", err)
	}
}

func TestRegistry_RunningAgents(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)

	a, err := reg.Create(testConfig(t, "agent-a"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := reg.Create(testConfig(t, "agent-b")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	a.SetStatus(agent.StatusRunning)

	running, err := reg.RunningAgents()
	if err != nil {
		t.Fatalf("RunningAgents() error = %v", err)
	}
	if len(running) != 1 || running[0].Name() != "agent-a" {
		t.Errorf("RunningAgents() = %v, want [agent-a]", running)
	}
}
