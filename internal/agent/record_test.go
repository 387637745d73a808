package agent_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"autopost-go/internal/agent"
	"autopost-go/internal/testutil"
	"autopost-go/internal/vault"
)

func newTestRecord(t *testing.T, cipher agent.Cipher, logger agent.Logger) *agent.Record {
	t.Helper()
	cfg, err := agent.NewConfig("crossposter", "d", "me@chat", []string{"g1"}, []string{"fitness"}, testNow)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	rec, err := agent.NewRecord(cfg, cipher, logger)
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	return rec
}

func TestNewRecord_StartsStopped(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, nil, nil)
	if rec.Status() != agent.StatusStopped {
		t.Errorf("Status() = %s, want %s", rec.Status(), agent.StatusStopped)
	}
	if rec.IsRunning() {
		t.Error("IsRunning() = true for a fresh record")
	}
}

func TestRecord_SetCredentials_Encrypted(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, vault.NewTestCipher(), nil)

	if err := rec.SetCredentials("instagram", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	stored := rec.Config.Platforms["instagram"]
	if stored.Username != "creator1" {
		t.Errorf("stored username = %q, want plaintext", stored.Username)
	}
	if stored.Password == "hunter2" {
		t.Error("stored password must not be plaintext when a cipher is attached")
	}

	creds, err := rec.Credentials("instagram")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Password != "hunter2" {
		t.Errorf("decrypted password = %q, want %q", creds.Password, "hunter2")
	}
}

func TestRecord_SetCredentials_UnsupportedPlatform(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, nil, nil)
	if err := rec.SetCredentials("myspace", "u", "p"); err == nil {
		t.Error("SetCredentials() should reject unsupported platform")
	}
}

func TestRecord_SetCredentials_NormalizesPlatform(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, nil, nil)

	if err := rec.SetCredentials("Instagram", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	if _, ok := rec.Config.Platforms["Instagram"]; ok {
		t.Error("credentials stored under the raw key, want normalized")
	}
	if _, ok := rec.Config.Platforms["instagram"]; !ok {
		t.Fatal("credentials not stored under the normalized key")
	}

	creds, err := rec.Credentials(" INSTAGRAM ")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds == nil || creds.Password != "hunter2" {
		t.Errorf("Credentials() = %v, want stored credentials via any casing", creds)
	}

	rec.RemovePlatform("INSTAGRAM")
	if _, ok := rec.Config.Platforms["instagram"]; ok {
		t.Error("RemovePlatform() did not normalize its key")
	}
}

func TestRecord_Credentials_NoVaultWarns(t *testing.T) {
	t.Parallel()
	logger := testutil.NewRecordingLogger()
	rec := newTestRecord(t, nil, logger)

	if err := rec.SetCredentials("tiktok", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	creds, err := rec.Credentials("tiktok")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.Password != "hunter2" {
		t.Errorf("password = %q, want plaintext passthrough", creds.Password)
	}

	if !logger.Contains("WARN", "stored unencrypted") {
		t.Errorf("expected unencrypted-store warning, got:\n%s", logger)
	}
	if !logger.Contains("WARN", "unencrypted credentials") {
		t.Errorf("expected unencrypted-read warning, got:\n%s", logger)
	}
}

func TestRecord_Credentials_Unconfigured(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, nil, nil)
	creds, err := rec.Credentials("youtube")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds != nil {
		t.Errorf("Credentials() = %v for unconfigured platform, want nil", creds)
	}
}

func TestRecord_Platforms_SortedStable(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, nil, nil)
	for _, p := range []string{"youtube", "instagram", "tiktok"} {
		if err := rec.SetCredentials(p, "u", "p"); err != nil {
			t.Fatalf("SetCredentials(%s) error = %v", p, err)
		}
	}

	want := []string{"instagram", "tiktok", "youtube"}
	for i := 0; i < 5; i++ {
		got := rec.Platforms()
		if len(got) != len(want) {
			t.Fatalf("Platforms() = %v, want %v", got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("Platforms() = %v, want %v", got, want)
			}
		}
	}
}

func TestRecord_ToDocument_ErrorCap(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, nil, nil)
	for i := 0; i < 15; i++ {
		rec.AddError(fmt.Sprintf("failure %d", i))
	}

	doc := rec.ToDocument(true)
	if len(doc.Errors) != 10 {
		t.Fatalf("len(doc.Errors) = %d, want 10", len(doc.Errors))
	}
	if !strings.Contains(doc.Errors[9], "failure 14") {
		t.Errorf("last error = %q, want the most recent", doc.Errors[9])
	}
	if !strings.Contains(doc.Errors[0], "failure 5") {
		t.Errorf("first error = %q, want the oldest retained", doc.Errors[0])
	}
	// In-memory log keeps everything.
	if len(rec.Errors()) != 15 {
		t.Errorf("in-memory errors = %d, want 15", len(rec.Errors()))
	}
}

func TestRecord_ToDocument_CredentialStripping(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, vault.NewTestCipher(), nil)
	if err := rec.SetCredentials("instagram", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	safe := rec.ToDocument(false)
	if got := safe.Config.Platforms["instagram"]; got.Password != "" || got.Username != "creator1" {
		t.Errorf("stripped doc credentials = %+v, want username only", got)
	}

	full := rec.ToDocument(true)
	if got := full.Config.Platforms["instagram"]; got.Password == "" {
		t.Error("full doc should keep the stored password token")
	}
	// Stripping must not mutate the live record.
	if rec.Config.Platforms["instagram"].Password == "" {
		t.Error("ToDocument(false) mutated the record's credentials")
	}
}

func TestRecord_DocumentRoundTrip(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, vault.NewTestCipher(), nil)
	if err := rec.SetCredentials("linkedin", "creator1", "hunter2"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	rec.SetStatus(agent.StatusError)
	rec.SetLastCheck(testNow)
	rec.RecordPost(testNow.Add(time.Minute))
	rec.AddError("upload failed")

	data, err := json.Marshal(rec.ToDocument(true))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var doc agent.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	got, err := agent.RecordFromDocument(doc, vault.NewTestCipher(), nil)
	if err != nil {
		t.Fatalf("RecordFromDocument() error = %v", err)
	}

	if got.Status() != agent.StatusError {
		t.Errorf("Status = %s, want %s", got.Status(), agent.StatusError)
	}
	if got.TotalPosts() != 1 {
		t.Errorf("TotalPosts = %d, want 1", got.TotalPosts())
	}
	if got.LastCheck() == nil || !got.LastCheck().Equal(testNow) {
		t.Errorf("LastCheck = %v, want %v", got.LastCheck(), testNow)
	}
	creds, err := got.Credentials("linkedin")
	if err != nil {
		t.Fatalf("Credentials() after round-trip error = %v", err)
	}
	if creds.Password != "hunter2" {
		t.Errorf("password after round-trip = %q, want %q", creds.Password, "hunter2")
	}
	if len(got.Errors()) != 1 {
		t.Errorf("errors after round-trip = %d, want 1", len(got.Errors()))
	}
}

func TestRecord_RemovePlatform(t *testing.T) {
	t.Parallel()
	rec := newTestRecord(t, nil, nil)
	if err := rec.SetCredentials("tiktok", "u", "p"); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	rec.RemovePlatform("tiktok")
	if _, ok := rec.Config.Platforms["tiktok"]; ok {
		t.Error("platform not removed")
	}

	// Removing an absent platform is a no-op.
	rec.RemovePlatform("youtube")
}
