package agent

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is an agent's lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// maxStoredErrors bounds the error log on serialization; older entries are
// discarded.
const maxStoredErrors = 10

// Record is the runtime unit for one agent: its configuration plus lifecycle
// status, counters, and a bounded error log. The Registry is the sole owner of
// Records; at most one in-memory Record represents a given name per process.
//
// Lifecycle transitions come from two goroutines (the orchestrator's worker
// and the caller driving start/stop), so the mutable runtime fields are
// guarded by a mutex. The Config is mutated only through Record methods.
type Record struct {
	Config *Config

	cipher Cipher
	logger Logger
	clock  Clock

	mu         sync.Mutex
	status     Status
	pid        *int
	lastCheck  *time.Time
	lastPost   *time.Time
	totalPosts int
	errors     []string
}

// NewRecord creates a Record in StatusStopped after validating the config.
// cipher may be nil; credentials are then stored and returned unencrypted,
// with a warning logged on every access so the fallback is observable.
func NewRecord(cfg *Config, cipher Cipher, logger Logger) (*Record, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating agent config: %w", err)
	}
	return &Record{
		Config: cfg,
		cipher: cipher,
		logger: logger,
		clock:  RealClock{},
		status: StatusStopped,
		errors: []string{},
	}, nil
}

// WithClock replaces the record's clock. For tests.
func (r *Record) WithClock(c Clock) *Record {
	r.clock = c
	return r
}

func (r *Record) Name() string { return r.Config.Name }

func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Record) SetStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

func (r *Record) IsRunning() bool { return r.Status() == StatusRunning }

// PID returns the process ID of the agent's runner, if one is recorded.
func (r *Record) PID() *int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid
}

// SetPID records the runner's process ID; nil clears it.
func (r *Record) SetPID(pid *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pid = pid
}

func (r *Record) LastCheck() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCheck
}

func (r *Record) SetLastCheck(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCheck = &t
}

func (r *Record) LastPost() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPost
}

func (r *Record) TotalPosts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalPosts
}

// RecordPost increments the durable post counter and stamps the last post
// time.
func (r *Record) RecordPost(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalPosts++
	r.lastPost = &t
}

// AddError appends a timestamped entry to the error log.
func (r *Record) AddError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf("%s: %s", r.clock.Now().UTC().Format(time.RFC3339), msg))
	r.logger.Error("agent error recorded", "agent", r.Config.Name, "error", msg)
}

// Errors returns a copy of the full in-memory error log.
func (r *Record) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.errors...)
}

// ClearErrors empties the error log.
func (r *Record) ClearErrors() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = r.errors[:0]
}

// Platforms returns the configured platform names in a stable order.
func (r *Record) Platforms() []string {
	names := make([]string, 0, len(r.Config.Platforms))
	for name := range r.Config.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetCredentials validates the platform name and stores credentials for it
// under the normalized (lowercased) name, encrypting the password when a
// cipher is attached. The stored username is always plaintext so records
// stay searchable.
func (r *Record) SetCredentials(platform, username, password string) error {
	if err := ValidatePlatform(platform); err != nil {
		return err
	}
	platform = NormalizePlatform(platform)
	creds := Credentials{Username: username, Password: password}
	if r.cipher != nil {
		token, err := r.cipher.Encrypt(password)
		if err != nil {
			return fmt.Errorf("encrypting %s credentials: %w", platform, err)
		}
		creds.Password = token
	} else {
		r.logger.Warn("credentials stored unencrypted: no vault configured", "agent", r.Config.Name, "platform", platform)
	}
	r.Config.Platforms[platform] = creds
	r.Config.Touch(r.clock.Now())
	return nil
}

// Credentials returns decrypted credentials for platform, or nil if the
// platform is not configured. Without a cipher the stored blob is returned
// unmodified and a warning is logged.
func (r *Record) Credentials(platform string) (*Credentials, error) {
	platform = NormalizePlatform(platform)
	stored, ok := r.Config.Platforms[platform]
	if !ok {
		return nil, nil
	}
	if r.cipher == nil {
		r.logger.Warn("returning unencrypted credentials: no vault configured", "agent", r.Config.Name, "platform", platform)
		return &stored, nil
	}
	password, err := r.cipher.Decrypt(stored.Password)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s credentials: %w", platform, err)
	}
	return &Credentials{Username: stored.Username, Password: password}, nil
}

// RemovePlatform drops a platform's credentials from the config.
func (r *Record) RemovePlatform(platform string) {
	platform = NormalizePlatform(platform)
	if _, ok := r.Config.Platforms[platform]; !ok {
		return
	}
	delete(r.Config.Platforms, platform)
	r.Config.Touch(r.clock.Now())
	r.logger.Info("platform removed", "agent", r.Config.Name, "platform", platform)
}

// Document is the persisted form of a Record: one JSON document per agent.
// Timestamps are RFC 3339 strings or null.
type Document struct {
	Config     Config   `json:"config"`
	Status     Status   `json:"status"`
	PID        *int     `json:"pid"`
	LastCheck  *string  `json:"last_check"`
	LastPost   *string  `json:"last_post"`
	TotalPosts int      `json:"total_posts"`
	Errors     []string `json:"errors"`
}

// ToDocument converts the record to its persisted form. With
// includeCredentials=false every platform entry is stripped to its username,
// making the document safe for display; with true the exact storable form
// (possibly encrypted) is included so persistence round-trips byte-for-byte.
// Only the most recent errors are retained.
func (r *Record) ToDocument(includeCredentials bool) Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := *r.Config.Clone()
	if !includeCredentials {
		for platform, creds := range cfg.Platforms {
			cfg.Platforms[platform] = Credentials{Username: creds.Username}
		}
	}

	errs := r.errors
	if len(errs) > maxStoredErrors {
		errs = errs[len(errs)-maxStoredErrors:]
	}

	doc := Document{
		Config:     cfg,
		Status:     r.status,
		PID:        r.pid,
		TotalPosts: r.totalPosts,
		Errors:     append([]string{}, errs...),
	}
	if r.lastCheck != nil {
		s := r.lastCheck.UTC().Format(time.RFC3339)
		doc.LastCheck = &s
	}
	if r.lastPost != nil {
		s := r.lastPost.UTC().Format(time.RFC3339)
		doc.LastPost = &s
	}
	return doc
}

// RecordFromDocument reconstructs a Record from its persisted form.
func RecordFromDocument(doc Document, cipher Cipher, logger Logger) (*Record, error) {
	cfg := doc.Config
	r, err := NewRecord(&cfg, cipher, logger)
	if err != nil {
		return nil, err
	}
	if doc.Status != "" {
		r.status = doc.Status
	}
	r.pid = doc.PID
	r.totalPosts = doc.TotalPosts
	if doc.Errors != nil {
		r.errors = append([]string{}, doc.Errors...)
	}
	if doc.LastCheck != nil {
		t, err := time.Parse(time.RFC3339, *doc.LastCheck)
		if err != nil {
			return nil, fmt.Errorf("parsing last_check: %w", err)
		}
		r.lastCheck = &t
	}
	if doc.LastPost != nil {
		t, err := time.Parse(time.RFC3339, *doc.LastPost)
		if err != nil {
			return nil, fmt.Errorf("parsing last_post: %w", err)
		}
		r.lastPost = &t
	}
	return r, nil
}
