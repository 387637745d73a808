package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Registry provides CRUD and persistence over agent Records: one JSON
// document per agent under dir, keyed by the sanitized agent name. It is the
// authoritative in-process cache; loading the same name twice yields the same
// Record instance.
type Registry struct {
	dir    string
	cipher Cipher
	logger Logger
	clock  Clock

	agents map[string]*Record
}

// NewRegistry creates the storage directory if needed and returns an empty
// registry. cipher may be nil (unencrypted credential storage).
func NewRegistry(dir string, cipher Cipher, logger Logger) (*Registry, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating agents directory: %w", err)
	}
	return &Registry{
		dir:    dir,
		cipher: cipher,
		logger: logger,
		clock:  RealClock{},
		agents: map[string]*Record{},
	}, nil
}

// WithClock replaces the registry's clock. For tests.
func (g *Registry) WithClock(c Clock) *Registry {
	g.clock = c
	return g
}

// agentFile maps an agent name to its storage path. Distinct names sanitizing
// to the same filename collide; the last writer wins.
func (g *Registry) agentFile(name string) string {
	return filepath.Join(g.dir, SanitizeFilename(name)+".json")
}

// Create makes a new Record from cfg and persists it immediately.
// Returns ErrDuplicateAgent if an agent of that name exists on storage; the
// existing file is not overwritten.
func (g *Registry) Create(cfg *Config) (*Record, error) {
	if g.Exists(cfg.Name) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateAgent, cfg.Name)
	}
	rec, err := NewRecord(cfg, g.cipher, g.logger)
	if err != nil {
		return nil, err
	}
	rec.WithClock(g.clock)
	if err := g.Save(rec); err != nil {
		return nil, err
	}
	g.agents[cfg.Name] = rec
	g.logger.Info("agent created", "agent", cfg.Name)
	return rec, nil
}

// Load reads an agent's file into a new Record and caches it. A missing file
// returns (nil, nil). A corrupt or unreadable file also returns (nil, nil)
// and logs the failure: listing operations must not abort on one bad file.
func (g *Registry) Load(name string) (*Record, error) {
	path := g.agentFile(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		g.logger.Error("reading agent file", "agent", name, "path", path, "error", err)
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		g.logger.Error("corrupt agent file", "agent", name, "path", path, "error", err)
		return nil, nil
	}

	rec, err := RecordFromDocument(doc, g.cipher, g.logger)
	if err != nil {
		g.logger.Error("invalid agent document", "agent", name, "path", path, "error", err)
		return nil, nil
	}
	rec.WithClock(g.clock)

	g.agents[rec.Name()] = rec
	g.logger.Debug("agent loaded", "agent", rec.Name())
	return rec, nil
}

// Save persists the full record including credentials. The config's updated
// timestamp is refreshed. The write is atomic from the caller's perspective:
// temp file in the same directory, then rename.
func (g *Registry) Save(rec *Record) error {
	rec.Config.Touch(g.clock.Now())

	doc := rec.ToDocument(true)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding agent %q: %w", rec.Name(), err)
	}

	path := g.agentFile(rec.Name())
	tmp, err := os.CreateTemp(g.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing agent %q: %w", rec.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("saving agent %q: %w", rec.Name(), err)
	}
	success = true

	g.logger.Debug("agent saved", "agent", rec.Name(), "path", path)
	return nil
}

// Delete removes the agent's file and evicts it from the cache. Returns false
// without error when the agent does not exist.
func (g *Registry) Delete(name string) (bool, error) {
	path := g.agentFile(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		g.logger.Warn("agent not found", "agent", name)
		return false, nil
	}
	delete(g.agents, name)
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("deleting agent %q: %w", name, err)
	}
	g.logger.Info("agent deleted", "agent", name)
	return true, nil
}

// List returns all agents, reconciling the cache with the file listing so
// records created by other processes since this registry was built are
// discovered. Corrupt files are skipped (and logged by Load).
func (g *Registry) List() ([]*Record, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return nil, fmt.Errorf("listing agents directory: %w", err)
	}
	// The cache is keyed by real name, files by sanitized name; compare on
	// the sanitized form so cached records are not re-loaded from disk.
	cached := make(map[string]bool, len(g.agents))
	for name := range g.agents {
		cached[SanitizeFilename(name)] = true
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".json")
		if cached[stem] {
			continue
		}
		// Sanitizing is idempotent, so loading by stem reads this file;
		// Load caches under the document's own name.
		if _, err := g.Load(stem); err != nil {
			return nil, err
		}
	}

	records := make([]*Record, 0, len(g.agents))
	for _, rec := range g.agents {
		records = append(records, rec)
	}
	return records, nil
}

// Get returns the cached record for name, loading it on demand. Returns nil
// when the agent does not exist.
func (g *Registry) Get(name string) (*Record, error) {
	if rec, ok := g.agents[name]; ok {
		return rec, nil
	}
	return g.Load(name)
}

// Exists reports whether an agent file is present on storage. No load.
func (g *Registry) Exists(name string) bool {
	_, err := os.Stat(g.agentFile(name))
	return err == nil
}

// RunningAgents returns all agents currently in StatusRunning.
func (g *Registry) RunningAgents() ([]*Record, error) {
	all, err := g.List()
	if err != nil {
		return nil, err
	}
	var running []*Record
	for _, rec := range all {
		if rec.IsRunning() {
			running = append(running, rec)
		}
	}
	return running, nil
}
