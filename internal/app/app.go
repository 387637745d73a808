// Package app wires configuration into a fully constructed application.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"autopost-go/internal/agent"
	"autopost-go/internal/archive"
	"autopost-go/internal/config"
	"autopost-go/internal/download"
	"autopost-go/internal/history"
	"autopost-go/internal/monitor"
	"autopost-go/internal/platform"
	"autopost-go/internal/vault"
)

// App is the application layer between the CLI and the agent packages.
// It constructs all dependencies from config, exposes high-level operations,
// and manages resource lifecycles on Close.
type App struct {
	cfg        *config.Config
	cipher     agent.Cipher
	registry   *agent.Registry
	history    agent.HistoryStore
	archiver   agent.Archiver
	downloader agent.Downloader
	platforms  *platform.Registry
	logger     agent.Logger
	logFile    *os.File

	mu      sync.Mutex
	running map[string]*agent.Orchestrator
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "AgentCreate", "AgentRun") and
// tags every log line. secret is the vault master secret; empty means no
// vault, and credentials are then stored unencrypted with a warning.
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string, secret string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	var cipher agent.Cipher
	if secret != "" {
		cipher, err = vault.NewCipherFromConfig(cfg.Vault, secret)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("creating vault cipher: %w", err)
		}
	}

	registry, err := agent.NewRegistry(cfg.AgentsDir, cipher, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating agent registry: %w", err)
	}

	store, err := history.NewStoreFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	archiver, err := archive.NewArchiverFromConfig(context.Background(), cfg.Archive)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating archiver: %w", err)
	}

	downloader, err := download.New(
		cfg.Download.YtdlpPath,
		cfg.DownloadDir,
		cfg.Download.Quality,
		cfg.Download.MaxFileSizeMB,
		time.Duration(cfg.Download.TimeoutSeconds)*time.Second,
		agent.UUIDGenerator{},
		logger,
	)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating downloader: %w", err)
	}

	platforms := platform.NewRegistry()
	if cmd := cfg.Platforms.UploaderCommand; cmd != "" {
		for _, name := range agent.SupportedPlatforms {
			name := name
			err := platforms.Register(name, func(creds agent.Credentials) (agent.PlatformClient, error) {
				return platform.NewScriptClient(name, cmd, creds, logger)
			})
			if err != nil {
				store.Close()
				logFile.Close()
				return nil, fmt.Errorf("registering platform %s: %w", name, err)
			}
		}
	}

	return &App{
		cfg:        cfg,
		cipher:     cipher,
		registry:   registry,
		history:    store,
		archiver:   archiver,
		downloader: downloader,
		platforms:  platforms,
		logger:     logger,
		logFile:    logFile,
		running:    make(map[string]*agent.Orchestrator),
	}, nil
}

// Registry exposes the agent registry for CRUD operations.
func (a *App) Registry() *agent.Registry { return a.registry }

// Logger exposes the operation-tagged logger.
func (a *App) Logger() agent.Logger { return a.logger }

// CreateAgent registers a new agent from its core settings.
func (a *App) CreateAgent(name, description, chatAccount string, groups, hashtags []string) (*agent.Record, error) {
	cfg, err := agent.NewConfig(name, description, chatAccount, groups, hashtags, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return a.registry.Create(cfg)
}

// SetCredentials stores platform credentials for an agent and persists it.
func (a *App) SetCredentials(agentName, platformName, username, password string) error {
	record, err := a.registry.Get(agentName)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("agent not found: %s", agentName)
	}
	if err := record.SetCredentials(platformName, username, password); err != nil {
		return err
	}
	return a.registry.Save(record)
}

// RecentHistory returns the most recent post attempts for an agent.
func (a *App) RecentHistory(agentName string, limit int) ([]*agent.PostRecord, error) {
	return a.history.RecentByAgent(context.Background(), agentName, limit)
}

// Orchestrator builds an orchestrator for a stored agent, wired with the
// app's downloader, platform clients, archiver and history ledger.
func (a *App) Orchestrator(agentName string) (*agent.Orchestrator, *agent.Record, error) {
	record, err := a.registry.Get(agentName)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, fmt.Errorf("agent not found: %s", agentName)
	}

	newMonitor := func(account string, groups []string, cb agent.VideoCallback) (agent.Monitor, error) {
		m, err := monitor.New(account, groups, monitor.StubSource{}, cb, a.logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	orch := agent.NewOrchestrator(record, agent.Collaborators{
		NewMonitor: newMonitor,
		Downloader: a.downloader,
		Platforms:  a.platforms,
		Archiver:   a.archiver,
		History:    a.history,
		Logger:     a.logger,
		Clock:      agent.RealClock{},
		IDs:        agent.UUIDGenerator{},
	}, agent.Options{
		MaxAttempts: a.cfg.Defaults.MaxRetryAttempts,
		StopTimeout: time.Duration(a.cfg.Defaults.StopTimeoutSeconds) * time.Second,
	})

	a.mu.Lock()
	a.running[record.Name()] = orch
	a.mu.Unlock()
	return orch, record, nil
}

// StopAll stops every orchestrator built by this App and persists the
// settled records. Errors saving individual records are logged, not returned.
func (a *App) StopAll() {
	a.mu.Lock()
	orchs := make(map[string]*agent.Orchestrator, len(a.running))
	for name, orch := range a.running {
		orchs[name] = orch
	}
	a.running = make(map[string]*agent.Orchestrator)
	a.mu.Unlock()

	for name, orch := range orchs {
		orch.Stop()
		record, err := a.registry.Get(name)
		if err != nil || record == nil {
			continue
		}
		if err := a.registry.Save(record); err != nil {
			a.logger.Warn("failed to save agent after stop", "agent", name, "error", err)
		}
	}
}

// Close releases the history store and log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = err
	}
	if err := a.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
