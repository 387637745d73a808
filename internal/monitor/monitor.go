// Package monitor polls chat groups for messages containing video links.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autopost-go/internal/agent"
)

// recentMessageLimit is how many messages one poll fetches per group.
const recentMessageLimit = 50

// Message is one chat message as seen by a Source.
type Message struct {
	ID        string
	Group     string
	Sender    string
	Text      string
	Timestamp time.Time
}

// Source provides access to a chat account's group messages. Implementations
// wrap a concrete chat transport (bridge process, web session, API).
type Source interface {
	RecentMessages(ctx context.Context, group string, limit int) ([]Message, error)
}

// Monitor periodically polls a set of groups through a Source and invokes a
// callback with any video URLs found in messages it has not seen before.
type Monitor struct {
	account string
	groups  []string
	source  Source
	cb      agent.VideoCallback
	logger  agent.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	seen    map[string]bool
}

var _ agent.Monitor = (*Monitor)(nil)

// New creates a monitor for one chat account. The callback is invoked from
// the monitor's polling goroutine.
func New(account string, groups []string, source Source, cb agent.VideoCallback, logger agent.Logger) (*Monitor, error) {
	if account == "" {
		return nil, fmt.Errorf("chat account is required")
	}
	if cb == nil {
		return nil, fmt.Errorf("video callback is required")
	}
	if source == nil {
		source = StubSource{}
	}
	if logger == nil {
		logger = agent.NewNopLogger()
	}
	return &Monitor{
		account: account,
		groups:  groups,
		source:  source,
		cb:      cb,
		logger:  logger,
		seen:    make(map[string]bool),
	}, nil
}

// Start launches the polling goroutine. The first poll runs immediately,
// then every pollInterval until Stop.
func (m *Monitor) Start(pollInterval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("monitor already running")
	}
	if pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", pollInterval)
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.poll(pollInterval)

	m.logger.Info("monitor started", "account", m.account, "groups", len(m.groups))
	return nil
}

// Stop halts polling and waits for the in-flight poll to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	doneCh := m.doneCh
	m.mu.Unlock()

	<-doneCh
	m.logger.Info("monitor stopped", "account", m.account)
}

func (m *Monitor) poll(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.checkGroups()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkGroups()
		}
	}
}

func (m *Monitor) checkGroups() {
	ctx := context.Background()
	for _, group := range m.groups {
		messages, err := m.source.RecentMessages(ctx, group, recentMessageLimit)
		if err != nil {
			m.logger.Warn("failed to fetch messages", "group", group, "error", err)
			continue
		}

		var urls []string
		for _, msg := range messages {
			if m.seen[msg.ID] {
				continue
			}
			m.seen[msg.ID] = true
			urls = append(urls, ExtractVideoURLs(msg.Text)...)
		}

		if len(urls) > 0 {
			m.logger.Info("found video urls", "group", group, "count", len(urls))
			m.cb(group, urls)
		}
	}
}

// StubSource is a Source that never returns messages. It stands in until a
// real chat transport is wired up.
type StubSource struct{}

func (StubSource) RecentMessages(ctx context.Context, group string, limit int) ([]Message, error) {
	return nil, nil
}
