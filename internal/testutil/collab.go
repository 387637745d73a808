package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autopost-go/internal/agent"
)

// MockMonitor implements agent.Monitor and lets tests drive the video
// callback directly via Emit.
type MockMonitor struct {
	mu       sync.Mutex
	cb       agent.VideoCallback
	started  bool
	stopped  bool
	StartErr error
}

func NewMockMonitor() *MockMonitor { return &MockMonitor{} }

// Factory returns a MonitorFunc that hands out this mock.
func (m *MockMonitor) Factory() agent.MonitorFunc {
	return func(account string, groups []string, cb agent.VideoCallback) (agent.Monitor, error) {
		m.mu.Lock()
		m.cb = cb
		m.mu.Unlock()
		return m, nil
	}
}

func (m *MockMonitor) Start(pollInterval time.Duration) error {
	if m.StartErr != nil {
		return m.StartErr
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return nil
}

func (m *MockMonitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *MockMonitor) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *MockMonitor) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Emit invokes the captured video callback synchronously.
func (m *MockMonitor) Emit(group string, urls []string) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb != nil {
		cb(group, urls)
	}
}

// MockDownloader maps URLs to local paths. URLs in Failures return an error.
type MockDownloader struct {
	mu       sync.Mutex
	Paths    map[string]string
	Failures map[string]error
	calls    []string
}

func NewMockDownloader() *MockDownloader {
	return &MockDownloader{Paths: map[string]string{}, Failures: map[string]error{}}
}

func (d *MockDownloader) Download(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, url)
	d.mu.Unlock()
	if err, ok := d.Failures[url]; ok {
		return "", err
	}
	if path, ok := d.Paths[url]; ok {
		return path, nil
	}
	return "", fmt.Errorf("unexpected url: %s", url)
}

func (d *MockDownloader) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.calls...)
}

// MockPlatformClient records uploads and returns scripted results. With no
// script it succeeds every time.
type MockPlatformClient struct {
	mu        sync.Mutex
	Results   []agent.UploadResult
	Errs      []error
	uploads   []UploadCall
	loggedOut bool
}

type UploadCall struct {
	FilePath string
	Caption  string
}

func NewMockPlatformClient() *MockPlatformClient { return &MockPlatformClient{} }

func (c *MockPlatformClient) Upload(ctx context.Context, filePath, caption string) (agent.UploadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.uploads)
	c.uploads = append(c.uploads, UploadCall{FilePath: filePath, Caption: caption})

	if i < len(c.Errs) && c.Errs[i] != nil {
		return agent.UploadResult{}, c.Errs[i]
	}
	if i < len(c.Results) {
		return c.Results[i], nil
	}
	return agent.UploadResult{Success: true, URL: fmt.Sprintf("https://posted.example/%d", i+1)}, nil
}

func (c *MockPlatformClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

func (c *MockPlatformClient) Uploads() []UploadCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]UploadCall{}, c.uploads...)
}

func (c *MockPlatformClient) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// MockPlatformResolver hands out pre-registered clients by platform name.
type MockPlatformResolver struct {
	mu      sync.Mutex
	Clients map[string]*MockPlatformClient
	Errs    map[string]error
}

func NewMockPlatformResolver() *MockPlatformResolver {
	return &MockPlatformResolver{Clients: map[string]*MockPlatformClient{}, Errs: map[string]error{}}
}

func (r *MockPlatformResolver) Client(platform string, creds agent.Credentials) (agent.PlatformClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.Errs[platform]; ok {
		return nil, err
	}
	c, ok := r.Clients[platform]
	if !ok {
		return nil, fmt.Errorf("no mock client for %s", platform)
	}
	return c, nil
}
