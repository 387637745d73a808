package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"autopost-go/internal/testutil"
)

// scriptedSource serves a fixed message list per group.
type scriptedSource struct {
	mu       sync.Mutex
	messages map[string][]Message
}

func (s *scriptedSource) RecentMessages(_ context.Context, group string, _ int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[group], nil
}

func (s *scriptedSource) add(group string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[group] = append(s.messages[group], msg)
}

type collector struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *collector) cb(group string, urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, urls)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", nil, nil, func(string, []string) {}, nil); err == nil {
		t.Error("New() should require an account")
	}
	if _, err := New("me@chat", nil, nil, nil, nil); err == nil {
		t.Error("New() should require a callback")
	}
}

func TestMonitor_ReportsNewVideoURLs(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{messages: map[string][]Message{}}
	src.add("g1", Message{ID: "m1", Group: "g1", Text: "https://youtu.be/abc123"})
	src.add("g1", Message{ID: "m2", Group: "g1", Text: "no link here"})

	c := &collector{}
	m, err := New("me@chat", []string{"g1"}, src, c.cb, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.Start(time.Hour); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	deadline := time.After(2 * time.Second)
	for c.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("callback never fired for the initial poll")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batches) != 1 || len(c.batches[0]) != 1 || c.batches[0][0] != "https://youtu.be/abc123" {
		t.Errorf("batches = %v, want one batch with the youtube link", c.batches)
	}
}

func TestMonitor_DeduplicatesAcrossPolls(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{messages: map[string][]Message{}}
	src.add("g1", Message{ID: "m1", Group: "g1", Text: "https://youtu.be/abc123"})

	c := &collector{}
	m, err := New("me@chat", []string{"g1"}, src, c.cb, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Several poll cycles pass; the same message must not be re-reported.
	time.Sleep(100 * time.Millisecond)
	m.Stop()

	if got := c.count(); got != 1 {
		t.Errorf("callback fired %d times, want 1", got)
	}
}

// failingSource always errors.
type failingSource struct{}

func (failingSource) RecentMessages(context.Context, string, int) ([]Message, error) {
	return nil, fmt.Errorf("session expired")
}

func TestMonitor_SourceFailureIsLoggedNotFatal(t *testing.T) {
	t.Parallel()

	logger := testutil.NewRecordingLogger()
	c := &collector{}
	m, err := New("me@chat", []string{"g1"}, failingSource{}, c.cb, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.Start(time.Hour); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for !logger.Contains("WARN", "failed to fetch messages") {
		select {
		case <-deadline:
			t.Fatalf("fetch failure never logged; log:\n%s", logger)
		case <-time.After(5 * time.Millisecond):
		}
	}
	m.Stop()

	if c.count() != 0 {
		t.Error("callback fired despite source failure")
	}
}

func TestMonitor_StartStop(t *testing.T) {
	t.Parallel()

	c := &collector{}
	m, err := New("me@chat", []string{"g1"}, StubSource{}, c.cb, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.Start(time.Hour); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(time.Hour); err == nil {
		t.Error("second Start() should fail while running")
	}

	m.Stop()
	// Idempotent.
	m.Stop()

	if err := m.Start(0); err == nil {
		t.Error("Start() should reject a non-positive interval")
	}
}
