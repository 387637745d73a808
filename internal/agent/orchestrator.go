package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Collaborators are the external capabilities one Orchestrator drives. Logger
// and Clock default when nil; Archiver and History are optional.
type Collaborators struct {
	NewMonitor MonitorFunc
	Downloader Downloader
	Platforms  PlatformResolver
	Archiver   Archiver
	History    HistoryStore
	Logger     Logger
	Clock      Clock
	IDs        IDGenerator
}

// Options tune the orchestrator's retry and shutdown behavior. Zero values
// select the defaults.
type Options struct {
	// MaxAttempts is the number of upload attempts per platform (default 3).
	MaxAttempts int
	// RetryInterval scales the linear backoff between attempts: the wait
	// before attempt n+1 is RetryInterval * n (default 30s).
	RetryInterval time.Duration
	// StopTimeout bounds how long Stop waits for the worker (default 10s).
	StopTimeout time.Duration
}

const (
	defaultMaxAttempts   = 3
	defaultRetryInterval = 30 * time.Second
	defaultStopTimeout   = 10 * time.Second
)

// Stats is a point-in-time snapshot of one orchestrator's counters.
type Stats struct {
	AgentName            string
	Running              bool
	Paused               bool
	Status               Status
	TotalVideosProcessed int
	TotalPostsSuccessful int
	TotalPostsFailed     int
	LastCheck            *time.Time
	LastPost             *time.Time
}

// Orchestrator runs one agent's automation loop: it binds a Record to a chat
// monitor and platform clients and drives the detect, download, caption,
// post, cleanup pipeline. The Record is borrowed, not owned; persistence
// remains the caller's job via the Registry.
//
// A single background worker owns the pipeline, so downloads and posts for
// one batch never interleave with another batch. Cancellation is cooperative:
// Stop signals the worker and waits a bounded time, but a download or upload
// already in flight is not interrupted and may briefly outlast Stop's return.
type Orchestrator struct {
	record *Record
	deps   Collaborators
	opts   Options

	mu      sync.Mutex
	running bool
	paused  bool
	monitor Monitor
	stopCh  chan struct{}
	doneCh  chan struct{}
	clients map[string]PlatformClient

	videosProcessed int
	postsSuccessful int
	postsFailed     int
}

// NewOrchestrator wires an orchestrator for the given record.
func NewOrchestrator(record *Record, deps Collaborators, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = NewNopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.IDs == nil {
		deps.IDs = UUIDGenerator{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &Orchestrator{
		record:  record,
		deps:    deps,
		opts:    opts,
		clients: map[string]PlatformClient{},
	}
}

// Start builds the chat monitor and launches the worker. It is idempotent:
// starting a running orchestrator returns false without side effects. On
// monitor construction failure the record moves to StatusError and Start
// returns false.
func (o *Orchestrator) Start() bool {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		o.deps.Logger.Warn("orchestrator already running", "agent", o.record.Name())
		return false
	}
	o.mu.Unlock()

	o.record.SetStatus(StatusStarting)
	o.deps.Logger.Info("starting orchestration", "agent", o.record.Name())

	mon, err := o.deps.NewMonitor(o.record.Config.ChatAccount, o.record.Config.Groups, o.handleVideos)
	if err != nil {
		msg := fmt.Sprintf("failed to initialize chat monitor: %v", err)
		o.record.AddError(msg)
		o.record.SetStatus(StatusError)
		return false
	}

	o.mu.Lock()
	o.monitor = mon
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.running = true
	o.paused = false
	o.mu.Unlock()

	go o.worker()

	o.record.SetStatus(StatusRunning)
	o.deps.Logger.Info("orchestration started", "agent", o.record.Name())
	return true
}

// worker drives the monitor for the lifetime of one run. The monitor owns its
// own polling; the worker's only suspension point is the stop signal.
func (o *Orchestrator) worker() {
	defer close(o.doneCh)

	if err := o.monitor.Start(o.record.Config.CheckInterval()); err != nil {
		msg := fmt.Sprintf("chat monitor failed to start: %v", err)
		o.record.AddError(msg)
		o.record.SetStatus(StatusError)
		<-o.stopCh
		return
	}

	<-o.stopCh
	o.monitor.Stop()
}

// Stop signals the worker, waits up to StopTimeout for it to exit, then
// settles the record to StatusStopped unconditionally — even on timeout — so
// the record never wedges in StatusStopping. Cached platform sessions are
// logged out best-effort and released. Stopping a non-running orchestrator is
// a logged no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		o.deps.Logger.Warn("orchestrator not running", "agent", o.record.Name())
		return
	}
	o.record.SetStatus(StatusStopping)
	close(o.stopCh)
	o.running = false
	o.paused = false
	done := o.doneCh
	o.mu.Unlock()

	select {
	case <-done:
	case <-time.After(o.opts.StopTimeout):
		o.deps.Logger.Warn("worker did not exit before timeout", "agent", o.record.Name(), "timeout", o.opts.StopTimeout)
	}

	o.mu.Lock()
	clients := o.clients
	o.clients = map[string]PlatformClient{}
	o.mu.Unlock()

	for platform, client := range clients {
		if err := client.Logout(); err != nil {
			o.deps.Logger.Warn("platform logout failed", "agent", o.record.Name(), "platform", platform, "error", err)
		}
	}

	o.record.SetStatus(StatusStopped)
	o.deps.Logger.Info("orchestration stopped", "agent", o.record.Name())
}

// Pause suspends processing. Batches detected while paused are dropped, not
// buffered. Pausing a non-running orchestrator is a logged no-op.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		o.deps.Logger.Warn("cannot pause: not running", "agent", o.record.Name())
		return
	}
	o.paused = true
	o.record.SetStatus(StatusPaused)
	o.deps.Logger.Info("orchestration paused", "agent", o.record.Name())
}

// Resume continues processing after a pause. Resuming a non-paused
// orchestrator is a logged no-op.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.paused {
		o.deps.Logger.Warn("cannot resume: not paused", "agent", o.record.Name())
		return
	}
	o.paused = false
	o.record.SetStatus(StatusRunning)
	o.deps.Logger.Info("orchestration resumed", "agent", o.record.Name())
}

// handleVideos is the monitor callback: one batch of URLs from one group.
// URLs are processed in order; a failed download records an error and moves
// on without short-circuiting the batch.
func (o *Orchestrator) handleVideos(groupName string, urls []string) {
	o.mu.Lock()
	paused := o.paused
	o.mu.Unlock()
	if paused {
		o.deps.Logger.Info("agent paused, dropping batch", "agent", o.record.Name(), "group", groupName, "count", len(urls))
		return
	}

	o.deps.Logger.Info("processing batch", "agent", o.record.Name(), "group", groupName, "count", len(urls))

	for _, url := range urls {
		o.processVideo(groupName, url)
	}
}

// processVideo downloads one URL, posts it to every configured platform, and
// cleans up the local file regardless of posting outcome.
func (o *Orchestrator) processVideo(groupName, url string) {
	ctx := context.Background()

	path, err := o.deps.Downloader.Download(ctx, url)
	if err != nil || path == "" {
		msg := fmt.Sprintf("failed to download video: %s", url)
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		o.record.AddError(msg)
		return
	}

	o.mu.Lock()
	o.videosProcessed++
	o.mu.Unlock()
	o.record.SetLastCheck(o.deps.Clock.Now())

	caption := o.buildCaption(groupName)

	for _, platform := range o.record.Platforms() {
		o.postToPlatform(ctx, platform, groupName, url, path, caption)
	}

	o.archive(path)

	if err := os.Remove(path); err != nil {
		o.deps.Logger.Warn("failed to delete downloaded video", "agent", o.record.Name(), "path", path, "error", err)
	} else {
		o.deps.Logger.Debug("cleaned up video", "agent", o.record.Name(), "path", path)
	}
}

// buildCaption produces the post caption. With auto-captioning the caption is
// the joined hashtags only; otherwise the template is expanded with
// {group_name} and {date} and hashtags are appended.
func (o *Orchestrator) buildCaption(groupName string) string {
	cfg := o.record.Config

	hashtags := ""
	if len(cfg.Hashtags) > 0 {
		tags := make([]string, len(cfg.Hashtags))
		for i, tag := range cfg.Hashtags {
			tags[i] = "#" + tag
		}
		hashtags = strings.Join(tags, " ")
	}

	if cfg.AutoCaption {
		return hashtags
	}

	caption := cfg.DefaultCaption
	caption = strings.ReplaceAll(caption, "{group_name}", groupName)
	caption = strings.ReplaceAll(caption, "{date}", o.deps.Clock.Now().Format("2006-01-02"))
	if hashtags != "" {
		caption = caption + "\n\n" + hashtags
	}
	return caption
}

// postToPlatform uploads one video to one platform with bounded linear-backoff
// retry, updating counters, the record, and the history ledger.
func (o *Orchestrator) postToPlatform(ctx context.Context, platform, groupName, videoURL, path, caption string) {
	client, err := o.client(platform)
	if err != nil {
		msg := fmt.Sprintf("no client for %s: %v", platform, err)
		o.record.AddError(msg)
		o.recordFailure(ctx, platform, groupName, videoURL, msg, 0)
		return
	}

	o.deps.Logger.Info("posting video", "agent", o.record.Name(), "platform", platform, "file", filepath.Base(path))

	var result UploadResult
	var uploadErr error
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		result, uploadErr = client.Upload(ctx, path, caption)
		if uploadErr == nil && result.Success {
			now := o.deps.Clock.Now()
			o.mu.Lock()
			o.postsSuccessful++
			o.mu.Unlock()
			o.record.RecordPost(now)
			o.recordHistory(ctx, &PostRecord{
				Agent:     o.record.Name(),
				Group:     groupName,
				VideoURL:  videoURL,
				Platform:  platform,
				Success:   true,
				PostURL:   result.URL,
				Attempts:  attempt,
				CreatedAt: now,
			})
			o.deps.Logger.Info("posted", "agent", o.record.Name(), "platform", platform, "url", result.URL)
			return
		}
		if attempt < o.opts.MaxAttempts {
			wait := o.opts.RetryInterval * time.Duration(attempt)
			o.deps.Logger.Warn("upload failed, retrying", "agent", o.record.Name(), "platform", platform, "attempt", attempt, "wait", wait)
			o.deps.Clock.Sleep(wait)
		}
	}

	msg := fmt.Sprintf("%s upload failed: %s", platform, uploadFailureReason(result, uploadErr))
	o.record.AddError(msg)
	o.recordFailure(ctx, platform, groupName, videoURL, msg, o.opts.MaxAttempts)
}

func uploadFailureReason(result UploadResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if result.Error != "" {
		return result.Error
	}
	return "unknown error"
}

// client returns the cached platform client, creating and authenticating it
// on first use. Missing credentials are a per-post failure, not a startup
// failure.
func (o *Orchestrator) client(platform string) (PlatformClient, error) {
	o.mu.Lock()
	if c, ok := o.clients[platform]; ok {
		o.mu.Unlock()
		return c, nil
	}
	o.mu.Unlock()

	creds, err := o.record.Credentials(platform)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("no credentials configured for %s", platform)
	}

	c, err := o.deps.Platforms.Client(platform, *creds)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.clients[platform] = c
	o.mu.Unlock()
	return c, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, platform, groupName, videoURL, msg string, attempts int) {
	o.mu.Lock()
	o.postsFailed++
	o.mu.Unlock()
	o.recordHistory(ctx, &PostRecord{
		Agent:     o.record.Name(),
		Group:     groupName,
		VideoURL:  videoURL,
		Platform:  platform,
		Success:   false,
		Error:     msg,
		Attempts:  attempts,
		CreatedAt: o.deps.Clock.Now(),
	})
}

// recordHistory writes to the post ledger best-effort.
func (o *Orchestrator) recordHistory(ctx context.Context, p *PostRecord) {
	if o.deps.History == nil {
		return
	}
	p.ID = o.deps.IDs.New()
	if err := o.deps.History.RecordPost(ctx, p); err != nil {
		o.deps.Logger.Warn("failed to record post history", "agent", o.record.Name(), "error", err)
	}
}

// archive stores a copy of the video before local cleanup, when an archiver
// is configured. Failures are logged, never escalated.
func (o *Orchestrator) archive(path string) {
	if o.deps.Archiver == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		o.deps.Logger.Warn("cannot open video for archiving", "path", path, "error", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		o.deps.Logger.Warn("cannot stat video for archiving", "path", path, "error", err)
		return
	}

	if err := o.deps.Archiver.Put(filepath.Base(path), f, info.Size()); err != nil {
		o.deps.Logger.Warn("failed to archive video", "path", path, "error", err)
		return
	}
	o.deps.Logger.Debug("video archived", "name", filepath.Base(path))
}

// Stats returns a snapshot of the current counters. Safe to call concurrently
// with the worker.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{
		AgentName:            o.record.Name(),
		Running:              o.running,
		Paused:               o.paused,
		Status:               o.record.Status(),
		TotalVideosProcessed: o.videosProcessed,
		TotalPostsSuccessful: o.postsSuccessful,
		TotalPostsFailed:     o.postsFailed,
		LastCheck:            o.record.LastCheck(),
		LastPost:             o.record.LastPost(),
	}
}
