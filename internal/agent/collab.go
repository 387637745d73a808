package agent

import (
	"context"
	"io"
	"time"
)

// Cipher encrypts and decrypts credential values. Implementations must treat
// empty input as empty output and must fail decryption of tokens produced
// with a different secret rather than returning garbage.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
	EncryptMap(values map[string]string) (string, error)
	DecryptMap(token string) (map[string]string, error)
}

// VideoCallback is invoked by a Monitor when one poll finds video URLs in a
// group. urls always has at least one entry.
type VideoCallback func(groupName string, urls []string)

// Monitor watches a chat account's groups and reports found video URLs.
// Duplicate suppression is the monitor's responsibility: a URL already
// reported for a message is not re-delivered.
type Monitor interface {
	// Start begins polling at the given interval. It returns after the
	// monitor's own worker is launched.
	Start(pollInterval time.Duration) error
	// Stop halts polling and releases the monitor's session.
	Stop()
}

// MonitorFunc constructs a Monitor for an account and its monitored groups.
// The orchestrator calls it on Start; a construction error moves the agent to
// StatusError.
type MonitorFunc func(account string, groups []string, cb VideoCallback) (Monitor, error)

// Downloader fetches a video URL to a local file and returns its path.
type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

// UploadResult is the outcome of one platform upload attempt.
type UploadResult struct {
	Success bool
	URL     string
	Error   string
}

// PlatformClient posts videos to one social platform. Logout is best-effort;
// failures are logged, never fatal.
type PlatformClient interface {
	Upload(ctx context.Context, filePath, caption string) (UploadResult, error)
	Logout() error
}

// PlatformResolver creates an authenticated client for a platform. The
// orchestrator resolves clients lazily and caches them per instance.
type PlatformResolver interface {
	Client(platform string, creds Credentials) (PlatformClient, error)
}

// Archiver stores a copy of a posted video before local cleanup.
type Archiver interface {
	Put(name string, r io.Reader, size int64) error
}

// PostRecord is one post attempt's durable outcome.
type PostRecord struct {
	ID        string
	Agent     string
	Group     string
	VideoURL  string
	Platform  string
	Success   bool
	PostURL   string
	Error     string
	Attempts  int
	CreatedAt time.Time
}

// HistoryStore is the durable ledger of post attempts.
type HistoryStore interface {
	RecordPost(ctx context.Context, p *PostRecord) error
	RecentByAgent(ctx context.Context, agentName string, limit int) ([]*PostRecord, error)
	Close() error
}
