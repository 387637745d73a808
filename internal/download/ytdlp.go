// Package download fetches videos from social platforms via yt-dlp.
package download

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"autopost-go/internal/agent"
)

// qualityFormats maps quality presets to yt-dlp format selectors.
var qualityFormats = map[string]string{
	"low":    "bestvideo[height<=480]+bestaudio/best[height<=480]",
	"medium": "bestvideo[height<=720]+bestaudio/best[height<=720]",
	"high":   "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	"auto":   "bestvideo+bestaudio/best",
}

// YTDLP downloads videos by shelling out to the yt-dlp binary. Each download
// gets a unique output name so concurrent agents never collide.
type YTDLP struct {
	bin           string
	outputDir     string
	format        string
	maxFileSizeMB int
	timeout       time.Duration
	ids           agent.IDGenerator
	logger        agent.Logger
}

var _ agent.Downloader = (*YTDLP)(nil)

// New creates a yt-dlp downloader. quality is one of low/medium/high/auto;
// maxFileSizeMB of 0 disables the size limit.
func New(binPath, outputDir, quality string, maxFileSizeMB int, timeout time.Duration, ids agent.IDGenerator, logger agent.Logger) (*YTDLP, error) {
	format, ok := qualityFormats[quality]
	if !ok {
		return nil, fmt.Errorf("unknown quality preset: %s", quality)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if ids == nil {
		ids = agent.UUIDGenerator{}
	}
	if logger == nil {
		logger = agent.NewNopLogger()
	}
	return &YTDLP{
		bin:           binPath,
		outputDir:     outputDir,
		format:        format,
		maxFileSizeMB: maxFileSizeMB,
		timeout:       timeout,
		ids:           ids,
		logger:        logger,
	}, nil
}

// Download fetches one video and returns the path of the resulting file.
func (d *YTDLP) Download(ctx context.Context, videoURL string) (string, error) {
	if err := validateURL(videoURL); err != nil {
		return "", err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	// yt-dlp picks the extension, so pass a template and glob afterwards.
	id := d.ids.New()
	template := filepath.Join(d.outputDir, id+".%(ext)s")

	args := []string{
		"--format", d.format,
		"--output", template,
		"--restrict-filenames",
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"--merge-output-format", "mp4",
	}
	if d.maxFileSizeMB > 0 {
		args = append(args, "--max-filesize", fmt.Sprintf("%dM", d.maxFileSizeMB))
	}
	args = append(args, videoURL)

	d.logger.Debug("downloading video", "url", videoURL)
	cmd := exec.CommandContext(ctx, d.bin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, output)
	}

	matches, err := filepath.Glob(filepath.Join(d.outputDir, id+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to locate downloaded file: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("yt-dlp produced no output file for %s", videoURL)
	}

	d.logger.Info("downloaded video", "url", videoURL, "path", matches[0])
	return matches[0], nil
}

// CleanupOld removes downloaded files older than maxAge. Failures on
// individual files are logged and skipped.
func (d *YTDLP) CleanupOld(maxAge time.Duration) error {
	entries, err := os.ReadDir(d.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read download directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(d.outputDir, entry.Name())
			if err := os.Remove(path); err != nil {
				d.logger.Warn("failed to remove stale download", "path", path, "error", err)
			}
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid video url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid video url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid video url: missing host")
	}
	return nil
}
