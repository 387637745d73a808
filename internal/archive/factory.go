package archive

import (
	"context"
	"fmt"

	"autopost-go/internal/agent"
	"autopost-go/internal/config"
)

// NewArchiverFromConfig builds an archiver from configuration. Type "none"
// (or empty) disables archiving and returns nil with no error.
func NewArchiverFromConfig(ctx context.Context, cfg config.ArchiveConfig) (agent.Archiver, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryArchive(), nil
	case "filesystem":
		if cfg.FSArchiveRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_archive_root")
		}
		a, err := NewFileSystemArchive(cfg.Name, cfg.FSArchiveRoot)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 archive requires s3_bucket")
		}
		a, err := NewS3Archive(ctx, cfg.Name, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
