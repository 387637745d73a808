package archive

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"autopost-go/internal/agent"
)

// S3Archive stores archived videos in an S3 bucket under an optional key
// prefix. Uploads go through the multipart upload manager so large videos
// don't need to be buffered in memory.
type S3Archive struct {
	name     string
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

var _ agent.Archiver = (*S3Archive)(nil)

// NewS3Archive creates an S3 archive. When accessKey and secretKey are both
// set they are used as static credentials; otherwise the default AWS
// credential chain applies (environment, shared config, instance role).
func NewS3Archive(ctx context.Context, name, bucket, prefix, region, accessKey, secretKey string) (*S3Archive, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Archive{
		name:     name,
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put uploads one video to s3://bucket/prefix/name.
func (a *S3Archive) Put(name string, r io.Reader, size int64) error {
	key := path.Base(name)
	if a.prefix != "" {
		key = path.Join(a.prefix, key)
	}

	_, err := a.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}
