package backup

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/yidakee/partivotes/internal/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies backup files into an S3 bucket.
type S3Uploader struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
// It returns nil when no bucket is configured.
func NewS3Uploader(ctx context.Context, cfg *config.Config) (*S3Uploader, error) {
	if cfg == nil || strings.TrimSpace(cfg.BackupS3Bucket) == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("backup: load AWS config: %w", err)
	}
	usePathStyle := cfg.BackupS3PathStyle
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return newS3Uploader(client, cfg.BackupS3Bucket, cfg.BackupS3Prefix), nil
}

func newS3Uploader(client putObjectAPI, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

// Key returns the object key used for a backup file name.
func (u *S3Uploader) Key(name string) string {
	if u.prefix != "" {
		return u.prefix + "/" + name
	}
	return name
}

// Upload puts the file at path under Key(name).
func (u *S3Uploader) Upload(ctx context.Context, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("backup: stat %s: %w", path, err)
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(u.Key(name)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("backup: upload s3://%s/%s: %w", u.bucket, u.Key(name), err)
	}
	return nil
}
