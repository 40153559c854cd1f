package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	ledgercfg "hoa-ledger/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const reportPrefix = "integrity-reports"

// Client writes integrity reports to an S3 compatible bucket.
type Client struct {
	bucket string
	s3     *s3.Client
}

func NewClient(ctx context.Context, cfg ledgercfg.StorageConfig) (*Client, error) {
	if cfg.Region == "" || cfg.ArchiveBucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if parsed, err := url.Parse(endpoint); err == nil {
				endpoint = parsed.String()
			}
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
		// MinIO and older gateways reject the default trailing checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Client{bucket: cfg.ArchiveBucket, s3: s3Client}, nil
}

// ReportKey is the object key for a report taken at checkedAt.
func ReportKey(pollID string, checkedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", reportPrefix, pollID, checkedAt.UTC().Format("20060102T150405.000Z"))
}

// ArchiveReport uploads body and returns its s3:// location. Reports are
// never overwritten since the key carries the check time.
func (c *Client) ArchiveReport(ctx context.Context, pollID string, checkedAt time.Time, body []byte) (string, error) {
	if c == nil {
		return "", errors.New("s3 client not initialized")
	}
	if pollID == "" {
		return "", errors.New("poll id is required")
	}
	key := ReportKey(pollID, checkedAt)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(c.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ContentLength:        aws.Int64(int64(len(body))),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata:             map[string]string{"poll-id": pollID},
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", c.bucket, key), nil
}
