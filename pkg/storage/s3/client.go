package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
)

const pingTimeout = 5 * time.Second

// Client presigns GET requests against an S3-compatible bucket.
type Client struct {
	s3Client      *awss3.Client
	presignClient *awss3.PresignClient
	defaultBucket string
}

func NewClient(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket name is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("s3 access key id and secret are required")
	}

	opts := awss3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		UsePathStyle: cfg.UsePathStyle,
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
		opts.BaseEndpoint = aws.String(ep)
	}

	s3Client := awss3.New(opts)
	client := &Client{
		s3Client:      s3Client,
		presignClient: awss3.NewPresignClient(s3Client),
		defaultBucket: cfg.Bucket,
	}

	if logg != nil {
		logg.Info(ctx, "s3 presign client initialized")
	}
	return client, nil
}

// PresignGet returns a SigV4 presigned GET URL for key, valid for ttl.
// Signing is local; no request is sent to the bucket.
func (c *Client) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if c == nil || c.presignClient == nil {
		return "", errors.New("s3 client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	if key == "" {
		return "", errors.New("object key is required")
	}
	if ttl <= 0 {
		return "", errors.New("expiry must be positive")
	}

	req, err := c.presignClient.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

// Ping issues a HeadBucket against the default bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.s3Client == nil {
		return errors.New("s3 client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.s3Client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(c.defaultBucket)}); err != nil {
		return fmt.Errorf("s3 head bucket: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}
