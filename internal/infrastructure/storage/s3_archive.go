// Package storage archives raw marketplace payloads in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/config"
)

var _ integration.RawPayloadArchive = (*S3RawPayloadArchive)(nil)

var (
	// ErrArchiveKeyInvalid is returned for an empty account or order id
	ErrArchiveKeyInvalid = errors.New("storage: archive key requires an account and an order id")
	// ErrArchiveNotFound is returned by Get when nothing was archived under the key
	ErrArchiveNotFound = errors.New("storage: archived payload not found")
)

// S3RawPayloadArchive writes one JSON object per order. Re-syncing an order
// overwrites its object.
type S3RawPayloadArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// ArchiveOption configures an S3RawPayloadArchive
type ArchiveOption func(*S3RawPayloadArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) ArchiveOption {
	return func(a *S3RawPayloadArchive) { a.logger = logger }
}

// NewS3RawPayloadArchive builds the archive from configuration. With no access
// key the default AWS credential chain is used; with no endpoint the AWS
// regional endpoint is used.
func NewS3RawPayloadArchive(ctx context.Context, cfg *config.StorageConfig, opts ...ArchiveOption) (*S3RawPayloadArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, errors.New("storage access key and secret key must be set together")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			// S3-compatible stores do not all accept streaming checksum trailers
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	a := &S3RawPayloadArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// ObjectKey returns the key an order's payload is stored under
func (a *S3RawPayloadArchive) ObjectKey(accountID uuid.UUID, orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if accountID == uuid.Nil || orderID == "" || strings.ContainsAny(orderID, "/\\") {
		return "", ErrArchiveKeyInvalid
	}
	return path.Join(a.prefix, accountID.String(), orderID+".json"), nil
}

// Archive implements integration.RawPayloadArchive
func (a *S3RawPayloadArchive) Archive(ctx context.Context, accountID uuid.UUID, orderID string, payload []byte) error {
	key, err := a.ObjectKey(accountID, orderID)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive order %s: %w", orderID, err)
	}

	a.logger.Debug("Archived raw order payload",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// Get reads an archived payload back
func (a *S3RawPayloadArchive) Get(ctx context.Context, accountID uuid.UUID, orderID string) ([]byte, error) {
	key, err := a.ObjectKey(accountID, orderID)
	if err != nil {
		return nil, err
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, ErrArchiveNotFound
		}
		return nil, fmt.Errorf("read archived order %s: %w", orderID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read archived order %s: %w", orderID, err)
	}
	return data, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (a *S3RawPayloadArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}
