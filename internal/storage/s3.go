package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"drive-api/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	// PublicURL, when set, is used as the base of file URLs instead of
	// presigned links.
	PublicURL string
	URLExpiry time.Duration
}

// S3Storage keeps blobs in an S3 bucket or any S3 compatible service.
type S3Storage struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	keyPrefix string
	publicURL string
	urlExpiry time.Duration
	log       logging.Logger
}

func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	if opts.Region != "" {
		configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// MinIO and friends need path-style addressing.
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Storage(client, opts), nil
}

func newS3Storage(client *s3.Client, opts S3Options) *S3Storage {
	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	publicURL := ""
	if opts.PublicURL != "" {
		publicURL = strings.TrimRight(opts.PublicURL, "/") + "/"
	}
	return &S3Storage{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		keyPrefix: opts.KeyPrefix,
		publicURL: publicURL,
		urlExpiry: expiry,
		log:       logging.Component("s3-storage"),
	}
}

// CheckBucket verifies that the bucket is reachable with the configured
// credentials.
func (s *S3Storage) CheckBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Storage) objectKey(ref string) (string, error) {
	if _, _, err := parseRef(ref); err != nil {
		return "", err
	}
	return s.keyPrefix + ref, nil
}

// Put spools r to a temporary file so the upload has a known length and a
// seekable body for request signing.
func (s *S3Storage) Put(ctx context.Context, ownerID int64, suggestedName string, r io.Reader) (string, int64, error) {
	ref := newRef(ownerID)
	key, err := s.objectKey(ref)
	if err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp("", "drive-upload-*")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		return "", 0, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", 0, err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          tmp,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to write object to S3: %w", err)
	}
	return ref, size, nil
}

func (s *S3Storage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, err := s.objectKey(ref)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("blob %s not found: %w", ref, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	return result.Body, nil
}

// Remove deletes the object. S3 treats deleting a missing key as success.
func (s *S3Storage) Remove(ctx context.Context, ref string) error {
	key, err := s.objectKey(ref)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (s *S3Storage) URL(ref string) string {
	key, err := s.objectKey(ref)
	if err != nil {
		return ""
	}
	if s.publicURL != "" {
		return s.publicURL + key
	}

	req, err := s.presign.PresignGetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		s.log.Error().Err(err).Str("content_ref", ref).Msg("Failed to presign object URL")
		return ""
	}
	return req.URL
}
