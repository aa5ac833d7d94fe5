// Package archive writes closed-session records to S3-compatible object
// storage (MinIO in deployment) for long-term analytics retention. Archiving
// is best effort: the lifecycle manager tolerates a missing or failing
// archiver.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClosedSessionRecord is the JSON document archived per closed session
type ClosedSessionRecord struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	LoginAt         time.Time `json:"login_at"`
	LogoutAt        time.Time `json:"logout_at"`
	DurationMinutes int64     `json:"duration_minutes"`
}

// Service defines the interface for archive operations
type Service interface {
	// StoreClosedSession writes one closed-session record as a JSON object
	StoreClosedSession(ctx context.Context, record ClosedSessionRecord) error

	// EnsureBucketExists creates the bucket if it doesn't exist
	EnsureBucketExists(ctx context.Context) error

	// Health checks if the archive storage is accessible
	Health(ctx context.Context) error
}

type service struct {
	client     *s3.Client
	bucketName string
}

// New creates a new archive service instance configured for MinIO
func New(ctx context.Context) (Service, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	bucketName := os.Getenv("S3_BUCKET_NAME")
	useSSL := os.Getenv("S3_USE_SSL") == "true"

	if endpoint == "" {
		return nil, fmt.Errorf("S3_ENDPOINT environment variable is required")
	}
	if accessKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY environment variable is required")
	}
	if secretKey == "" {
		return nil, fmt.Errorf("S3_SECRET_KEY environment variable is required")
	}
	if bucketName == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME environment variable is required")
	}

	protocol := "http"
	if useSSL {
		protocol = "https"
	}
	endpointURL := fmt.Sprintf("%s://%s", protocol, endpoint)

	// Custom resolver for the MinIO endpoint
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(svc, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               endpointURL,
				SigningRegion:     "us-east-1",
				HostnameImmutable: true,
			}, nil
		},
	)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing is required for MinIO
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	s := &service{
		client:     client,
		bucketName: bucketName,
	}

	if err := s.EnsureBucketExists(ctx); err != nil {
		log.Printf("Warning: failed to ensure archive bucket exists: %v", err)
	}

	return s, nil
}

// EnsureBucketExists creates the bucket if it doesn't already exist
func (s *service) EnsureBucketExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})

	if err == nil {
		return nil // Bucket already exists
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucketName),
	})

	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Printf("Created archive bucket: %s", s.bucketName)
	return nil
}

// StoreClosedSession writes one closed-session record as a JSON object,
// keyed by user so per-user history is a prefix listing.
func (s *service) StoreClosedSession(ctx context.Context, record ClosedSessionRecord) error {
	if record.SessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if record.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	key := fmt.Sprintf("sessions/%s/%s.json", record.UserID, record.SessionID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})

	if err != nil {
		return fmt.Errorf("failed to archive session %s: %w", record.SessionID, err)
	}

	return nil
}

// Health checks if the archive storage is accessible
func (s *service) Health(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})

	if err != nil {
		return fmt.Errorf("archive health check failed: %w", err)
	}

	return nil
}
