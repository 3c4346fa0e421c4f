package artifact

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Mirror receives a copy of every artifact written during a run.
type Mirror interface {
	Put(ctx context.Context, runID, path string, content []byte) error
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Mirror stores artifacts in a MinIO/S3 bucket under <run-id>/<path>.
type S3Mirror struct {
	client     *minio.Client
	bucketName string
	region     string

	// makeBucket checks for the bucket and creates it when missing.
	makeBucket func(ctx context.Context) error
	mu         sync.Mutex
	ready      bool
}

func NewS3Mirror(cfg S3Config) (*S3Mirror, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	s := &S3Mirror{
		client:     client,
		bucketName: bucket,
		region:     region,
	}
	s.makeBucket = s.createBucket
	return s, nil
}

// ensureBucket runs the bucket check until it succeeds once. A failed check
// is retried by the next Put.
func (s *S3Mirror) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.makeBucket(ctx); err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *S3Mirror) createBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
}

func (s *S3Mirror) Put(ctx context.Context, runID, filePath string, content []byte) error {
	key, err := ObjectKey(runID, filePath)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if content == nil {
		content = []byte{}
	}

	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType(filePath),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ObjectKey is the bucket key of an artifact path within a run.
func ObjectKey(runID, filePath string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", fmt.Errorf("run_id is required")
	}
	clean := path.Clean(filepath.ToSlash(strings.TrimSpace(filePath)))
	clean = strings.TrimPrefix(clean, "./")
	clean = strings.TrimLeft(clean, "/")
	if clean == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid artifact path %q", filePath)
	}
	return runID + "/" + clean, nil
}

func contentType(filePath string) string {
	switch strings.ToLower(path.Ext(filepath.ToSlash(filePath))) {
	case ".json":
		return "application/json"
	case ".ts":
		return "text/typescript"
	default:
		return "application/octet-stream"
	}
}
