package toolchain

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures a mirror of the binaries repository in an S3 bucket
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is the key prefix holding list.json and builds, usually the platform
	Prefix string
	UseSSL bool
}

// S3Source serves compilers from an S3/MinIO bucket laid out like the
// public repository: <prefix>/list.json and <prefix>/<build path>
type S3Source struct {
	client *minio.Client
	bucket string
	prefix string

	list listing
}

// NewS3Source creates a bucket-backed source
func NewS3Source(cfg S3Config) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	// Anonymous access works for public mirrors
	var creds *credentials.Credentials
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Source{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Releases lists release versions
func (s *S3Source) Releases(ctx context.Context) ([]string, error) {
	list, err := s.list.get(ctx, s.fetchList)
	if err != nil {
		return nil, err
	}
	return list.versions(), nil
}

// Lookup returns the build for version
func (s *S3Source) Lookup(ctx context.Context, version string) (Build, error) {
	list, err := s.list.get(ctx, s.fetchList)
	if err != nil {
		return Build{}, err
	}
	return list.lookup(version)
}

// Fetch opens the binary for b
func (s *S3Source) Fetch(ctx context.Context, b Build) (io.ReadCloser, error) {
	return s.getObject(ctx, b.Path)
}

func (s *S3Source) fetchList(ctx context.Context) (io.ReadCloser, error) {
	return s.getObject(ctx, "list.json")
}

func (s *S3Source) getObject(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.objectKey(name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	// GetObject is lazy; Stat surfaces missing keys before the caller reads
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("s3://%s/%s: not found", s.bucket, key)
		}
		return nil, fmt.Errorf("failed to stat s3://%s/%s: %w", s.bucket, key, err)
	}
	return obj, nil
}

func (s *S3Source) objectKey(name string) string {
	name = strings.TrimLeft(name, "/")
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}
