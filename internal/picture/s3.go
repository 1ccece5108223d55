package picture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3KeyPrefix namespaces pictures inside the bucket.
const s3KeyPrefix = "profile_pics/"

// S3Config holds what S3Store needs to reach the bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; e.g. a MinIO URL
	AccessKey string
	SecretKey string
	PublicURL string // base URL the bucket is readable at
}

// objectPutter is the subset of *s3.Client S3Store uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps pictures in an S3-compatible bucket.
type S3Store struct {
	client    objectPutter
	bucket    string
	publicURL string
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3 client from static credentials.
//
// With a custom Endpoint, path-style addressing is used, which MinIO and
// most S3-compatible servers expect.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("picture: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg.Bucket, cfg.PublicURL), nil
}

func newS3Store(client objectPutter, bucket, publicURL string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *S3Store) Save(ctx context.Context, userID, originalName string, r io.Reader) (string, error) {
	name, err := Filename(userID, originalName)
	if err != nil {
		return "", err
	}
	ext, _ := Extension(originalName)

	thumb, err := Thumbnail(r, ext)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s3KeyPrefix + name),
		Body:          bytes.NewReader(thumb),
		ContentLength: aws.Int64(int64(len(thumb))),
		ContentType:   aws.String(contentType(ext)),
	})
	if err != nil {
		return "", fmt.Errorf("picture: uploading %s to bucket %s: %w", name, s.bucket, err)
	}

	return name, nil
}

func (s *S3Store) URL(name string) string {
	if isDefault(name) {
		return DefaultURL
	}
	return s.publicURL + "/" + s3KeyPrefix + name
}
