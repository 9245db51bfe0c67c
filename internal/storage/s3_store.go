package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	sherrors "github.com/pmurley/sheetwatch/internal/errors"
	"github.com/pmurley/sheetwatch/internal/models"
)

// objectAPI is the subset of *s3.Client the store needs.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3Store
type S3Options struct {
	Endpoint       string // host:port or URL; empty uses AWS
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Key            string
	ForcePathStyle bool
}

// S3Store keeps state as one object in an S3-compatible bucket. Writes
// are conditional on the ETag that was read.
type S3Store struct {
	api    objectAPI
	bucket string
	key    string
}

// NewS3Store builds an S3 client from opts.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" || opts.Key == "" {
		return nil, fmt.Errorf("s3 state needs a bucket and key: %w", sherrors.ErrInvalidConfig)
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if opts.AccessKey != "" || opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newS3Store(client, opts.Bucket, opts.Key), nil
}

func newS3Store(api objectAPI, bucket, key string) *S3Store {
	return &S3Store{api: api, bucket: bucket, key: key}
}

func (s *S3Store) Load(ctx context.Context) (*models.State, Revision, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) || apiErrorCode(err) == "NoSuchKey" {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err)
	}

	rev := Revision(aws.ToString(out.ETag))
	if rev == "" {
		rev = contentRevision(data)
	}

	state, err := Decode(data)
	if err != nil {
		return nil, rev, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return state, rev, nil
}

func (s *S3Store) Save(ctx context.Context, state *models.State, expected Revision) error {
	data, err := Encode(state)
	if err != nil {
		return fmt.Errorf("%v: %w", err, sherrors.ErrStateWrite)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	}
	if expected == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(string(expected))
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		switch apiErrorCode(err) {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("s3://%s/%s changed since it was read: %w", s.bucket, s.key, sherrors.ErrStateConflict)
		}
		return fmt.Errorf("failed to put s3://%s/%s: %v: %w", s.bucket, s.key, err, sherrors.ErrStateWrite)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
