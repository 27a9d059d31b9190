package mediasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Domain is the domain objects in the configured bucket are published under.
const S3Domain = "s3"

const defaultPresignExpiry = 15 * time.Minute

// headObjectAPI is the part of *s3.Client the source uses.
type headObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// presignAPI is the part of *s3.PresignClient the source uses.
type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config holds construction parameters for the S3 source.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; enables custom endpoints such as MinIO
	PathStyle bool
	Expires   time.Duration
}

// S3Source resolves "media-source://s3/<key>" to a presigned GET URL.
type S3Source struct {
	bucket  string
	head    headObjectAPI
	presign presignAPI
	expires time.Duration
}

// NewS3Source builds a source using the default AWS credential chain.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newS3Source(cfg.Bucket, client, s3.NewPresignClient(client), cfg.Expires), nil
}

func newS3Source(bucket string, head headObjectAPI, presign presignAPI, expires time.Duration) *S3Source {
	if expires <= 0 {
		expires = defaultPresignExpiry
	}
	return &S3Source{bucket: bucket, head: head, presign: presign, expires: expires}
}

// Resolve implements Source.
func (s *S3Source) Resolve(ctx context.Context, item Item) (PlayMedia, error) {
	key := item.Identifier
	if key == "" {
		return PlayMedia{}, fmt.Errorf("s3 media id needs an object key: %w", ErrMediaNotFound)
	}

	out, err := s.head.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return PlayMedia{}, fmt.Errorf("s3 object %s: %w", key, ErrMediaNotFound)
		}
		return PlayMedia{}, fmt.Errorf("head s3 object %s: %w", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key},
		s3.WithPresignExpires(s.expires))
	if err != nil {
		return PlayMedia{}, fmt.Errorf("presign s3 object %s: %w", key, err)
	}

	mimeType := aws.ToString(out.ContentType)
	if mimeType == "" || mimeType == "binary/octet-stream" {
		mimeType = mimeTypeFor(key)
	}

	return PlayMedia{URL: req.URL, MimeType: mimeType}, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}
