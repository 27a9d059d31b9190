package mediasource

import (
	"context"
	"errors"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	contentType string
	headErr     error
	presignErr  error
	expires     time.Duration
	headKeys    []string
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.headKeys = append(f.headKeys, aws.ToString(in.Key))
	if f.headErr != nil {
		return nil, f.headErr
	}
	out := &s3.HeadObjectOutput{}
	if f.contentType != "" {
		out.ContentType = aws.String(f.contentType)
	}
	return out, nil
}

func (f *fakeS3) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + aws.ToString(in.Bucket) + ".s3.amazonaws.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=sig",
		Method: "GET",
	}, nil
}

func TestS3Source_Resolve(t *testing.T) {
	fake := &fakeS3{contentType: "image/png"}
	source := newS3Source("camera-snapshots", fake, fake, 0)

	media, err := source.Resolve(context.Background(), Item{Domain: S3Domain, Identifier: "front/2024-01-01.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://camera-snapshots.s3.amazonaws.com/front/2024-01-01.png?X-Amz-Signature=sig", media.URL)
	assert.Equal(t, "image/png", media.MimeType)
	assert.Equal(t, defaultPresignExpiry, fake.expires)
	assert.Equal(t, []string{"front/2024-01-01.png"}, fake.headKeys)
}

func TestS3Source_GuessesMissingContentType(t *testing.T) {
	fake := &fakeS3{contentType: "binary/octet-stream"}
	source := newS3Source("bucket", fake, fake, time.Minute)

	media, err := source.Resolve(context.Background(), Item{Domain: S3Domain, Identifier: "clip.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", media.MimeType)
	assert.Equal(t, time.Minute, fake.expires)
}

func TestS3Source_Errors(t *testing.T) {
	ctx := context.Background()

	notFound := &fakeS3{headErr: &types.NotFound{}}
	_, err := newS3Source("bucket", notFound, notFound, 0).Resolve(ctx, Item{Domain: S3Domain, Identifier: "gone.jpg"})
	assert.ErrorIs(t, err, ErrMediaNotFound)

	denied := &fakeS3{headErr: errors.New("access denied")}
	_, err = newS3Source("bucket", denied, denied, 0).Resolve(ctx, Item{Domain: S3Domain, Identifier: "a.jpg"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMediaNotFound)

	presignFails := &fakeS3{presignErr: errors.New("no credentials")}
	_, err = newS3Source("bucket", presignFails, presignFails, 0).Resolve(ctx, Item{Domain: S3Domain, Identifier: "a.jpg"})
	assert.ErrorContains(t, err, "presign")

	_, err = newS3Source("bucket", &fakeS3{}, &fakeS3{}, 0).Resolve(ctx, Item{Domain: S3Domain})
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestNewS3Source_RequiresBucket(t *testing.T) {
	_, err := NewS3Source(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "bucket required")
}
