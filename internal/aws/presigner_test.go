package aws

import (
	"context"
	"net/http"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockPresign struct {
	input   *s3.PutObjectInput
	expires time.Duration
}

func (m *mockPresign) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	m.input = params
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	m.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://bucket.s3.amazonaws.com/" + *params.Key + "?X-Amz-Signature=abc",
		Method: http.MethodPut,
	}, nil
}

func TestS3PresignerSign(t *testing.T) {
	mock := &mockPresign{}
	p := NewS3Presigner(mock, "photobook-uploads")

	url, err := p.Sign(context.Background(), "albums/u1/1-a.png", "image/png", 15*time.Minute, map[string]string{"upload-type": "album"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://bucket.s3.amazonaws.com/albums/u1/1-a.png?X-Amz-Signature=abc" {
		t.Fatalf("unexpected url %s", url)
	}
	if *mock.input.Bucket != "photobook-uploads" || *mock.input.ContentType != "image/png" {
		t.Fatalf("unexpected input: %+v", mock.input)
	}
	if mock.input.Metadata["upload-type"] != "album" {
		t.Fatalf("metadata not forwarded: %v", mock.input.Metadata)
	}
	if mock.expires != 15*time.Minute {
		t.Fatalf("expiry not forwarded: %v", mock.expires)
	}
}

func TestS3PresignerSign_NoBucket(t *testing.T) {
	p := NewS3Presigner(&mockPresign{}, "")
	if _, err := p.Sign(context.Background(), "k", "image/png", time.Minute, nil); err == nil {
		t.Fatalf("expected error without bucket")
	}
}
