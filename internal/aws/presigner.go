package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Presigner issues presigned PUT URLs for a single bucket.
type S3Presigner struct {
	client S3PresignAPI
	bucket string
}

func NewS3Presigner(client S3PresignAPI, bucket string) *S3Presigner {
	return &S3Presigner{client: client, bucket: bucket}
}

// Sign returns a URL that allows one PUT of key with the given content type until ttl elapses.
// metadata is stored as x-amz-meta-* headers and must be sent by the uploader.
func (p *S3Presigner) Sign(ctx context.Context, key, contentType string, ttl time.Duration, metadata map[string]string) (string, error) {
	if p.bucket == "" {
		return "", fmt.Errorf("presign put %s: bucket is not configured", key)
	}

	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      awsString(p.bucket),
		Key:         awsString(key),
		ContentType: awsString(contentType),
		Metadata:    metadata,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}
