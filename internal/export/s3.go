package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of *s3.Client used by S3Destination.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options locates the snapshot object. Endpoint is only set for
// S3-compatible stores such as MinIO and switches to path-style addressing.
type S3Options struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string
}

// S3Destination uploads graph snapshots to one object, overwriting it on
// every run. The SHA-256 of the payload is stored as object metadata so
// consumers can skip unchanged snapshots.
type S3Destination struct {
	client s3API
	opts   S3Options
}

// NewS3Destination loads the default AWS credential chain.
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, opts: opts}, nil
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	sum := sha256.Sum256(data)
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.opts.Bucket),
		Key:           aws.String(d.opts.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/x-ndjson"),
		Metadata:      map[string]string{"graphsync-sha256": hex.EncodeToString(sum[:])},
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s/%s: %w", d.opts.Bucket, d.opts.Key, err)
	}
	return nil
}
