package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Output stores every message as its own object under prefix/topic/.
type S3Output struct {
	client putObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Output(ctx context.Context, bucket, prefix, region string) (*S3Output, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Output{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// Key returns the object key for a message on topic written at t.
func (o *S3Output) Key(topic string, t time.Time) string {
	return path.Join(o.prefix, topic, fmt.Sprintf("%d.json", t.UnixNano()))
}

func (o *S3Output) WriteMessage(ctx context.Context, topic string, msg []byte) error {
	key := o.Key(topic, o.now())
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(msg),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("unable to upload %s to S3: %w", key, err)
	}
	return nil
}

func (o *S3Output) Close() error { return nil }
