// Wasabi (S3-compatible) specific functions. Implements the audit.ObjectStore
// interface.

package wasabi

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/verityscan/bucketsum/pkg/audit"
)

type Config struct {
	Bucket   string
	Endpoint string
	Region   string
	// Static credentials. Empty keys fall through to the SDK's default
	// credential chain.
	AccessKey string
	SecretKey string
}

type Client struct {
	s3     *s3.S3
	bucket string
	log    logrus.FieldLogger
}

func NewClient(log logrus.FieldLogger, cfg Config) (*Client, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		Endpoint:         aws.String(cfg.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		// The pipeline owns retry and rate limiting; the SDK must not retry
		// underneath it or the backoff accounting is wrong.
		MaxRetries: aws.Int(0),
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create AWS session")
	}

	log.Debugf("using endpoint %s for bucket %s", cfg.Endpoint, cfg.Bucket)
	return &Client{s3: s3.New(sess), bucket: cfg.Bucket, log: log}, nil
}

func (c *Client) ListPage(ctx context.Context, prefix, token string) ([]audit.ObjectInfo, string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := c.s3.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return nil, "", err
	}

	objects := make([]audit.ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		objects = append(objects, audit.ObjectInfo{
			Key:  aws.StringValue(obj.Key),
			Size: aws.Int64Value(obj.Size),
			ETag: aws.StringValue(obj.ETag),
		})
	}

	next := ""
	if aws.BoolValue(out.IsTruncated) {
		next = aws.StringValue(out.NextContinuationToken)
	}
	return objects, next, nil
}

func (c *Client) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (c *Client) Stat(ctx context.Context, key string) (audit.ObjectInfo, error) {
	out, err := c.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return audit.ObjectInfo{}, audit.ErrNotExist
		}
		return audit.ObjectInfo{}, err
	}
	return audit.ObjectInfo{
		Key:  key,
		Size: aws.Int64Value(out.ContentLength),
		ETag: aws.StringValue(out.ETag),
	}, nil
}

func (c *Client) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	return err
}
