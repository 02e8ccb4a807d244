// Package storage checks the object storage that spawned nodes upload to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var ErrBucketNotFound = errors.New("bucket not found")

// S3 talks to any S3-compatible endpoint.
type S3 struct {
	s3 *s3.Client
}

func NewS3(ctx context.Context, endpoint, region, accessKey, secretKey string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &S3{s3: client}, nil
}

// Check verifies that the bucket exists and that the credentials can reach it.
func (c *S3) Check(ctx context.Context, bucket string) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if isNotFoundError(err) {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
		}
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	return nil
}

// ValidateACL accepts the canned ACLs S3 knows about.
func ValidateACL(acl string) error {
	if !slices.Contains(types.ObjectCannedACL("").Values(), types.ObjectCannedACL(acl)) {
		return fmt.Errorf("unknown canned ACL '%s'", acl)
	}
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// S3-compatible services do not always return the SDK error types
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket" || code == "404"
	}

	return false
}
