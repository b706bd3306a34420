package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/resilience"
)

// listPageSize is the S3 maximum for a single ListObjectsV2 page.
const listPageSize = 1000

type ClientOptions struct {
	Endpoint     string
	UsePathStyle bool
}

// NewClient builds an S3 client from a shared AWS config. SDK retries are
// disabled because calls run through resilience.Executor.
func NewClient(cfg aws.Config, opts ClientOptions) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		o.RetryMaxAttempts = 1
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
}

// Store is an ObjectStore over a single bucket.
type Store struct {
	client   *s3.Client
	bucket   string
	executor *resilience.Executor
}

func New(client *s3.Client, bucket string, executor *resilience.Executor) *Store {
	return &Store{client: client, bucket: bucket, executor: executor}
}

func (s *Store) Bucket() string { return s.bucket }

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.execute(ctx, "s3.put", func(callCtx context.Context) error {
		input := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		}
		if contentType != "" {
			input.ContentType = aws.String(contentType)
		}
		_, err := s.client.PutObject(callCtx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", s.bucket, key, wrapTemporaryIfNeeded("s3 put", err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.execute(ctx, "s3.get", func(callCtx context.Context) error {
		out, err := s.client.GetObject(callCtx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()

		data, err = io.ReadAll(out.Body)
		return err
	})
	if isNotFound(err) {
		return nil, domain.WrapError(domain.ErrNotFound, "s3 get", fmt.Errorf("bucket=%s key=%s", s.bucket, key))
	}
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", s.bucket, key, wrapTemporaryIfNeeded("s3 get", err))
	}
	return data, nil
}

func (s *Store) Head(ctx context.Context, key string) (bool, error) {
	err := s.execute(ctx, "s3.head", func(callCtx context.Context) error {
		_, err := s.client.HeadObject(callCtx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("s3 head %s/%s: %w", s.bucket, key, wrapTemporaryIfNeeded("s3 head", err))
	}
	return true, nil
}

// List returns keys under prefix in the lexicographic order S3 reports them,
// at most maxKeys when maxKeys is positive.
func (s *Store) List(ctx context.Context, prefix string, maxKeys int) ([]string, error) {
	keys := []string{}
	var token *string
	for {
		pageSize := listPageSize
		if maxKeys > 0 && maxKeys-len(keys) < pageSize {
			pageSize = maxKeys - len(keys)
		}

		var out *s3.ListObjectsV2Output
		err := s.execute(ctx, "s3.list", func(callCtx context.Context) error {
			var err error
			out, err = s.client.ListObjectsV2(callCtx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucket),
				Prefix:            aws.String(prefix),
				MaxKeys:           aws.Int32(int32(pageSize)),
				ContinuationToken: token,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("s3 list %s/%s: %w", s.bucket, prefix, wrapTemporaryIfNeeded("s3 list", err))
		}

		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if maxKeys > 0 && len(keys) >= maxKeys {
			return keys[:maxKeys], nil
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

func (s *Store) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.executor == nil {
		return fn(ctx)
	}
	return s.executor.Execute(ctx, op, fn, classifyS3Error)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
