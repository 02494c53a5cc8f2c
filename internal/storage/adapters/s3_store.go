package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/storage"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 60 * time.Second

	// conflictRetries bounds retries of a conditional put answered with 409.
	conflictRetries = 3
	conflictBackoff = 50 * time.Millisecond
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps one object per record.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger *events.Logger
}

// NewS3Store creates a store using the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, prefix string, logger *events.Logger) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3StoreWithClient creates a store around an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string, logger *events.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.WithField("component", "s3_store"),
	}
}

// Get implements storage.BlobStore.
func (s *S3Store) Get(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.buildKey(id)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
	}
	return data, nil
}

// Set implements storage.BlobStore. A PutObject replaces the whole object.
func (s *S3Store) Set(ctx context.Context, id string, value []byte) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	key := s.buildKey(id)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"object":  key,
		"size":    len(value),
		"session": events.GetStore(ctx),
	}).Debug("Wrote record to S3")

	return nil
}

// SetIfAbsent uses a conditional put (If-None-Match: *). A 409 means another
// conditional write on the key is still in flight; the put is retried until
// that write settles into a winner.
func (s *S3Store) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, false, err
	}

	for attempt := 1; ; attempt++ {
		err := s.putIfAbsent(ctx, id, value)
		switch {
		case err == nil:
			return append([]byte(nil), value...), true, nil

		case isPreconditionFailed(err):
			existing, err := s.Get(ctx, id)
			if err != nil {
				return nil, false, fmt.Errorf("read existing record: %w", err)
			}
			return existing, false, nil

		case isConditionalConflict(err) && attempt <= conflictRetries:
			s.logger.WithFields(map[string]interface{}{
				"id":      id,
				"attempt": attempt,
			}).Debug("Conditional write conflict, retrying")

			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(conflictBackoff * time.Duration(attempt)):
			}

		default:
			return nil, false, fmt.Errorf("s3 conditional put: %w", err)
		}
	}
}

func (s *S3Store) putIfAbsent(ctx context.Context, id string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.buildKey(id)),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	return err
}

// Delete implements storage.BlobStore.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.buildKey(id)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// Close implements storage.BlobStore.
func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) buildKey(id string) string {
	if s.prefix == "" {
		return id + ".json"
	}
	return path.Join(s.prefix, id) + ".json"
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// isPreconditionFailed matches the 412 of a lost If-None-Match race.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}

// isConditionalConflict matches the 409 S3 returns while a competing
// conditional write on the same key has not completed yet.
func isConditionalConflict(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalRequestConflict"
}
