package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/profilehub/profiles"
)

type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectStore maps object paths to keys of a single S3 bucket.
type ObjectStore struct {
	Client S3API
	Bucket string
	// Size limit of downloaded objects.
	MaxSize int64
}

var _ profiles.ObjectStore = (*ObjectStore)(nil)

func NewObjectStore(cfg aws.Config, bucket string, maxSize int64) *ObjectStore {
	return &ObjectStore{
		Client:  s3.NewFromConfig(cfg),
		Bucket:  bucket,
		MaxSize: maxSize,
	}
}

func (s *ObjectStore) Upload(ctx context.Context, path string, object profiles.Object) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(object.Data),
		ContentLength: aws.Int64(int64(len(object.Data))),
		ContentType:   aws.String(object.ContentType),
		// never overwrite
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return profiles.ErrObjectExists
		}
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *ObjectStore) Download(ctx context.Context, path string) (profiles.Object, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return profiles.Object{}, profiles.ErrObjectNotFound
		}
		return profiles.Object{}, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	var body io.Reader = out.Body
	if s.MaxSize > 0 {
		body = io.LimitReader(out.Body, s.MaxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return profiles.Object{}, fmt.Errorf("read object: %w", err)
	}
	if s.MaxSize > 0 && int64(len(data)) > s.MaxSize {
		return profiles.Object{}, fmt.Errorf("object %s exceeds %d bytes", path, s.MaxSize)
	}

	return profiles.Object{
		Path:        path,
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
	}, nil
}
