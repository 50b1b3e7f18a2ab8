// Package s3store keeps remote documents as JSON objects in an S3 compatible
// bucket (AWS or MinIO). Objects are laid out as <collection>/<userId>/<id>.json.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/moodkeeper/internal/client/remote"
	"github.com/google/uuid"
)

const objectSuffix = ".json"

// userIDField is the document field that names the owner. Every document
// written by the reconciler carries it.
const userIDField = "userId"

type objectAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig
	newS3Client          = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type Options struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type Store struct {
	api    objectAPI
	bucket string
	newID  func() string
}

func New(ctx context.Context, o Options) (*Store, error) {
	if o.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := newS3Client(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.UsePathStyle
	})

	return newWithAPI(api, o.Bucket), nil
}

func newWithAPI(api objectAPI, bucket string) *Store {
	return &Store{api: api, bucket: bucket, newID: uuid.NewString}
}

func (s *Store) Close() error { return nil }

func objectKey(collection, userID, id string) string {
	return collection + "/" + userID + "/" + id + objectSuffix
}

func userPrefix(collection, userID string) string {
	return collection + "/" + userID + "/"
}

func owner(fields map[string]any) (string, error) {
	u, _ := fields[userIDField].(string)
	if u == "" {
		return "", fmt.Errorf("document has no %q field", userIDField)
	}
	if strings.Contains(u, "/") {
		return "", fmt.Errorf("invalid user id %q", u)
	}
	return u, nil
}

func (s *Store) put(ctx context.Context, key string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return mapError(err)
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	userID, err := owner(fields)
	if err != nil {
		return "", err
	}
	id := s.newID()
	if err := s.put(ctx, objectKey(collection, userID, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	userID, err := owner(fields)
	if err != nil {
		return err
	}
	key := objectKey(collection, userID, id)

	_, err = s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err)
	}
	return s.put(ctx, key, fields)
}

func (s *Store) QueryByUser(ctx context.Context, collection, userID string) ([]remote.Document, error) {
	prefix := userPrefix(collection, userID)
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var docs []remote.Document
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, objectSuffix) {
				continue
			}
			fields, err := s.get(ctx, key)
			if err != nil {
				// listed but gone: deleted between list and get
				if errors.Is(err, remote.ErrNotFound) {
					continue
				}
				return nil, err
			}
			id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), objectSuffix)
			docs = append(docs, remote.Document{ID: id, Fields: fields})
		}
	}
	return docs, nil
}

func (s *Store) get(ctx context.Context, key string) (map[string]any, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", remote.ErrUnavailable, key, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return fields, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", remote.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
			return fmt.Errorf("%w: %w", remote.ErrUnauthorized, err)
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", remote.ErrNotFound, err)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %w", remote.ErrUnavailable, err)
		}
		return fmt.Errorf("s3 error: %w", err)
	}

	// no api error means the request never got an answer
	return fmt.Errorf("%w: %w", remote.ErrUnavailable, err)
}
