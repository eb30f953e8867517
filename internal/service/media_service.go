package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	config "github.com/maheshrc27/postflow/configs"
)

const r2Scheme = "r2://"

var errStorageNotConfigured = errors.New("object storage is not configured")

// MediaResolver turns stored image references into URLs a platform can fetch.
type MediaResolver interface {
	Resolve(ctx context.Context, refs []string) ([]string, error)
}

// MediaStore uploads post images and returns a reference Resolve understands.
// Delete removes an object by that reference.
type MediaStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is the subset of a presigned request the resolver needs.
type PresignedRequest struct {
	URL string
}

type s3Presigner struct {
	client *s3.PresignClient
}

func (p s3Presigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// R2Service stores uploaded images in a Cloudflare R2 bucket and resolves
// r2://<key> references to presigned GET URLs. Plain http(s) URLs pass through
// untouched.
type R2Service struct {
	bucket    string
	expiry    time.Duration
	objects   objectStore
	presigner objectPresigner
}

func NewR2Service(ctx context.Context, cfg config.Config) (*R2Service, error) {
	s := &R2Service{bucket: cfg.R2.BucketName, expiry: cfg.R2.PresignExpiry}
	if !cfg.R2Enabled() {
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2.AccessKey, cfg.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID))
	})
	s.objects = client
	s.presigner = s3Presigner{client: s3.NewPresignClient(client)}
	return s, nil
}

func (s *R2Service) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if s.objects == nil {
		return "", errStorageNotConfigured
	}

	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return r2Scheme + key, nil
}

// Delete removes an uploaded object. References outside the bucket are
// ignored.
func (s *R2Service) Delete(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, r2Scheme)
	if !ok || key == "" {
		return nil
	}
	if s.objects == nil {
		return errStorageNotConfigured
	}

	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *R2Service) Resolve(ctx context.Context, refs []string) ([]string, error) {
	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		if !strings.HasPrefix(ref, r2Scheme) {
			urls = append(urls, ref)
			continue
		}

		key := strings.TrimPrefix(ref, r2Scheme)
		if key == "" {
			return nil, fmt.Errorf("empty object key in %q", ref)
		}
		if s.presigner == nil {
			return nil, fmt.Errorf("resolve %s: %w", ref, errStorageNotConfigured)
		}

		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.expiry))
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", key, err)
		}
		urls = append(urls, req.URL)
	}
	return urls, nil
}
