package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config locates a Cloudflare R2 bucket.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	// PublicURL is the bucket's public base, e.g. https://pub-xyz.r2.dev.
	PublicURL string
}

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// R2Store keeps uploads in an R2 bucket under images/users/.
type R2Store struct {
	client    objectAPI
	bucket    string
	publicURL string
}

// NewR2Client builds an S3 client for the account's R2 endpoint.
func NewR2Client(ctx context.Context, cfg R2Config) (*s3.Client, error) {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		},
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithHTTPClient(&http.Client{Transport: tr}),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: r2 config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	}), nil
}

func NewR2Store(client objectAPI, bucket, publicURL string) *R2Store {
	return &R2Store{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

func objectKey(name string) string {
	return strings.TrimPrefix(PublicPrefix, "/") + name
}

func (s *R2Store) Put(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	key := objectKey(name)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	if s.publicURL == "" {
		return PublicPrefix + url.PathEscape(name), nil
	}
	return CleanURL(s.publicURL + "/" + key), nil
}

// Delete is idempotent: S3 answers a delete of a missing key with success.
func (s *R2Store) Delete(ctx context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	key := objectKey(name)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// CleanURL escapes spaces and normalises the URL when it parses.
func CleanURL(urlStr string) string {
	urlStr = strings.ReplaceAll(urlStr, " ", "%20")
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	return parsed.String()
}
