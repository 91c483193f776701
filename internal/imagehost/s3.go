package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// PutObjectAPI is the slice of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client        PutObjectAPI
	bucket        string
	publicBaseURL string
}

func NewS3Uploader(client PutObjectAPI, bucket, publicBaseURL string) (*S3Uploader, error) {
	if bucket == "" || publicBaseURL == "" {
		return nil, errors.New("S3_BUCKET and S3_PUBLIC_BASE_URL must be set")
	}
	return &S3Uploader{client: client, bucket: bucket, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// NewS3UploaderFromConfig loads credentials from the default AWS chain.
func NewS3UploaderFromConfig(ctx context.Context, region, bucket, publicBaseURL string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config for S3: %w", err)
	}
	return NewS3Uploader(s3.NewFromConfig(cfg), bucket, publicBaseURL)
}

func (u *S3Uploader) Upload(ctx context.Context, img Image) (string, error) {
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := fmt.Sprintf("food-scans/%s%s", uuid.NewString(), extension(contentType))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", &UploadError{Provider: "s3", Err: err}
	}
	return u.publicBaseURL + "/" + key, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return "." + sub
	}
	return ""
}
