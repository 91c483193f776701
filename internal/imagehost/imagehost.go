package imagehost

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"NutriScan/internal/utility"
)

// Image is an encoded picture ready for upload.
type Image struct {
	Data        []byte
	ContentType string
}

// Uploader stores an image and returns its publicly reachable URL.
type Uploader interface {
	Upload(ctx context.Context, img Image) (string, error)
}

var (
	// ErrUpload matches every failure returned by an Uploader.
	ErrUpload       = errors.New("image upload failed")
	ErrInvalidImage = errors.New("invalid image")
)

type UploadError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upload failed (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upload failed: %v", e.Provider, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// DecodeDataURI parses "data:<mime>;base64,<payload>". A bare base64 payload is accepted too.
func DecodeDataURI(s string) (Image, error) {
	s = strings.TrimSpace(s)
	contentType := ""
	payload := s
	if strings.HasPrefix(s, "data:") {
		meta, data, ok := strings.Cut(s, ",")
		if !ok {
			return Image{}, fmt.Errorf("%w: malformed data uri", ErrInvalidImage)
		}
		meta = strings.TrimPrefix(meta, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return Image{}, fmt.Errorf("%w: data uri is not base64", ErrInvalidImage)
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to decode base64: %v", ErrInvalidImage, err)
	}
	if len(raw) == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	return Image{Data: raw, ContentType: contentType}, nil
}

// NewFromEnv builds the uploader selected by IMAGE_HOST (cloudinary by default).
func NewFromEnv(ctx context.Context) (Uploader, error) {
	switch host := utility.EnvString("IMAGE_HOST", "cloudinary"); host {
	case "cloudinary":
		u, err := NewCloudinaryUploader(
			utility.EnvString("CLOUDINARY_CLOUD_NAME", ""),
			utility.EnvString("CLOUDINARY_UPLOAD_PRESET", ""),
		)
		if err != nil {
			return nil, err
		}
		return u, nil
	case "s3":
		u, err := NewS3UploaderFromConfig(ctx,
			utility.EnvString("S3_REGION", utility.EnvString("AWS_REGION", "")),
			utility.EnvString("S3_BUCKET", ""),
			utility.EnvString("S3_PUBLIC_BASE_URL", ""),
		)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unknown IMAGE_HOST %q", host)
	}
}
