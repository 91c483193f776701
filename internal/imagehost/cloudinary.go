package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"
)

const cloudinaryAPI = "https://api.cloudinary.com/v1_1"

// CloudinaryUploader posts unsigned uploads with an upload preset.
type CloudinaryUploader struct {
	endpoint   string
	preset     string
	httpClient *http.Client
	now        func() time.Time
}

func NewCloudinaryUploader(cloudName, preset string) (*CloudinaryUploader, error) {
	if cloudName == "" || preset == "" {
		return nil, errors.New("CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET must be set")
	}
	return &CloudinaryUploader{
		endpoint:   fmt.Sprintf("%s/%s/image/upload", cloudinaryAPI, cloudName),
		preset:     preset,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}, nil
}

// WithEndpoint points the uploader at another upload URL.
func (u *CloudinaryUploader) WithEndpoint(endpoint string) *CloudinaryUploader {
	u.endpoint = endpoint
	return u
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (u *CloudinaryUploader) Upload(ctx context.Context, img Image) (string, error) {
	fileName := fmt.Sprintf("food_scan_%d_%s", u.now().Unix(), uuid.NewString())

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.jpg"`, fileName))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", &UploadError{Provider: "cloudinary", Err: err}
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", &UploadError{Provider: "cloudinary", Err: err}
	}
	for k, v := range map[string]string{
		"upload_preset": u.preset,
		"public_id":     fileName,
		"tags":          "food,scan,nutrition",
	} {
		if err := w.WriteField(k, v); err != nil {
			return "", &UploadError{Provider: "cloudinary", Err: err}
		}
	}
	if err := w.Close(); err != nil {
		return "", &UploadError{Provider: "cloudinary", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return "", &UploadError{Provider: "cloudinary", Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Provider: "cloudinary", Err: err}
	}
	defer resp.Body.Close()

	var out cloudinaryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", &UploadError{Provider: "cloudinary", StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.SecureURL == "" {
		msg := "Unknown error"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &UploadError{Provider: "cloudinary", StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return out.SecureURL, nil
}
