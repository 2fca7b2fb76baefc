package helpers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type UploadConfig struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
}

var DefaultImageUploadConfig = UploadConfig{
	MaxSizeBytes: 5 * 1024 * 1024, // 5MB
	AllowedMimeTypes: []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
	},
}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ObjectWriter is the slice of a storage bucket the upload helper needs.
type ObjectWriter interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
}

// UploadImage validates an uploaded image by size and sniffed content type and stores it
// under <prefix>/<name>.<ext>. An empty name gets a random one. It returns the object path.
func UploadImage(ctx context.Context, bucket ObjectWriter, fileHeader *multipart.FileHeader, prefix, name string, configs ...UploadConfig) (string, error) {
	config := DefaultImageUploadConfig
	if len(configs) > 0 {
		config = configs[0]
	}

	if fileHeader.Size > config.MaxSizeBytes {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", config.MaxSizeBytes/(1024*1024))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, config.MaxSizeBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > config.MaxSizeBytes {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", config.MaxSizeBytes/(1024*1024))
	}

	mimeType := http.DetectContentType(data)
	mimeTypeAllowed := false
	for _, allowedType := range config.AllowedMimeTypes {
		if mimeType == allowedType {
			mimeTypeAllowed = true
			break
		}
	}
	if !mimeTypeAllowed {
		return "", fmt.Errorf("invalid file type. Allowed types: %v", config.AllowedMimeTypes)
	}

	if name == "" {
		name = uuid.New().String()
	}
	ext, ok := extensions[mimeType]
	if !ok {
		ext = "bin"
	}
	objectPath := fmt.Sprintf("%s/%s.%s", strings.Trim(prefix, "/"), name, ext)

	if err := bucket.Put(ctx, objectPath, data, mimeType); err != nil {
		return "", err
	}
	return objectPath, nil
}
