// Package images hosts listing photos on an external store and hands back the
// public URL plus a handle that can later release the image.
package images

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageSize is the largest accepted upload, in bytes.
const MaxImageSize = 5 << 20

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Image is an image payload waiting to be hosted.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadedImage describes a hosted image.
type UploadedImage struct {
	URL      string `json:"imageUrl"`
	PublicID string `json:"imagePublicId"`
}

// Store uploads and deletes hosted images.
type Store interface {
	Upload(ctx context.Context, img Image) (*UploadedImage, error)
	Delete(ctx context.Context, publicID string) error
	Name() string
}

// DetectContentType returns the declared content type when it is an accepted
// image type, otherwise it sniffs the payload.
func DetectContentType(img Image) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(img.ContentType, ";")[0]))
	if _, ok := allowedContentTypes[ct]; ok {
		return ct
	}
	return http.DetectContentType(img.Data)
}

// IsAllowedContentType reports whether ct is an accepted image type.
func IsAllowedContentType(ct string) bool {
	_, ok := allowedContentTypes[ct]
	return ok
}

func extension(img Image, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(img.Filename)); ext != "" {
		return ext
	}
	return allowedContentTypes[contentType]
}
