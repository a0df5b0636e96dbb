package ai

import (
	"context"
	"errors"
	"net/http"
)

// ErrUnavailable is returned when no language model credential is configured.
var ErrUnavailable = errors.New("language model not configured")

// Image is an optional attachment sent alongside a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// NewImage sniffs the content type when mimeType is empty.
func NewImage(data []byte, mimeType string) *Image {
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &Image{Data: data, MIMEType: mimeType}
}

// Gateway turns one prompt into raw completion text. Implementations do not
// retry; callers decide how to degrade.
type Gateway interface {
	Generate(ctx context.Context, prompt string, img *Image) (string, error)
}
