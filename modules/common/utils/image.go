package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"io"
	"net/http"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// MaxInlineImageBytes - uploads above this are re-encoded to WebP before going to the model
const MaxInlineImageBytes = 7 << 20

var (
	ErrInvalidImage  = errors.New("invalid image")
	ErrImageTooLarge = errors.New("image exceeds upload limit")
)

// Image - validated upload ready for the model
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// ReadImage - reads at most limit bytes from r and validates the result
func ReadImage(r io.Reader, limit int64) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d MB)", ErrImageTooLarge, limit>>20)
	}
	return PrepareImage(data)
}

// PrepareImage - sniffs and decodes the image; oversize images are re-encoded to WebP
func PrepareImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}

	mimeType := http.DetectContentType(data)
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif":
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		img := &Image{Data: data, MIMEType: mimeType, Width: cfg.Width, Height: cfg.Height}
		if len(data) > MaxInlineImageBytes {
			return shrinkToWebP(img)
		}
		return img, nil

	case "image/webp":
		decoded, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		bounds := decoded.Bounds()
		return &Image{Data: data, MIMEType: mimeType, Width: bounds.Dx(), Height: bounds.Dy()}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mimeType)
	}
}

// shrinkToWebP - lossy WebP re-encode of a large JPEG/PNG/GIF
func shrinkToWebP(img *Image) (*Image, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	webpData, err := ConvertToWebP(decoded, 80)
	if err != nil {
		return nil, err
	}
	return &Image{Data: webpData, MIMEType: "image/webp", Width: img.Width, Height: img.Height}, nil
}

// ConvertToWebP - lossy WebP encoding at the given quality
func ConvertToWebP(img image.Image, quality float32) ([]byte, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}
	return buf.Bytes(), nil
}
