package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// Preview is a decoded image ready for the crop step.
type Preview struct {
	DataURI string
	Image   image.Image
}

// Bounds returns the width and height of the decoded image.
func (p Preview) Bounds() (int, int) {
	if p.Image == nil {
		return 0, 0
	}
	b := p.Image.Bounds()
	return b.Dx(), b.Dy()
}

// DecodeFunc turns a file into a preview. It should stop early once ctx is
// done.
type DecodeFunc func(ctx context.Context, f File) (Preview, error)

// MaxPixels bounds the decoded image area. Larger images are rejected from
// their header before any pixel memory is allocated.
const MaxPixels = 25_000_000

// Decode reads f into a data URI and decodes the image behind it.
func Decode(ctx context.Context, f File) (Preview, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return Preview{}, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, f.Name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Preview{}, fmt.Errorf("%w: %s: %dx%d exceeds %d pixels",
			ErrDecodeFailed, f.Name, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(&ctxReader{ctx: ctx, r: bytes.NewReader(f.Data)})
	if err != nil {
		if ctx.Err() != nil {
			return Preview{}, ctx.Err()
		}
		return Preview{}, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, f.Name, err)
	}
	return Preview{DataURI: DataURI(f.Type, f.Data), Image: img}, nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ctxReader fails reads once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
