package intake

import (
	"context"
	"image"
	"image/draw"
)

// Cropper produces the final image from a decoded preview.
type Cropper interface {
	Crop(ctx context.Context, img image.Image) (image.Image, error)
}

// CropperFunc adapts a function to Cropper.
type CropperFunc func(ctx context.Context, img image.Image) (image.Image, error)

func (f CropperFunc) Crop(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

// CenterSquare crops the largest centered square.
var CenterSquare Cropper = CropperFunc(func(_ context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	src := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	return dst, nil
})
