package intake

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/zarlcorp/zclover/internal/handle"
	"github.com/zarlcorp/zclover/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pngFile(t *testing.T, name string, w, h int) File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return File{Name: name, Type: "image/png", Data: buf.Bytes()}
}

func newPipeline(opts ...Option) (*Pipeline, *handle.Registry, *notify.Queue) {
	reg := handle.NewRegistry()
	q := &notify.Queue{}
	return New(handle.NewSlot(reg), q, opts...), reg, q
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/png", true},
		{"image/jpeg", true},
		{"image/jpg", true},
		{"IMAGE/PNG", true},
		{"image/png; charset=binary", true},
		{"image/gif", false},
		{"image/webp", false},
		{"application/pdf", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := Accepts(tt.mime); got != tt.want {
				t.Errorf("Accepts(%q) = %v, want %v", tt.mime, got, tt.want)
			}
		})
	}
}

func TestSelectRejectsUnsupportedFormat(t *testing.T) {
	p, _, q := newPipeline()
	defer p.Teardown()

	err := p.Select(context.Background(), File{Name: "a.gif", Type: "image/gif", Data: []byte("GIF89a")})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("got %v, want ErrUnsupportedFormat", err)
	}

	toasts := q.Drain()
	if len(toasts) != 1 || toasts[0].Level != notify.LevelError || toasts[0].Message != UnsupportedFormatMessage {
		t.Errorf("toasts: %+v", toasts)
	}
	if s := p.State(); s.RawFile != nil || s.CropOpen || s.Decoding {
		t.Errorf("state changed: %+v", s)
	}
}

func TestSelectDecodesAndOpensCrop(t *testing.T) {
	p, _, q := newPipeline()
	defer p.Teardown()

	f := pngFile(t, "a.png", 4, 2)
	if err := p.Select(context.Background(), f); err != nil {
		t.Fatalf("select: %v", err)
	}
	p.Wait()

	s := p.State()
	if !s.CropOpen || s.DecodedPreview == nil {
		t.Fatalf("crop step not open: %+v", s)
	}
	if !strings.HasPrefix(s.DecodedPreview.DataURI, "data:image/png;base64,") {
		t.Errorf("data uri: %q", s.DecodedPreview.DataURI[:30])
	}
	if w, h := s.DecodedPreview.Bounds(); w != 4 || h != 2 {
		t.Errorf("bounds: got %dx%d, want 4x2", w, h)
	}
	if s.RawFile == nil || s.RawFile.Name != "a.png" {
		t.Errorf("raw file: %+v", s.RawFile)
	}
	if len(q.Drain()) != 0 {
		t.Error("no notification expected")
	}
}

func TestStaleDecodeNeverOverwritesNewer(t *testing.T) {
	release := make(chan struct{})
	decode := func(ctx context.Context, f File) (Preview, error) {
		if f.Name == "slow.png" {
			<-release
		}
		return Preview{DataURI: f.Name, Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}, nil
	}

	p, _, _ := newPipeline(WithDecoder(decode))
	defer p.Teardown()

	ctx := context.Background()
	_ = p.Select(ctx, File{Name: "slow.png", Type: "image/png"})
	_ = p.Select(ctx, File{Name: "fast.png", Type: "image/png"})
	p.Wait()

	close(release)
	p.wg.Wait()

	s := p.State()
	if s.DecodedPreview == nil || s.DecodedPreview.DataURI != "fast.png" {
		t.Errorf("preview: got %+v, want fast.png", s.DecodedPreview)
	}
	if s.RawFile.Name != "fast.png" {
		t.Errorf("raw file: got %q, want fast.png", s.RawFile.Name)
	}
}

func TestDecodeFailureRollsBack(t *testing.T) {
	p, _, q := newPipeline()
	defer p.Teardown()

	ctx := context.Background()
	good := pngFile(t, "good.png", 2, 2)
	if err := p.Select(ctx, good); err != nil {
		t.Fatal(err)
	}
	p.Wait()
	q.Drain()

	bad := File{Name: "bad.png", Type: "image/png", Data: []byte("not a png")}
	if err := p.Select(ctx, bad); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if !errors.Is(p.Err(), ErrDecodeFailed) {
		t.Errorf("err: got %v, want ErrDecodeFailed", p.Err())
	}
	s := p.State()
	if s.RawFile == nil || s.RawFile.Name != "good.png" {
		t.Errorf("raw file not rolled back: %+v", s.RawFile)
	}
	if !s.CropOpen || s.DecodedPreview == nil || s.Decoding {
		t.Errorf("state not rolled back: %+v", s)
	}

	toasts := q.Drain()
	if len(toasts) != 1 || toasts[0].Message != DecodeFailedMessage {
		t.Errorf("toasts: %+v", toasts)
	}
}

func TestCropCreatesHandleAndClosesStep(t *testing.T) {
	p, reg, _ := newPipeline()

	ctx := context.Background()
	if err := p.Select(ctx, pngFile(t, "wide.png", 6, 4)); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	first, err := p.Crop(ctx, nil)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(first.PNG))
	if err != nil {
		t.Fatalf("decode cropped: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("cropped size: got %dx%d, want 4x4", b.Dx(), b.Dy())
	}

	s := p.State()
	if s.CropOpen || s.DecodedPreview != nil {
		t.Errorf("crop step still open: %+v", s)
	}
	if s.ObjectURL != first.Handle {
		t.Errorf("object url: got %q, want %q", s.ObjectURL, first.Handle)
	}

	if _, err := p.Crop(ctx, nil); !errors.Is(err, ErrNoPreview) {
		t.Errorf("second crop: got %v, want ErrNoPreview", err)
	}

	// a second image supersedes the first handle
	if err := p.Select(ctx, pngFile(t, "b.png", 3, 3)); err != nil {
		t.Fatal(err)
	}
	p.Wait()
	second, err := p.Crop(ctx, CenterSquare)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := reg.Resolve(first.Handle); ok {
		t.Error("superseded handle should be revoked")
	}
	if reg.Live() != 1 {
		t.Errorf("live handles: got %d, want 1", reg.Live())
	}

	p.Teardown()
	if _, _, ok := reg.Resolve(second.Handle); ok {
		t.Error("teardown should revoke the current handle")
	}
	if reg.Live() != 0 {
		t.Errorf("live handles after teardown: got %d, want 0", reg.Live())
	}
}

func TestCropError(t *testing.T) {
	p, reg, _ := newPipeline()
	defer p.Teardown()

	ctx := context.Background()
	_ = p.Select(ctx, pngFile(t, "a.png", 2, 2))
	p.Wait()

	boom := errors.New("boom")
	_, err := p.Crop(ctx, CropperFunc(func(context.Context, image.Image) (image.Image, error) {
		return nil, boom
	}))
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if reg.Live() != 0 {
		t.Error("failed crop should not create a handle")
	}
	if !p.State().CropOpen {
		t.Error("crop step should stay open after a failed crop")
	}
}

func TestTeardownCancelsInFlightDecode(t *testing.T) {
	started := make(chan struct{})
	decode := func(ctx context.Context, f File) (Preview, error) {
		close(started)
		<-ctx.Done()
		return Preview{}, ctx.Err()
	}

	p, _, q := newPipeline(WithDecoder(decode))
	if err := p.Select(context.Background(), File{Name: "a.png", Type: "image/png"}); err != nil {
		t.Fatal(err)
	}
	<-started
	p.Teardown()

	if s := p.State(); s.DecodedPreview != nil || s.CropOpen {
		t.Errorf("cancelled decode delivered: %+v", s)
	}
	if p.Err() != nil {
		t.Errorf("cancelled decode is not an error: %v", p.Err())
	}
	if len(q.Drain()) != 0 {
		t.Error("cancelled decode should not notify")
	}

	if err := p.Select(context.Background(), File{Name: "b.png", Type: "image/png"}); !errors.Is(err, ErrClosed) {
		t.Errorf("select after teardown: got %v, want ErrClosed", err)
	}
}

func TestSetPreviewReleasesPrevious(t *testing.T) {
	p, reg, _ := newPipeline()
	a := reg.Create([]byte("a"), "image/png")
	b := reg.Create([]byte("b"), "image/png")

	p.SetPreview(a)
	p.SetPreview(b)
	if _, _, ok := reg.Resolve(a); ok {
		t.Error("previous handle should be released")
	}
	p.Teardown()
	if reg.Live() != 0 {
		t.Errorf("live: got %d, want 0", reg.Live())
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Photo.JPG")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Name != "Photo.JPG" {
		t.Errorf("name: got %q", f.Name)
	}
	if f.Type != "image/jpeg" {
		t.Errorf("type: got %q, want image/jpeg", f.Type)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadFileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.png")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fh.Truncate(MaxFileSize + 1); err != nil {
		t.Fatal(err)
	}
	fh.Close()

	if _, err := ReadFile(path); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("got %v, want ErrFileTooLarge", err)
	}
}

// pngHeader is a PNG that ends after an IHDR declaring w x h.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsOversizedImage(t *testing.T) {
	f := File{Name: "bomb.png", Type: "image/png", Data: pngHeader(40000, 40000)}

	_, err := Decode(context.Background(), f)
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("got %v, want ErrDecodeFailed", err)
	}
	if !strings.Contains(err.Error(), "40000x40000") {
		t.Errorf("error %q should name the dimensions", err)
	}
}

func TestSelectOversizedImageRollsBack(t *testing.T) {
	p, reg, q := newPipeline()
	defer p.Teardown()

	bomb := File{Name: "bomb.png", Type: "image/png", Data: pngHeader(40000, 40000)}
	if err := p.Select(context.Background(), bomb); err != nil {
		t.Fatalf("select: %v", err)
	}
	p.Wait()

	if !errors.Is(p.Err(), ErrDecodeFailed) {
		t.Errorf("err: got %v, want ErrDecodeFailed", p.Err())
	}
	if st := p.State(); st.CropOpen || st.DecodedPreview != nil {
		t.Error("oversized image should leave no preview")
	}
	if reg.Live() != 0 {
		t.Errorf("live: got %d, want 0", reg.Live())
	}
	toasts := q.Drain()
	if len(toasts) != 1 || toasts[0].Message != DecodeFailedMessage {
		t.Errorf("toasts: got %+v", toasts)
	}
}
