// Package intake turns a user-selected image file into a cropped,
// previewable avatar.
package intake

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when a file's declared type is not an
	// accepted image type.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrDecodeFailed is reported when the selected file cannot be decoded.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrNoPreview is returned when cropping without a decoded preview.
	ErrNoPreview = errors.New("no decoded preview")

	// ErrClosed is returned by a pipeline that has been torn down.
	ErrClosed = errors.New("pipeline closed")

	// ErrFileTooLarge is returned by ReadFile for files over MaxFileSize.
	ErrFileTooLarge = fmt.Errorf("file larger than %d MiB", MaxFileSize>>20)
)

// MaxFileSize is the largest file ReadFile loads.
const MaxFileSize = 10 << 20

// Messages shown to the user.
const (
	UnsupportedFormatMessage = "Please choose the correct image format!"
	DecodeFailedMessage      = "Could not read the image, please choose another file!"
)

var imageType = regexp.MustCompile(`(?i)^image/(png|jpg|jpeg)$`)

// Accepts reports whether a declared MIME type is an accepted image type.
func Accepts(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.TrimSpace(mimeType)
	}
	return imageType.MatchString(mt)
}

// File is a user-selected file with its declared MIME type.
type File struct {
	Name string
	Type string
	Data []byte
}

// ReadFile loads path and declares its type from the file extension, the
// way a browser file picker does. The content is not sniffed.
func ReadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("read file: %w", err)
	}
	defer fh.Close()

	if fi, err := fh.Stat(); err == nil && fi.Size() > MaxFileSize {
		return File{}, fmt.Errorf("read file %s: %w", filepath.Base(path), ErrFileTooLarge)
	}
	// the size can change after Stat
	data, err := io.ReadAll(io.LimitReader(fh, MaxFileSize+1))
	if err != nil {
		return File{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) > MaxFileSize {
		return File{}, fmt.Errorf("read file %s: %w", filepath.Base(path), ErrFileTooLarge)
	}
	return File{
		Name: filepath.Base(path),
		Type: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data: data,
	}, nil
}
