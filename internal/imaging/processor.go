// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging decodes uploaded images, normalizes their orientation and
// manages their files under the upload directory.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/util"
)

// ErrUnsupportedFormat is returned for data that is not a JPEG, PNG, GIF or WebP image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrInvalidImage is returned when the data has a known format but does not decode.
var ErrInvalidImage = errors.New("invalid image data")

// jpegQuality is used when re-encoding JPEG and WebP uploads.
const jpegQuality = 90

// ProcessResult describes a stored image.
type ProcessResult struct {
	Width    int
	Height   int
	MimeType string
	Size     int64
	// Key is the slash-separated path under the upload directory,
	// e.g. drafts/<owner>/<publicID>.png.
	Key string
}

// Processor stores images under uploadDir and serves them from baseURL.
type Processor struct {
	uploadDir string
	baseURL   string
}

// NewProcessor creates a new image processor.
func NewProcessor(uploadDir, baseURL string) *Processor {
	return &Processor{
		uploadDir: uploadDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Process decodes an upload, applies its EXIF orientation and saves it as
// folder/owner/publicID with an extension matching the stored format.
// EXIF metadata is not preserved. Animated GIFs are stored untouched.
func (p *Processor) Process(r io.Reader, folder, owner, publicID string) (*ProcessResult, error) {
	for _, seg := range []string{folder, owner, publicID} {
		if !util.IsSafeSegment(seg) {
			return nil, fmt.Errorf("invalid path segment %q", seg)
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	var (
		out           []byte
		width, height int
	)
	if format == "gif" {
		cfg, err := gif.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		out, width, height = data, cfg.Width, cfg.Height
	} else {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
		bounds := img.Bounds()
		width, height = bounds.Dx(), bounds.Dy()

		if out, format, err = encodeImage(img, format); err != nil {
			return nil, fmt.Errorf("encoding image: %w", err)
		}
	}

	key := path.Join(folder, owner, publicID+formatExtension(format))
	if err := p.write(key, out); err != nil {
		return nil, err
	}

	return &ProcessResult{
		Width:    width,
		Height:   height,
		MimeType: formatToMimeType(format),
		Size:     int64(len(out)),
		Key:      key,
	}, nil
}

// URL returns the public URL of a stored key.
func (p *Processor) URL(key string) string {
	return p.baseURL + "/" + key
}

// KeyFromURL returns the storage key of a URL served by this processor.
func (p *Processor) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, p.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Move relocates a stored file into another top-level folder, keeping the
// rest of its key, and returns the new key.
func (p *Processor) Move(key, folder string) (string, error) {
	_, rest, ok := strings.Cut(key, "/")
	if !ok {
		return "", fmt.Errorf("invalid key %q", key)
	}
	newKey := path.Join(folder, rest)

	src, err := p.localPath(key)
	if err != nil {
		return "", err
	}
	dst, err := p.localPath(newKey)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("moving image: %w", err)
	}
	return newKey, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (p *Processor) Remove(key string) error {
	full, err := p.localPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing image: %w", err)
	}
	return nil
}

func (p *Processor) localPath(key string) (string, error) {
	return util.SafeJoinPath(p.uploadDir, filepath.FromSlash(key))
}

func (p *Processor) write(key string, data []byte) error {
	full, err := p.localPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	return nil
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation undoes an EXIF orientation:
// 2 flip H, 3 rotate 180, 4 flip V, 5 transpose, 6 rotate 90 CW,
// 7 transverse, 8 rotate 90 CCW.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage re-encodes img. WebP has no pure Go encoder and is stored as
// JPEG; the returned format is the one actually written.
func encodeImage(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "jpeg", nil
	}
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	switch {
	case strings.Contains(contentType, "tiff"):
		// disintegration/imaging TIFF decoding is affected by CVE-2023-36308.
		return ""
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

func formatExtension(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// formatToMimeType converts format string to MIME type.
func formatToMimeType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return model.MimeTypeJPEG
	case "png":
		return model.MimeTypePNG
	case "gif":
		return model.MimeTypeGIF
	case "webp":
		return model.MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}
