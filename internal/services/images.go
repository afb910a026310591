package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp
)

const (
	MaxUploadFiles = 10
	// Images wider or taller than this are scaled down before storage.
	MaxImageDimension = 2048
	jpegQuality       = 85
)

var allowedImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9가-힣_-]`)

// UploadError is a client-side upload problem; handlers answer it with 400.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string { return e.Message }

func uploadErrorf(format string, args ...any) error {
	return &UploadError{Message: fmt.Sprintf(format, args...)}
}

// ImageStore persists processed image bytes and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// UploadPolicy holds the configured allow-lists and limits.
type UploadPolicy struct {
	AllowedTypes []string
	MaxFileSize  int64
}

func (p UploadPolicy) allowedType(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, t := range p.AllowedTypes {
		if strings.EqualFold(t, mime) {
			return true
		}
	}
	return false
}

// Check validates a multipart header before its content is read.
func (p UploadPolicy) Check(fh *multipart.FileHeader) error {
	name := fh.Filename
	if name == "" || strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return uploadErrorf("invalid file name")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedImageExts[ext] {
		return uploadErrorf("file extension %s is not allowed", ext)
	}
	if ct := fh.Header.Get("Content-Type"); !p.allowedType(ct) {
		return uploadErrorf("file type %s is not allowed", ct)
	}
	if p.MaxFileSize > 0 && fh.Size > p.MaxFileSize {
		return uploadErrorf("file %s exceeds the %d byte limit", name, p.MaxFileSize)
	}
	return nil
}

// Process sniffs and decodes the image, rejecting anything that is not really
// one of the allowed types. JPEGs are re-encoded, which drops EXIF metadata,
// and oversized images are scaled down. It returns the bytes to store and
// their extension.
func (p UploadPolicy) Process(data []byte, originalExt string) ([]byte, string, error) {
	if p.MaxFileSize > 0 && int64(len(data)) > p.MaxFileSize {
		return nil, "", uploadErrorf("file exceeds the %d byte limit", p.MaxFileSize)
	}
	sniffed := http.DetectContentType(data)
	if !p.allowedType(sniffed) {
		return nil, "", uploadErrorf("file content %s is not an allowed image", sniffed)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", uploadErrorf("file is not a valid image")
	}

	ext := strings.ToLower(originalExt)
	b := img.Bounds()
	oversized := b.Dx() > MaxImageDimension || b.Dy() > MaxImageDimension
	if oversized {
		img = downscale(img, MaxImageDimension)
	}

	switch {
	case format == "jpeg":
		return encodeJPEG(img, ext)
	case oversized && format == "png":
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ".png", nil
	case oversized:
		// gif and webp have no encoder here; store the scaled copy as jpeg
		return encodeJPEG(img, ".jpg")
	}
	return data, ext, nil
}

func encodeJPEG(img image.Image, ext string) ([]byte, string, error) {
	if ext != ".jpg" && ext != ".jpeg" {
		ext = ".jpg"
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), ext, nil
}

// downscale fits img inside limit x limit keeping the aspect ratio.
func downscale(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// SanitizeFilename keeps letters, digits, Hangul, '_' and '-', truncates the
// stem to 50 characters and appends a random suffix so names never collide.
func SanitizeFilename(original, ext string) string {
	stem := strings.TrimSuffix(original, filepath.Ext(original))
	stem = unsafeFilenameChars.ReplaceAllString(stem, "_")
	if r := []rune(stem); len(r) > 50 {
		stem = string(r[:50])
	}
	suffix := make([]byte, 8)
	_, _ = rand.Read(suffix)
	return stem + "_" + hex.EncodeToString(suffix) + strings.ToLower(ext)
}

// LocalImageStore writes files under root in a YYYY/MM/DD tree that is
// served at baseURL.
type LocalImageStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

func NewLocalImageStore(root, baseURL string) *LocalImageStore {
	return &LocalImageStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (s *LocalImageStore) Save(_ context.Context, filename string, data []byte) (string, error) {
	rel := path.Join(s.now().Format("2006/01/02"), filename)
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.baseURL + "/" + rel, nil
}

// Delete removes a stored file. Paths that resolve outside root are refused.
func (s *LocalImageStore) Delete(_ context.Context, url string) error {
	full, err := s.resolve(url)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

var errOutsideUploadDir = errors.New("invalid file path")

func (s *LocalImageStore) resolve(url string) (string, error) {
	rel := strings.TrimPrefix(url, s.baseURL+"/")
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, full)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errOutsideUploadDir
	}
	return full, nil
}
