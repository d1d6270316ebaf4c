package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"yatube/internal/config"
	"yatube/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMediaRoot            = "media"
	DefaultImageMaxUploadSizeMB = 5
	// MasterMaxSize bounds both sides of a stored post image.
	MasterMaxSize = 2048
	JPEGQuality   = 82
	WebPQuality   = 70

	postImageDir = "posts"
	invalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
)

// imageMIME maps image.Decode format names to the media type browsers send for them.
var imageMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// rendition is one stored encoding of the master image.
type rendition struct {
	name   string
	encode func(io.Writer, image.Image) error
}

// renditions are written in order. The first one is what the post references.
var renditions = []rendition{
	{"master.jpg", func(w io.Writer, img image.Image) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	}},
	{"master.webp", func(w io.Writer, img image.Image) error {
		return webp.Encode(w, img, &webp.Options{Quality: WebPQuality})
	}},
}

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// ImageStore persists post attachments under media-relative paths.
type ImageStore interface {
	Store(ctx context.Context, in UploadImageInput) (string, error)
	// Remove deletes every rendition of the image stored at path.
	Remove(ctx context.Context, path string) error
}

// ImageService re-encodes uploaded post images and keeps them under the media root.
type ImageService struct {
	mediaRoot          string
	maxUploadSizeBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{
		mediaRoot:          DefaultMediaRoot,
		maxUploadSizeBytes: DefaultImageMaxUploadSizeMB << 20,
	}
	if cfg == nil {
		return s
	}
	if cfg.MediaRoot != "" {
		s.mediaRoot = cfg.MediaRoot
	}
	if cfg.ImageMaxUploadSizeMB > 0 {
		s.maxUploadSizeBytes = int64(cfg.ImageMaxUploadSizeMB) << 20
	}
	return s
}

func (s *ImageService) MediaRoot() string {
	return s.mediaRoot
}

// Store checks the upload, scales it down to MasterMaxSize and writes every rendition into a
// directory named after the uploader and the encoded bytes. It returns the JPEG path relative
// to the media root; storing the same image twice for one user yields the same path.
func (s *ImageService) Store(_ context.Context, in UploadImageInput) (string, error) {
	img, err := s.decode(in)
	if err != nil {
		return "", err
	}
	img = fitWithin(img, MasterMaxSize)

	encoded := make([][]byte, len(renditions))
	for i, r := range renditions {
		var buf bytes.Buffer
		if err := r.encode(&buf, img); err != nil {
			return "", models.NewInternalError(fmt.Errorf("encode %s: %w", r.name, err))
		}
		encoded[i] = buf.Bytes()
	}

	dir := path.Join(postImageDir, contentDigest(in.UserID, encoded[0]))
	primary := path.Join(dir, renditions[0].name)
	if _, err := os.Stat(s.abs(primary)); err == nil {
		return primary, nil
	}

	written := make([]string, 0, len(renditions))
	for i, r := range renditions {
		target := s.abs(path.Join(dir, r.name))
		if err := writeMediaFile(target, encoded[i]); err != nil {
			for _, p := range written {
				_ = os.Remove(p)
			}
			return "", models.NewInternalError(err)
		}
		written = append(written, target)
	}
	return primary, nil
}

// Remove deletes the directory holding the renditions of a path returned by Store. Anything
// that is not such a path is refused.
func (s *ImageService) Remove(_ context.Context, rel string) error {
	dir, name := path.Split(rel)
	digest := path.Base(dir)
	if name != renditions[0].name || path.Clean(dir) != path.Join(postImageDir, digest) || len(digest) != sha256.Size*2 {
		return fmt.Errorf("not a stored post image: %q", rel)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return fmt.Errorf("not a stored post image: %q", rel)
	}
	return os.RemoveAll(s.abs(path.Clean(dir)))
}

// decode rejects empty, oversized and non-image uploads, and uploads whose declared type
// disagrees with their content.
func (s *ImageService) decode(in UploadImageInput) (image.Image, error) {
	switch size := int64(len(in.Content)); {
	case size == 0:
		return nil, imageFieldError("The submitted file is empty.")
	case size > s.maxUploadSizeBytes:
		return nil, imageFieldError(fmt.Sprintf("File too large (max %dMB).", s.maxUploadSizeBytes>>20))
	}
	if !strings.HasPrefix(http.DetectContentType(in.Content), "image/") {
		return nil, imageFieldError(invalidImage)
	}

	img, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, imageFieldError(invalidImage)
	}
	detected, ok := imageMIME[format]
	if !ok {
		return nil, imageFieldError("Unsupported image format.")
	}
	if declared := mediaType(in.ContentType); strings.HasPrefix(declared, "image/") && !isMatchingContentType(declared, detected) {
		return nil, imageFieldError("Image content type mismatch.")
	}
	return img, nil
}

func (s *ImageService) abs(rel string) string {
	return filepath.Join(s.mediaRoot, filepath.FromSlash(rel))
}

func imageFieldError(message string) error {
	return &models.AppError{
		Code:    models.CodeValidation,
		Message: formErrorMessage,
		Fields:  map[string]string{"image": message},
	}
}

// fitWithin scales src down, keeping its aspect ratio, until neither side exceeds limit.
func fitWithin(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return src
	}

	var dw, dh int
	if w >= h {
		dw, dh = limit, max(h*limit/w, 1)
	} else {
		dw, dh = max(w*limit/h, 1), limit
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func mediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// isMatchingContentType treats image/jpg as an alias of image/jpeg.
func isMatchingContentType(declared, detected string) bool {
	canonical := func(t string) string {
		t = mediaType(t)
		if t == "image/jpg" {
			return "image/jpeg"
		}
		return t
	}
	return canonical(declared) == canonical(detected)
}

func contentDigest(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeMediaFile(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o600)
}
