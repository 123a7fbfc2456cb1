package memdoc

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
	"github.com/walteh/fillswap/pkg/host"
	"gitlab.com/tozd/go/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImageEdge is the largest width or height accepted for raster images.
const DefaultMaxImageEdge = 4096

// 🖼️ RegisterImage validates content as an image and stores it under its SHA-1 digest.
// Registering the same bytes twice returns the same handle.
func (d *Document) RegisterImage(ctx context.Context, content []byte) (host.ImageHandle, error) {
	if len(content) == 0 {
		return host.ImageHandle{}, errors.New("image is empty")
	}

	format, err := d.validate(content)
	if err != nil {
		return host.ImageHandle{}, err
	}

	sum := sha1.Sum(content)
	hash := hex.EncodeToString(sum[:])

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.images[hash]; !ok {
		d.images[hash] = append([]byte(nil), content...)
		zerolog.Ctx(ctx).Debug().Str("hash", hash).Str("format", format).Int("size", len(content)).Msg("registered image")
	}
	return host.ImageHandle{Hash: hash}, nil
}

func (d *Document) validate(content []byte) (string, error) {
	if isSVG(content) {
		return "svg", nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", errors.Errorf("decoding image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", errors.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	if cfg.Width > d.opts.MaxImageEdge || cfg.Height > d.opts.MaxImageEdge {
		return "", errors.Errorf("image is too large: %dx%d exceeds %dpx", cfg.Width, cfg.Height, d.opts.MaxImageEdge)
	}
	return format, nil
}

func isSVG(content []byte) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")))
	if bytes.HasPrefix(head, []byte("<svg")) {
		return true
	}
	return bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg"))
}
