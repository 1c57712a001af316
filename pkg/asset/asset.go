// Package asset holds captured raster images.
//
// A [Raster] is produced once by the capture step and read by the template
// editor (pixel dimensions) and the square compositor (pixels). It is never
// mutated after construction.
package asset

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/matzehuels/shotframe/pkg/errors"
)

// Raster is an encoded raster image with its decoded pixel dimensions.
type Raster struct {
	Path   string // where the bytes live on disk, if anywhere
	Data   []byte // encoded image bytes
	Width  int
	Height int
	Format string // png, jpeg, webp
}

// mediaTypes is the allow-list of raster formats that may be embedded.
var mediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// MediaType returns the media type for a file name's extension.
// Only PNG, JPEG and WEBP are known; anything else reports false.
func MediaType(name string) (string, bool) {
	mt, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]
	return mt, ok
}

// FromBytes decodes the header of data to build a Raster.
// name is recorded as Path and may be empty.
func FromBytes(data []byte, name string) (Raster, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Raster{}, errors.Wrap(errors.ErrCodeUnsupportedFormat, err, "decode image header %s", displayName(name))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Raster{}, errors.New(errors.ErrCodeInvalidInput, "image %s has no pixels", displayName(name))
	}
	return Raster{
		Path:   name,
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}, nil
}

// Load reads and inspects an image file.
func Load(path string) (Raster, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Raster{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "image %s", path)
	}
	if err != nil {
		return Raster{}, err
	}
	return FromBytes(data, path)
}

// Decode returns the decoded pixels.
func (r Raster) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(r.Data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnsupportedFormat, err, "decode image %s", displayName(r.Path))
	}
	return img, nil
}

// Save writes the encoded bytes to path, creating parent directories, and
// returns a copy of r that records the new location.
func (r Raster) Save(path string) (Raster, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Raster{}, err
	}
	if err := os.WriteFile(path, r.Data, 0o644); err != nil {
		return Raster{}, err
	}
	r.Path = path
	return r, nil
}

// Ext returns the file extension matching r's encoding: .jpg, .webp or .png.
func (r Raster) Ext() string {
	return Extension(r.Format)
}

// Extension maps an image format name as reported by image.DecodeConfig to
// a file extension. Unknown formats map to .png.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return ".jpg"
	case "webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Size returns the pixel size as an image.Point.
func (r Raster) Size() image.Point { return image.Pt(r.Width, r.Height) }

func displayName(name string) string {
	if name == "" {
		return "<bytes>"
	}
	return name
}
