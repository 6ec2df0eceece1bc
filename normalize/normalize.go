// Package normalize converts camera-native image formats (TIFF, BMP, WebP,
// HEIC) into a universally renderable raster before they enter the pipeline.
package normalize

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	// Decoders for the camera-ish formats the converter handles.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	_ "image/gif"
	_ "image/png"

	"github.com/chaos-io/clearpic/util"
)

// File is one ingested image before it becomes a pipeline record.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type ConversionError struct {
	Name string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Name, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// convertible lists content types that are not universally renderable and
// must be re-encoded. HEIC/HEIF are listed even though no decoder is wired
// for them: attempting and dropping beats passing through bytes no consumer
// can display.
var convertible = map[string]bool{
	"image/tiff":     true,
	"image/bmp":      true,
	"image/x-ms-bmp": true,
	"image/webp":     true,
	"image/heic":     true,
	"image/heif":     true,
}

type Normalizer struct {
	quality int
	maxEdge int
	ready   bool
	log     zerolog.Logger
}

// New returns a ready Normalizer. The zero value is not ready and skips
// every convertible file, mirroring ingestion before decoders are wired.
func New(quality, maxEdge int, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		quality: quality,
		maxEdge: maxEdge,
		ready:   true,
		log:     log.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize passes standard files through untouched and re-encodes
// convertible ones as JPEG at the fixed quality. Files that fail conversion
// are dropped from the batch; a bad file never aborts its siblings.
func (n *Normalizer) Normalize(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		kind := util.DetectImageType(f.Data, f.ContentType)
		if !convertible[kind] {
			out = append(out, f)
			continue
		}
		if !n.ready {
			n.log.Warn().Str("file", f.Name).Str("type", kind).Msg("converter not ready, skipping file")
			continue
		}
		conv, err := n.convert(f)
		if err != nil {
			n.log.Error().Err(err).Str("file", f.Name).Str("type", kind).Msg("conversion failed, dropping file")
			continue
		}
		out = append(out, conv)
	}
	return out
}

func (n *Normalizer) convert(f File) (File, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return File{}, &ConversionError{Name: f.Name, Err: err}
	}

	img = capLongEdge(img, n.maxEdge)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.quality}); err != nil {
		return File{}, &ConversionError{Name: f.Name, Err: err}
	}

	return File{
		Name:        replaceExt(f.Name, ".jpg"),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}

// capLongEdge downscales img so its longest edge is at most maxEdge.
func capLongEdge(img image.Image, maxEdge int) image.Image {
	if maxEdge <= 0 {
		return img
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(longest)
	newW := uint(float64(w) * scale)
	newH := uint(float64(h) * scale)
	return resize.Resize(newW, newH, img, resize.Lanczos3)
}

func replaceExt(name, ext string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i] + ext
	}
	return name + ext
}
