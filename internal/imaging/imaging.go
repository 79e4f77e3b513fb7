// Package imaging normalizes item photos before they go to object
// storage. Kiosk cameras and staff phones submit anything from tiny
// thumbnails to 12-megapixel captures; the catalog only needs enough
// detail to recognize an umbrella on a shelf.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"

	_ "image/png"

	"golang.org/x/image/draw"
)

// MaxDimension bounds the longer side of a stored photo. Item photos
// are viewed in a catalog grid and on the kiosk screen, so anything
// beyond this is wasted storage and upload time.
const MaxDimension = 1280

// JPEGQuality trades file size against artifacting. Shelf photos are
// mostly flat surfaces and survive heavier compression than portraits.
const JPEGQuality = 82

// acceptedTypes are the input formats staff devices actually produce.
var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ProcessResult is a normalized photo ready for upload.
type ProcessResult struct {
	Data []byte
	MIME string
}

// Process validates and normalizes an uploaded item photo. The format
// is sniffed from the bytes, not the client's Content-Type. Output is
// always JPEG, scaled down to MaxDimension if the capture is larger.
func Process(r io.Reader) (*ProcessResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}

	if detected := http.DetectContentType(data); !acceptedTypes[detected] {
		return nil, fmt.Errorf("unsupported photo format: %s (only JPEG and PNG accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}

	if b := img.Bounds(); b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = scaleToFit(img, MaxDimension)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}

	return &ProcessResult{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// scaleToFit shrinks img so its longer side equals maxDim, preserving
// aspect ratio. Callers only pass images that exceed the bound.
func scaleToFit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}

	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
