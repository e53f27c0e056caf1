// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageData holds decoded RGBA pixel data ready for a texture upload.
type ImageData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel in row-major order.
	Pixels []byte
	// Width is the image width in pixels.
	Width int
	// Height is the image height in pixels.
	Height int
	// Format is the name of the decoder that read the image (e.g. "png").
	Format string
}

// DecodeImage decodes any registered image format (PNG, JPEG, GIF, BMP, TIFF, WebP) into RGBA.
//
// Parameters:
//   - r: the encoded image stream
//   - flipY: when true the rows are flipped so the first row is the bottom of the image
//
// Returns:
//   - ImageData: the decoded pixels
//   - error: an error if the stream cannot be decoded or is empty
func DecodeImage(r io.Reader, flipY bool) (ImageData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return ImageData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return ImageToRGBA(img, format, flipY)
}

// ImageToRGBA converts an already decoded image into tightly packed RGBA pixels.
//
// Parameters:
//   - img: the source image
//   - format: the format name recorded on the result
//   - flipY: when true the rows are flipped vertically
//
// Returns:
//   - ImageData: the converted pixels
//   - error: an error if the image has no area
func ImageToRGBA(img image.Image, format string, flipY bool) (ImageData, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return ImageData{}, fmt.Errorf("image has zero size %dx%d", bounds.Dx(), bounds.Dy())
	}

	var rgba *image.RGBA
	if flipY {
		rgba = transform.FlipV(img)
	} else {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	return ImageData{
		Pixels: rgba.Pix,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}
