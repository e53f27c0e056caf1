package texture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-tiny/common"
)

// Source locates and decodes the image behind a texture. Decode runs on a loader worker, never
// on the frame loop.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Decode fetches the image and converts it to RGBA.
	//
	// Parameters:
	//   - flipY: flip rows so the first row is the bottom of the image
	//
	// Returns:
	//   - common.ImageData: the decoded pixels
	//   - error: a fetch or decode error
	Decode(flipY bool) (common.ImageData, error)
}

type fileSource struct {
	path string
}

// FileSource decodes an image file. The format is detected from the content.
func FileSource(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Name() string {
	return s.path
}

func (s *fileSource) Decode(flipY bool) (common.ImageData, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return common.ImageData{}, err
	}
	defer f.Close()
	return common.DecodeImage(f, flipY)
}

type readerSource struct {
	name string
	r    io.Reader
}

// ReaderSource decodes an encoded image stream once. The stream is read on the loader worker.
func ReaderSource(name string, r io.Reader) Source {
	return &readerSource{name: name, r: r}
}

// BytesSource decodes an encoded image held in memory.
func BytesSource(name string, data []byte) Source {
	return &readerSource{name: name, r: bytes.NewReader(data)}
}

func (s *readerSource) Name() string {
	return s.name
}

func (s *readerSource) Decode(flipY bool) (common.ImageData, error) {
	return common.DecodeImage(s.r, flipY)
}

type imageSource struct {
	name string
	img  image.Image
}

// ImageSource converts an already decoded or procedurally drawn image.
func ImageSource(name string, img image.Image) Source {
	return &imageSource{name: name, img: img}
}

func (s *imageSource) Name() string {
	return s.name
}

func (s *imageSource) Decode(flipY bool) (common.ImageData, error) {
	return common.ImageToRGBA(s.img, "image", flipY)
}

type pixelSource struct {
	name   string
	width  int
	height int
	rgba   []byte
}

// PixelSource wraps tightly packed RGBA pixels. The rows are used as given; flipY is ignored.
func PixelSource(name string, width, height int, rgba []byte) Source {
	return &pixelSource{name: name, width: width, height: height, rgba: rgba}
}

func (s *pixelSource) Name() string {
	return s.name
}

func (s *pixelSource) Decode(bool) (common.ImageData, error) {
	if s.width <= 0 || s.height <= 0 || len(s.rgba) != 4*s.width*s.height {
		return common.ImageData{}, fmt.Errorf("%d bytes of pixels for a %dx%d image", len(s.rgba), s.width, s.height)
	}
	return common.ImageData{Pixels: s.rgba, Width: s.width, Height: s.height, Format: "rgba"}, nil
}
