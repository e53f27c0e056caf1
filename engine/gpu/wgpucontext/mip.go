package wgpucontext

import (
	"image"

	"golang.org/x/image/draw"
)

// mipChain downsamples tightly packed RGBA pixels into a full mip chain ending at 1x1. WebGPU has
// no mipmap generation, so levels are built on the CPU before upload.
//
// Returns:
//   - [][]byte: the pixels of every level, level 0 first
func mipChain(rgba []byte, w, h int) [][]byte {
	levels := [][]byte{rgba}
	src := &image.RGBA{Pix: rgba, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	for w > 1 || h > 1 {
		w, h = max(w/2, 1), max(h/2, 1)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		levels = append(levels, dst.Pix)
		src = dst
	}
	return levels
}
