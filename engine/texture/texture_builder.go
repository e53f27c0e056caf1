package texture

import "github.com/Carmen-Shannon/oxy-tiny/engine/gpu"

// TextureBuilderOption configures a texture at construction.
type TextureBuilderOption func(*texture)

// WithLabel overrides the debug label, which defaults to the source name.
func WithLabel(label string) TextureBuilderOption {
	return func(t *texture) {
		t.label = label
	}
}

// WithMinFilter sets the minification filter. Defaults to gpu.FilterLinearMipmap.
func WithMinFilter(f gpu.FilterMode) TextureBuilderOption {
	return func(t *texture) {
		t.desc.MinFilter = f
	}
}

// WithMagFilter sets the magnification filter. Defaults to gpu.FilterLinear.
func WithMagFilter(f gpu.FilterMode) TextureBuilderOption {
	return func(t *texture) {
		t.desc.MagFilter = f
	}
}

// WithWrap sets coordinate wrapping. Defaults to gpu.WrapRepeat.
func WithWrap(w gpu.WrapMode) TextureBuilderOption {
	return func(t *texture) {
		t.desc.Wrap = w
	}
}

// WithMipmaps toggles mipmap generation. Defaults to true.
func WithMipmaps(enabled bool) TextureBuilderOption {
	return func(t *texture) {
		t.desc.Mipmaps = enabled
	}
}

// WithFlipY toggles flipping rows at decode so texture coordinate (0, 0) is the bottom left of
// the image. Defaults to true.
func WithFlipY(flip bool) TextureBuilderOption {
	return func(t *texture) {
		t.flipY = flip
	}
}
