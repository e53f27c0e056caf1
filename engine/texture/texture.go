// Package texture holds 2D images that load asynchronously and upload lazily per context.
// A Texture is a future with a single completion transition: Unloaded, Loading, then Ready or
// Failed. The renderer polls State at resolve time and never waits on a load.
package texture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
)

// ErrTextureNotReady is returned when resolving a texture that is unloaded or still loading.
var ErrTextureNotReady = errors.New("texture not ready")

// State is the load state of a texture.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// texture is the implementation of the Texture interface.
type texture struct {
	*resource.Tracker

	label  string
	source Source
	desc   gpu.TextureDesc
	flipY  bool

	state atomic.Int32
	once  *sync.Once
	done  chan struct{}
	image common.ImageData
	err   error
}

// Texture is a 2D image resource. Its pixels are written exactly once by the load that completes
// it and are read-only afterwards.
type Texture interface {
	resource.Resource

	// Label returns the debug label, the source name unless overridden.
	Label() string

	// Source returns the locator the texture loads from.
	Source() Source

	// State returns the current load state. It may change between two calls.
	State() State

	// Err returns the load failure, nil unless the state is StateFailed. The error wraps
	// gpu.ErrResourceLoadFailure.
	Err() error

	// Image returns the decoded pixels.
	//
	// Returns:
	//   - common.ImageData: the pixels
	//   - bool: false unless the state is StateReady
	Image() (common.ImageData, bool)

	// Desc returns the allocation description: the filters and wrapping set at construction, and
	// the image size once ready.
	Desc() gpu.TextureDesc

	// Done returns a channel closed when the texture becomes Ready or Failed.
	Done() <-chan struct{}

	// Wait blocks until the texture completes or ctx is done.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: the load error, or ctx.Err()
	Wait(ctx context.Context) error
}

var _ Texture = &texture{}

// NewTexture creates an unloaded texture. Nothing is read until a Loader or Load starts it.
//
// Parameters:
//   - source: where the image comes from
//   - options: filtering, wrapping and flip options
//
// Returns:
//   - Texture: the unloaded texture
func NewTexture(source Source, options ...TextureBuilderOption) Texture {
	if source == nil {
		panic("texture: nil source")
	}
	t := &texture{
		Tracker: resource.NewTracker(),
		label:   source.Name(),
		source:  source,
		desc: gpu.TextureDesc{
			MinFilter: gpu.FilterLinearMipmap,
			MagFilter: gpu.FilterLinear,
			Wrap:      gpu.WrapRepeat,
			Mipmaps:   true,
		},
		flipY: true,
		once:  &sync.Once{},
		done:  make(chan struct{}),
	}
	for _, option := range options {
		option(t)
	}
	if !t.desc.Mipmaps && t.desc.MinFilter == gpu.FilterLinearMipmap {
		t.desc.MinFilter = gpu.FilterLinear
	}
	t.desc.Label = t.label
	return t
}

func (t *texture) Label() string {
	return t.label
}

func (t *texture) Source() Source {
	return t.source
}

func (t *texture) State() State {
	return State(t.state.Load())
}

func (t *texture) Err() error {
	if t.State() != StateFailed {
		return nil
	}
	return t.err
}

func (t *texture) Image() (common.ImageData, bool) {
	if t.State() != StateReady {
		return common.ImageData{}, false
	}
	return t.image, true
}

func (t *texture) Desc() gpu.TextureDesc {
	d := t.desc
	if img, ok := t.Image(); ok {
		d.Width, d.Height = img.Width, img.Height
	}
	return d
}

func (t *texture) Done() <-chan struct{} {
	return t.done
}

func (t *texture) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin moves an unloaded texture to loading. Only the first caller wins.
func (t *texture) begin() bool {
	return t.state.CompareAndSwap(int32(StateUnloaded), int32(StateLoading))
}

// complete publishes the load result. The image and error are written before the state so a
// reader that observes Ready or Failed sees them.
func (t *texture) complete(img common.ImageData, err error) {
	t.once.Do(func() {
		if err != nil {
			t.err = fmt.Errorf("texture %q: %w: %w", t.label, gpu.ErrResourceLoadFailure, err)
			t.state.Store(int32(StateFailed))
		} else {
			t.image = img
			t.state.Store(int32(StateReady))
		}
		close(t.done)
	})
}

// decode runs the source and completes the texture.
func (t *texture) decode() {
	img, err := t.source.Decode(t.flipY)
	t.complete(img, err)
}

// Load decodes a texture on the calling goroutine. A texture that is already loading or
// complete is left alone.
//
// Parameters:
//   - tex: a texture created by NewTexture
//
// Returns:
//   - error: the load error of the texture once complete, nil if another load is in flight
func Load(tex Texture) error {
	t, ok := tex.(*texture)
	if !ok {
		return fmt.Errorf("texture %q was not created by NewTexture", tex.Label())
	}
	if t.begin() {
		t.decode()
	}
	return t.Err()
}
