package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
)

// Uploader creates the per-context GPU copies of ready textures.
type Uploader struct {
	cache *resource.Cache[gpu.Texture]
}

// NewUploader creates an empty texture uploader.
func NewUploader() *Uploader {
	return &Uploader{
		cache: resource.NewCache("texture", func(ctx gpu.Context, t gpu.Texture) {
			ctx.DeleteTexture(t)
		}),
	}
}

// Resolve returns the GPU texture of t on ctx, uploading it on first use once t is ready.
// Unready and failed textures never reach the cache, so a texture that finishes loading later is
// uploaded on the first resolve after that.
//
// Parameters:
//   - ctx: the context to upload to
//   - t: the texture
//
// Returns:
//   - gpu.Texture: the uploaded texture
//   - error: ErrTextureNotReady while unloaded or loading, the load error (gpu.ErrResourceLoadFailure)
//     once failed, or the allocation error
func (u *Uploader) Resolve(ctx gpu.Context, t Texture) (gpu.Texture, error) {
	switch state := t.State(); state {
	case StateReady:
	case StateFailed:
		return nil, t.Err()
	default:
		return nil, fmt.Errorf("texture %q is %v: %w", t.Label(), state, ErrTextureNotReady)
	}

	return u.cache.Resolve(ctx, t, func(ctx gpu.Context, prev gpu.Texture, exists bool) (gpu.Texture, error) {
		img, _ := t.Image()
		created, err := ctx.CreateTexture(t.Desc(), img.Pixels)
		if err != nil {
			return nil, fmt.Errorf("upload texture %q: %w", t.Label(), err)
		}
		if exists {
			ctx.DeleteTexture(prev)
		}
		return created, nil
	})
}

// Uploads returns how many times t has been uploaded to a context.
func (u *Uploader) Uploads(t Texture, ctxID gpu.ContextID) int {
	info, ok := u.cache.Info(t.ID(), ctxID)
	if !ok {
		return 0
	}
	return info.Uploads
}

// Forget deletes the GPU copies of t on every context.
func (u *Uploader) Forget(t Texture) {
	u.cache.Forget(t.ID())
}

// Release deletes every texture owned by a context.
func (u *Uploader) Release(ctxID gpu.ContextID) {
	u.cache.ReleaseContext(ctxID)
}
