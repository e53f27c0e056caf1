package wgpucontext

// ContextBuilderOption is a functional option for configuring a Context.
type ContextBuilderOption func(*Context)

// WithSurfaceSize sets the function reporting the surface size in pixels, usually a window's Size.
// Present reconfigures the surface whenever the reported size changes.
//
// Parameters:
//   - size: returns the width and height in pixels
//
// Returns:
//   - ContextBuilderOption: option function to apply
func WithSurfaceSize(size func() (int, int)) ContextBuilderOption {
	return func(c *Context) {
		if size != nil {
			c.surfaceSize = size
		}
	}
}

// WithVSync selects FIFO presentation when enabled and immediate presentation, if the surface
// supports it, when disabled.
func WithVSync(enabled bool) ContextBuilderOption {
	return func(c *Context) {
		c.vsync = enabled
	}
}

// WithValidation toggles running WGSL sources through naga before shader module creation.
// Validation is on by default.
func WithValidation(enabled bool) ContextBuilderOption {
	return func(c *Context) {
		c.validate = enabled
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) ContextBuilderOption {
	return func(c *Context) {
		c.forceFallback = force
	}
}
