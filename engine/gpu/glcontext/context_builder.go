package glcontext

// ContextBuilderOption is a functional option for configuring a Context.
type ContextBuilderOption func(*Context)

// WithSurface sets the function reporting the default framebuffer size, usually a window's Size.
//
// Parameters:
//   - size: returns the width and height in pixels
//
// Returns:
//   - ContextBuilderOption: option function to apply
func WithSurface(size func() (int, int)) ContextBuilderOption {
	return func(c *Context) {
		if size != nil {
			c.surface = size
		}
	}
}

// WithPresenter sets the function Present calls, usually a window's SwapBuffers.
func WithPresenter(present func()) ContextBuilderOption {
	return func(c *Context) {
		if present != nil {
			c.present = present
		}
	}
}
