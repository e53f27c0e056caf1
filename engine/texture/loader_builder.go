package texture

// LoaderBuilderOption configures a Loader.
type LoaderBuilderOption func(*loader)

// WithWorkers sets the number of decode workers. Defaults to 4.
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithQueueSize sets how many loads may wait for a worker before Load blocks. Defaults to 256.
func WithQueueSize(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.queueSize = n
		}
	}
}
