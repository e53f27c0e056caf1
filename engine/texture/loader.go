package texture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-tiny/common"
)

// ErrLoaderClosed is returned by Load after Close.
var ErrLoaderClosed = errors.New("texture loader closed")

// loader is the implementation of the Loader interface.
type loader struct {
	mu        *sync.Mutex
	pool      worker.DynamicWorkerPool
	workers   int
	queueSize int
	inflight  *sync.WaitGroup
	pending   atomic.Int64
	taskID    int
	closed    bool
}

// Loader is the asynchronous decode service. Loads run on a worker pool and complete the texture
// when done; the caller never blocks on a decode.
type Loader interface {
	// Load starts decoding a texture in the background. A texture that is already loading or
	// complete is left alone.
	//
	// Parameters:
	//   - t: a texture created by NewTexture
	//
	// Returns:
	//   - error: ErrLoaderClosed after Close, or an error for a foreign Texture implementation
	Load(t Texture) error

	// Pending returns the number of loads that have been started and not yet completed.
	Pending() int

	// Wait blocks until every started load has completed.
	Wait()

	// Close stops accepting loads. Loads already started run to completion; their textures still
	// complete but nothing waits for them.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a Loader backed by a worker pool.
//
// Parameters:
//   - options: pool sizing options
//
// Returns:
//   - Loader: the running loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:        &sync.Mutex{},
		workers:   4,
		queueSize: 256,
		inflight:  &sync.WaitGroup{},
	}
	for _, option := range options {
		option(l)
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, l.queueSize, time.Second)
	return l
}

func (l *loader) Load(tex Texture) error {
	t, ok := tex.(*texture)
	if !ok {
		return fmt.Errorf("texture %q was not created by NewTexture", tex.Label())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLoaderClosed
	}
	if !t.begin() {
		return nil
	}

	l.taskID++
	l.inflight.Add(1)
	l.pending.Add(1)
	l.pool.SubmitTask(worker.Task{
		ID:      l.taskID,
		Payload: t.label,
		Do: func() (any, error) {
			defer l.inflight.Done()
			defer l.pending.Add(-1)
			t.decode()
			if err := t.Err(); err != nil {
				common.LogWarn("texture load failed", "texture", t.label, "err", err)
				return nil, err
			}
			common.LogDebug("texture loaded", "texture", t.label, "width", t.image.Width, "height", t.image.Height)
			return nil, nil
		},
	})
	return nil
}

func (l *loader) Pending() int {
	return int(l.pending.Load())
}

func (l *loader) Wait() {
	l.inflight.Wait()
}

func (l *loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.inflight.Wait()
	l.pool.Stop()
}
