package ubo

import (
	"bytes"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
)

// block is the implementation of the Block interface.
type block struct {
	*resource.Tracker
	mu      *sync.Mutex
	name    string
	layout  Layout
	point   int
	staged  []byte
	scratch []byte
}

// Block is a registered uniform block: one shared layout, one binding point, and CPU-staged bytes
// that are uploaded to one buffer per context when they change.
type Block interface {
	resource.Resource

	// Name returns the block name as declared in shader source.
	Name() string

	// Layout returns the computed layout shared by every shader declaring the block.
	Layout() Layout

	// BindingPoint returns the binding point assigned to the block name.
	BindingPoint() int

	// Set encodes values into the staged bytes. The block version only moves when the bytes
	// actually change, so unchanged values cause no re-upload.
	//
	// Parameters:
	//   - values: field name to value; unknown names are ignored
	//
	// Returns:
	//   - error: an error if a value does not fit its field
	Set(values map[string]any) error

	// Replace encodes values over zeroed bytes, so fields without a value read as zero instead
	// of keeping what an earlier Set staged. Like Set, the version only moves on a byte change.
	//
	// Parameters:
	//   - values: field name to value; unknown names are ignored
	//
	// Returns:
	//   - error: an error if a value does not fit its field
	Replace(values map[string]any) error

	// SetField encodes a single field value.
	SetField(name string, v any) error

	// Bytes returns a copy of the staged block bytes.
	Bytes() []byte
}

var _ Block = &block{}

func newBlock(name string, layout Layout, point int) *block {
	return &block{
		Tracker: resource.NewTracker(),
		mu:      &sync.Mutex{},
		name:    name,
		layout:  layout,
		point:   point,
		staged:  make([]byte, layout.Size),
	}
}

func (b *block) Name() string {
	return b.name
}

func (b *block) Layout() Layout {
	return b.layout
}

func (b *block) BindingPoint() int {
	return b.point
}

func (b *block) Set(values map[string]any) error {
	return b.stage(values, false)
}

func (b *block) Replace(values map[string]any) error {
	return b.stage(values, true)
}

// stage encodes values into scratch, starting from zero or from the staged bytes, and swaps it in
// when the result differs.
func (b *block) stage(values map[string]any, zero bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if zero {
		b.scratch = append(b.scratch[:0], make([]byte, b.layout.Size)...)
	} else {
		b.scratch = append(b.scratch[:0], b.staged...)
	}
	out, err := b.layout.Encode(values, b.scratch)
	if err != nil {
		return err
	}
	b.scratch = out
	if bytes.Equal(out, b.staged) {
		return nil
	}
	b.staged, b.scratch = b.scratch, b.staged
	b.MarkDirty()
	return nil
}

func (b *block) SetField(name string, v any) error {
	return b.Set(map[string]any{name: v})
}

func (b *block) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.staged...)
}
