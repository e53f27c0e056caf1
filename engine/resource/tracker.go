package resource

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Resource is a logical GPU resource: a stable identity plus a version that moves forward every
// time the CPU-side data changes. Caches compare the version against what they last uploaded.
type Resource interface {
	// ID returns the stable identifier of the resource.
	ID() uuid.UUID

	// Version returns the current data version of the resource.
	Version() uint64
}

// Tracker is the embeddable identity and dirty-version of a logical resource.
type Tracker struct {
	id      uuid.UUID
	version atomic.Uint64
}

var _ Resource = &Tracker{}

// NewTracker creates a tracker with a fresh random identity at version 1.
func NewTracker() *Tracker {
	t := &Tracker{id: uuid.New()}
	t.version.Store(1)
	return t
}

func (t *Tracker) ID() uuid.UUID {
	return t.id
}

func (t *Tracker) Version() uint64 {
	return t.version.Load()
}

// MarkDirty advances the version so every context re-uploads on its next resolve.
func (t *Tracker) MarkDirty() {
	t.version.Add(1)
}
