// Package collision tracks dataset names added to a container and detects
// xxHash64 collisions between them.
package collision

import (
	"fmt"

	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/internal/hash"
)

// Tracker records dataset names in insertion order, keyed by name hash.
//
// Names that hash to the same id are kept side by side and flagged; the
// container directory stores full names, so readers resolve collisions by
// comparing names within a bucket.
type Tracker struct {
	buckets      map[uint64][]string // hash → names sharing it
	names        []string            // insertion order
	hasCollision bool
}

// NewTracker creates a new collision tracker.
func NewTracker() *Tracker {
	return &Tracker{
		buckets: make(map[uint64][]string),
	}
}

// Track records name and returns its hash id.
//
// Returns:
//   - errs.ErrInvalidDatasetName if name is empty
//   - errs.ErrDuplicateDataset if name was already tracked
func (t *Tracker) Track(name string) (uint64, error) {
	if name == "" {
		return 0, errs.ErrInvalidDatasetName
	}

	id := hash.ID(name)
	bucket := t.buckets[id]
	for _, existing := range bucket {
		if existing == name {
			return 0, fmt.Errorf("%w: %q", errs.ErrDuplicateDataset, name)
		}
	}
	if len(bucket) > 0 {
		t.hasCollision = true
	}

	t.buckets[id] = append(bucket, name)
	t.names = append(t.names, name)

	return id, nil
}

// HasCollision returns true if two tracked names share a hash id.
func (t *Tracker) HasCollision() bool {
	return t.hasCollision
}

// Names returns the tracked names in insertion order.
func (t *Tracker) Names() []string {
	return t.names
}

// Count returns the number of tracked names.
func (t *Tracker) Count() int {
	return len(t.names)
}

// Reset clears all tracked names and collision state.
func (t *Tracker) Reset() {
	clear(t.buckets)
	t.names = t.names[:0]
	t.hasCollision = false
}
