package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/h5col/errs"
)

// MemorySource serves datasets registered in memory. The Path of a locator is
// ignored; datasets are keyed by their cleaned name.
type MemorySource struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates a source holding datasets.
func NewMemorySource(datasets ...*Dataset) *MemorySource {
	s := &MemorySource{datasets: make(map[string]*Dataset, len(datasets))}
	for _, ds := range datasets {
		s.Add(ds)
	}

	return s
}

// Add registers ds under its name, replacing any dataset with the same name.
func (s *MemorySource) Add(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.datasets[ds.Name] = ds
}

// Open returns a shallow copy of the registered dataset. Closing it does not
// affect the source.
func (s *MemorySource) Open(ctx context.Context, loc Locator) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewSourceError(loc.String(), err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[loc.Dataset]
	if !ok && loc.Dataset == "" && len(s.datasets) == 1 {
		for _, only := range s.datasets {
			ds, ok = only, true
		}
	}
	if !ok {
		return nil, errs.NewSourceError(loc.String(), fmt.Errorf("%w: dataset %q", errs.ErrNotFound, loc.Dataset))
	}

	out := *ds
	out.closer = nil
	if err := out.Validate(); err != nil {
		return nil, errs.NewSourceError(loc.String(), fmt.Errorf("%w: %w", errs.ErrFormat, err))
	}

	return &out, nil
}
