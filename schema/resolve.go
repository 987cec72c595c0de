package schema

import (
	"fmt"

	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/errs"
)

// ProjectColumns narrows d to the top-level columns at indices, in the order given.
//
// For a compound the result is a new compound holding the selected fields with
// their original offsets and the original ByteSize, so the record stride does
// not change. A non-compound descriptor has exactly one column and is returned
// unchanged; indices must then be empty or [0]. Empty indices select every
// column. d is never modified.
//
// Returns:
//   - *dtype.Descriptor: the projected descriptor
//   - error: errs.ErrInvalidProjection for out-of-range or repeated indices
func ProjectColumns(d *dtype.Descriptor, indices []int) (*dtype.Descriptor, error) {
	if len(indices) == 0 {
		return d, nil
	}

	if d.Kind != dtype.KindCompound {
		if len(indices) == 1 && indices[0] == 0 {
			return d, nil
		}

		return nil, fmt.Errorf("%w: %v of a single-column dataset", errs.ErrInvalidProjection, indices)
	}

	seen := make([]bool, len(d.Fields))
	fields := make([]dtype.Field, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.Fields) {
			return nil, fmt.Errorf("%w: column %d out of range [0, %d)", errs.ErrInvalidProjection, idx, len(d.Fields))
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: column %d requested twice", errs.ErrInvalidProjection, idx)
		}
		seen[idx] = true
		fields = append(fields, d.Fields[idx])
	}

	return dtype.Compound(d.ByteSize, fields...), nil
}

// ResolveNames maps column names to indices in cols, preserving the order of names.
//
// Returns:
//   - errs.ErrColumnNotFound for a name with no matching column
func ResolveNames(cols []Column, names []string) ([]int, error) {
	indices := make([]int, 0, len(names))
	for _, name := range names {
		idx := -1
		for i, c := range cols {
			if c.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, name)
		}
		indices = append(indices, idx)
	}

	return indices, nil
}
