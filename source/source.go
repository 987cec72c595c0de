// Package source opens datasets for scanning.
//
// A Source resolves a Locator to a Dataset: the record descriptor, the raw
// fixed-stride record bytes, the heap holding variable-length payloads, and
// the byte order both were written in. Every error a Source returns is a
// *errs.SourceError wrapping errs.ErrNotFound, errs.ErrFormat or a more
// specific container error.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arloliu/h5col/container"
	"github.com/arloliu/h5col/dtype"
	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
)

// LocatorSeparator splits the file path from the dataset path in a locator string.
const LocatorSeparator = "#"

// Locator identifies one dataset: a container path and a dataset name inside it.
type Locator struct {
	Path    string
	Dataset string
}

// ParseLocator parses "path#/group/dataset". The dataset part is optional;
// an empty dataset selects the only dataset of a single-dataset container.
func ParseLocator(s string) (Locator, error) {
	path, name, _ := strings.Cut(s, LocatorSeparator)
	if path == "" {
		return Locator{}, errs.NewSourceError(s, fmt.Errorf("%w: empty file path", errs.ErrNotFound))
	}

	return Locator{Path: path, Dataset: container.CleanName(name)}, nil
}

func (l Locator) String() string {
	if l.Dataset == "" {
		return l.Path
	}

	return l.Path + LocatorSeparator + l.Dataset
}

// Dataset is a materialized dataset ready to be scanned.
//
// Records holds Count records of Type.Size() bytes each. Heap may be empty
// when Type has no variable-length members.
type Dataset struct {
	Name    string
	Type    *dtype.Descriptor
	Records []byte
	Heap    []byte
	Count   int64
	Engine  endian.EndianEngine

	closer io.Closer
}

// NewDataset builds a dataset over records and heap. Count is derived from
// the record length; call Validate to check it.
func NewDataset(name string, typ *dtype.Descriptor, records, heap []byte, engine endian.EndianEngine) *Dataset {
	ds := &Dataset{
		Name:    container.CleanName(name),
		Type:    typ,
		Records: records,
		Heap:    heap,
		Engine:  engine,
	}
	if typ != nil && typ.Validate() == nil {
		ds.Count = int64(len(records) / typ.Size())
	}

	return ds
}

func fromContainer(ds *container.Dataset, closer io.Closer) *Dataset {
	return &Dataset{
		Name:    ds.Entry.Name,
		Type:    ds.Entry.Type,
		Records: ds.Records,
		Heap:    ds.Heap,
		Count:   int64(ds.Entry.Count), //nolint: gosec
		Engine:  ds.Engine,
		closer:  closer,
	}
}

// Validate checks the descriptor and that Records holds exactly Count records.
func (d *Dataset) Validate() error {
	if err := d.Type.Validate(); err != nil {
		return err
	}
	if d.Engine == nil {
		return fmt.Errorf("%w: dataset %q has no byte order", errs.ErrFormat, d.Name)
	}
	stride := int64(d.Type.Size())
	if d.Count < 0 || int64(len(d.Records)) != d.Count*stride {
		return fmt.Errorf("%w: dataset %q has %d bytes for %d records of %d bytes",
			errs.ErrInvalidBufferSize, d.Name, len(d.Records), d.Count, stride)
	}

	return nil
}

// Close releases the resources backing the dataset bytes. Records and Heap
// must not be used afterwards.
func (d *Dataset) Close() error {
	if d.closer == nil {
		return nil
	}
	c := d.closer
	d.closer = nil

	return c.Close()
}

// Source opens datasets.
type Source interface {
	// Open resolves loc. Errors are *errs.SourceError.
	Open(ctx context.Context, loc Locator) (*Dataset, error)
}
