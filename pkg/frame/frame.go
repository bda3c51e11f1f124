// Package frame provides the append-only column store that flows between
// silverline stages.
//
// A Frame is keyed by its bin_start index. Stages never modify a column
// that is already part of a frame: each stage builds new columns and
// appends them, so earlier stages' output is immutable for later ones.
//
// Two column kinds exist:
//   - Int: integer codes and calendar fields, never missing
//   - Float: measurements and derived features, with a validity mask
//     carrying explicit missing values
package frame

import (
	"time"

	"github.com/HatiCode/silverline/pkg/faults"
)

// IndexColumn is the name of the bin_start key column.
const IndexColumn = "bin_start"

// Column is a named, fixed-length column of a Frame.
type Column interface {
	Name() string
	Len() int
}

// Frame is an ordered table of columns sharing one time index.
type Frame struct {
	index   []time.Time
	columns []Column
	byName  map[string]Column
}

// New creates a frame over the given index. The slice is owned by the frame
// afterwards and must not be modified by the caller.
func New(index []time.Time) *Frame {
	return &Frame{
		index:  index,
		byName: make(map[string]Column),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.index)
}

// Index returns the bin_start index. Callers must treat it as read-only.
func (f *Frame) Index() []time.Time {
	return f.index
}

// Columns returns the data columns in append order (the index excluded).
func (f *Frame) Columns() []Column {
	out := make([]Column, len(f.columns))
	copy(out, f.columns)
	return out
}

// Names returns the full column list, starting with the index column.
func (f *Frame) Names() []string {
	names := make([]string, 0, len(f.columns)+1)
	names = append(names, IndexColumn)
	for _, c := range f.columns {
		names = append(names, c.Name())
	}
	return names
}

// Append adds columns to the frame. Nothing is appended if any column has
// the wrong length or a name already present in the frame.
func (f *Frame) Append(cols ...Column) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		name := c.Name()
		if name == "" || name == IndexColumn {
			return faults.Schema("invalid column name %q", name)
		}
		if _, exists := f.byName[name]; exists || seen[name] {
			return faults.Schema("duplicate column %q", name)
		}
		if c.Len() != len(f.index) {
			return faults.Schema("column %q has %d rows, frame has %d", name, c.Len(), len(f.index))
		}
		seen[name] = true
	}

	for _, c := range cols {
		f.columns = append(f.columns, c)
		f.byName[c.Name()] = c
	}
	return nil
}

// Has reports whether a data column with this name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.byName[name]
	return ok
}

// Column looks up a data column by name.
func (f *Frame) Column(name string) (Column, bool) {
	c, ok := f.byName[name]
	return c, ok
}

// Float returns the named column if it exists and is a Float column.
func (f *Frame) Float(name string) (*Float, error) {
	c, ok := f.byName[name]
	if !ok {
		return nil, faults.Schema("missing column %q", name)
	}
	fc, ok := c.(*Float)
	if !ok {
		return nil, faults.Schema("column %q is %T, want float", name, c)
	}
	return fc, nil
}

// Int returns the named column if it exists and is an Int column.
func (f *Frame) Int(name string) (*Int, error) {
	c, ok := f.byName[name]
	if !ok {
		return nil, faults.Schema("missing column %q", name)
	}
	ic, ok := c.(*Int)
	if !ok {
		return nil, faults.Schema("column %q is %T, want int", name, c)
	}
	return ic, nil
}
