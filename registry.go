package explorer

import (
	"encoding/json"
	"fmt"
	"io"
)

const defaultCategory = "Other"

// Category groups dimensions for display.
type Category struct {
	Name       string
	Dimensions []*Dimension
}

// Registry is the fixed catalog of dimensions, built once at startup.
type Registry struct {
	dimensions []*Dimension
	byKey      map[string]*Dimension
	categories []*Category
}

// NewRegistry builds the registry from catalog, keeping catalog order.
func NewRegistry(catalog []Descriptor) (*Registry, error) {
	r := &Registry{
		dimensions: make([]*Dimension, 0, len(catalog)),
		byKey:      make(map[string]*Dimension, len(catalog)),
	}

	index := make(map[string]*Category)
	for i := range catalog {
		desc := catalog[i]
		if desc.Key == "" {
			return nil, fmt.Errorf("%w: entry %d has no key", ErrInvalidDescriptor, i)
		}
		if desc.Type < Time || desc.Type > Quantitative {
			return nil, fmt.Errorf("%w: %q has no type", ErrInvalidDescriptor, desc.Key)
		}
		if _, ok := r.byKey[desc.Key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDimension, desc.Key)
		}
		if desc.Name == "" {
			desc.Name = desc.Key
		}

		d := newDimension(desc)
		r.dimensions = append(r.dimensions, d)
		r.byKey[desc.Key] = d

		name := desc.Category
		if name == "" {
			name = defaultCategory
		}
		c, ok := index[name]
		if !ok {
			c = &Category{Name: name}
			index[name] = c
			r.categories = append(r.categories, c)
		}
		c.Dimensions = append(c.Dimensions, d)
	}

	return r, nil
}

// LoadCatalog decodes a JSON array of descriptors.
func LoadCatalog(r io.Reader) ([]Descriptor, error) {
	var catalog []Descriptor
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	return catalog, nil
}

func (r *Registry) Get(key string) (*Dimension, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// All returns the dimensions in catalog order.
func (r *Registry) All() []*Dimension {
	return r.dimensions
}

func (r *Registry) Categories() []*Category {
	return r.categories
}

func (r *Registry) Len() int {
	return len(r.dimensions)
}
