package chain

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/isochain/encoding/abundance"
)

type countKey struct {
	sample, id string
}

// CountIndex maps (sample, feature id) to the value of one count field.
// It is read-only once loaded.
type CountIndex struct {
	field   abundance.Field
	values  map[countKey]string
	headers map[string]string
}

// NewCountIndex creates an empty index for field.
func NewCountIndex(field abundance.Field) *CountIndex {
	return &CountIndex{
		field:   field,
		values:  map[countKey]string{},
		headers: map[string]string{},
	}
}

// Add indexes the rows of a sample's abundance table.
func (c *CountIndex) Add(sample string, t *abundance.Table) {
	c.headers[sample] = t.Header
	for id, v := range t.Values {
		c.values[countKey{sample, id}] = v
	}
}

// Field returns the indexed count field.
func (c *CountIndex) Field() abundance.Field { return c.field }

// Lookup returns the count of feature id in sample.
func (c *CountIndex) Lookup(sample, id string) (string, bool) {
	v, ok := c.values[countKey{sample, id}]
	return v, ok
}

// Header returns the comment header of sample's count file.
func (c *CountIndex) Header(sample string) string { return c.headers[sample] }

// LoadCountIndex reads the count file of every sample of cfg.
func LoadCountIndex(ctx context.Context, cfg *Config, field abundance.Field) (*CountIndex, error) {
	idx := NewCountIndex(field)
	for _, s := range cfg.Samples {
		path := cfg.Files(s).Count
		t, err := abundance.ReadFile(ctx, path, field)
		if err != nil {
			return nil, err
		}
		idx.Add(s.Name, t)
		log.Printf("%s: %d %s values from %s", s.Name, len(t.Values), field, path)
	}
	return idx, nil
}
