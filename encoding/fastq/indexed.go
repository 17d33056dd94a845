package fastq

import (
	"bufio"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// IndexedReader provides random access to the records of an uncompressed
// FASTQ stream. NewIndexedReader makes a single pass that records the byte
// offset of each record; Get then seeks and parses only the requested
// record. Records must use exactly four lines. Not threadsafe.
type IndexedReader struct {
	in      io.ReadSeeker
	offsets map[string]int64
}

// NewIndexedReader indexes in by feature id. Duplicate feature ids are an
// error.
func NewIndexedReader(in io.ReadSeeker) (*IndexedReader, error) {
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r := &IndexedReader{in: in, offsets: map[string]int64{}}
	br := bufio.NewReader(in)
	var (
		off    int64
		nLines int
	)
	for {
		line, err := br.ReadString('\n')
		if line == "" && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		if nLines%4 == 0 {
			if line[0] != '@' {
				return nil, errors.Wrapf(ErrInvalid, "line %d: expected '@', found %q", nLines+1, line)
			}
			id := FeatureID(trimNewline(line))
			if _, ok := r.offsets[id]; ok {
				return nil, errors.Errorf("duplicate id %s", id)
			}
			r.offsets[id] = off
		}
		off += int64(len(line))
		nLines++
		if err == io.EOF {
			break
		}
	}
	if nLines%4 != 0 {
		return nil, ErrShort
	}
	return r, nil
}

// Get returns the record for the given feature id.
func (r *IndexedReader) Get(id string) (Read, error) {
	off, ok := r.offsets[id]
	if !ok {
		return Read{}, errors.Errorf("id %s not in index", id)
	}
	if _, err := r.in.Seek(off, io.SeekStart); err != nil {
		return Read{}, err
	}
	sc := NewScanner(r.in)
	var read Read
	if !sc.Scan(&read) {
		if err := sc.Err(); err != nil {
			return Read{}, errors.Wrapf(err, "read %s", id)
		}
		return Read{}, errors.Wrapf(ErrShort, "read %s", id)
	}
	return read, nil
}

// Has reports whether id is present in the index.
func (r *IndexedReader) Has(id string) bool {
	_, ok := r.offsets[id]
	return ok
}

// Keys returns the indexed feature ids, sorted.
func (r *IndexedReader) Keys() []string {
	keys := make([]string, 0, len(r.offsets))
	for k := range r.offsets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
