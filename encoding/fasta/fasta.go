// Package fasta reads FASTA files of named sequences, either whole into
// memory or lazily through a byte-offset index. Sequences may span any
// number of lines:
//
// >PB.1.1 some description
// ACGTAC
// GAGGAC
// GCG
// >PB.1.2
// ACGT
//
// A sequence's name is the first whitespace-delimited token after '>'.
// Names must be unique within a file.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Record returns the whole sequence of the given name.
	Record(seqName string) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

type fasta struct {
	seqs     map[string]string
	seqNames []string
}

// seqName extracts the sequence name from a header line, '>' included.
func seqName(header string) (string, error) {
	fields := strings.Fields(header[1:])
	if len(fields) == 0 {
		return "", errors.Errorf("header %q has no sequence name", header)
	}
	return fields[0], nil
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader) (Fasta, error) {
	f := &fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var (
		name string
		seq  strings.Builder
	)
	store := func() {
		if name != "" {
			f.seqs[name] = seq.String()
			f.seqNames = append(f.seqNames, name)
		}
		seq.Reset()
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			store()
			var err error
			if name, err = seqName(line); err != nil {
				return nil, err
			}
			if _, ok := f.seqs[name]; ok {
				return nil, errors.Errorf("duplicate sequence name %s", name)
			}
			continue
		}
		if name == "" {
			return nil, errors.Errorf("malformed FASTA file: sequence data before the first header")
		}
		seq.WriteString(line)
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	store()
	return f, nil
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", fmt.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Record implements Fasta.Record().
func (f *fasta) Record(seqName string) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	return s, nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seq string) (uint64, error) {
	s, ok := f.seqs[seq]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seq)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
