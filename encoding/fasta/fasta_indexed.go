package fasta

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

type indexedFasta struct {
	seqs      map[string]Entry
	seqNames  []string // returned by SeqNames()
	reader    io.ReadSeeker
	bufOff    int64
	buf       []byte // caches file contents starting at bufOff.
	resultBuf []byte // temp for concatenating multi-line sequences.
	mutex     sync.Mutex
}

func newIndexed(in io.ReadSeeker, entries []Entry) (*indexedFasta, error) {
	f := &indexedFasta{seqs: make(map[string]Entry, len(entries)), reader: in}
	for _, e := range entries {
		if _, ok := f.seqs[e.Name]; ok {
			return nil, errors.Errorf("duplicate sequence name %s", e.Name)
		}
		f.seqs[e.Name] = e
		f.seqNames = append(f.seqNames, e.Name)
	}
	sort.SliceStable(f.seqNames, func(i, j int) bool {
		return f.seqs[f.seqNames[i]].Offset < f.seqs[f.seqNames[j]].Offset
	})
	return f, nil
}

// NewIndexed creates a new Fasta that can perform efficient random lookups
// using the provided .fai index, without reading the data into memory.
func NewIndexed(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	entries, err := ReadIndex(index)
	if err != nil {
		return nil, err
	}
	return newIndexed(fasta, entries)
}

// NewLazy indexes fasta in one pass and returns a Fasta that reads
// sequences from it on demand. Unlike NewIndexed it needs no .fai file and
// accepts lines of uneven width.
func NewLazy(fasta io.ReadSeeker) (Fasta, error) {
	if _, err := fasta.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	entries, err := BuildIndex(fasta)
	if err != nil {
		return nil, err
	}
	return newIndexed(fasta, entries)
}

// Open opens the FASTA file at path. Uncompressed files are indexed and
// read lazily; compressed ones are loaded into memory. The returned function
// closes the file.
func Open(ctx context.Context, path string) (Fasta, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	closer := func() error { return in.Close(ctx) }
	var f Fasta
	if u := compress.NewReaderPath(in.Reader(ctx), in.Name()); u != nil {
		f, err = New(u)
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
		closer = func() error { return nil }
	} else {
		f, err = NewLazy(in.Reader(ctx))
	}
	if err != nil {
		_ = closer()
		return nil, nil, errors.Wrapf(err, "read %s", path)
	}
	return f, closer, nil
}

// Len implements Fasta.Len().
func (f *indexedFasta) Len(seqName string) (uint64, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return ent.Length, nil
}

// Read range [off, off+n) from the underlying fasta file.
func (f *indexedFasta) read(off int64, n int) ([]byte, error) {
	limit := off + int64(n)
	if off < f.bufOff || limit > f.bufOff+int64(len(f.buf)) {
		if newOffset, err := f.reader.Seek(off, io.SeekStart); err != nil || newOffset != off {
			return nil, errors.Errorf("failed to seek to offset %d: %d, %v", off, newOffset, err)
		}
		bufSize := 8192
		if bufSize < n {
			bufSize = n
		}
		f.resizeBuf(&f.buf, bufSize)
		bytesRead, err := io.ReadAtLeast(f.reader, f.buf, n)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, errors.Errorf("encountered unexpected end of file (bad index? file doesn't end in newline?)")
		}
		if err != nil {
			return nil, err
		}
		f.bufOff = off
		f.buf = f.buf[:bytesRead]
	}
	return f.buf[off-f.bufOff : limit-f.bufOff], nil
}

func (f *indexedFasta) resizeBuf(buf *[]byte, n int) {
	if cap(*buf) < n {
		*buf = make([]byte, n)
	} else {
		*buf = (*buf)[0:n]
	}
}

// Get implements Fasta.Get().
func (f *indexedFasta) Get(seqName string, start uint64, end uint64) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	ent, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if end > ent.Length {
		return "", errors.Errorf("end is past end of sequence %s: %d", seqName, ent.Length)
	}
	if ent.ragged() {
		seq, err := f.record(ent)
		if err != nil {
			return "", err
		}
		return seq[start:end], nil
	}

	// Start the read at a byte offset allowing for the presence of newline
	// characters.
	charsPerNewline := ent.LineWidth - ent.LineBases
	offset := ent.Offset + start + charsPerNewline*(start/ent.LineBases)

	// Figure out how many characters (including newlines) we should read,
	// and read them.
	firstLineBases := ent.LineBases - (start % ent.LineBases)
	newlinesToRead := uint64(0)
	if end-start > firstLineBases {
		newlinesToRead = 1 + (end-start-firstLineBases-1)/ent.LineBases
	}
	capacity := end - start + newlinesToRead*charsPerNewline

	buffer, err := f.read(int64(offset), int(capacity))
	if err != nil {
		return "", err
	}

	// Traverse the bytes we just read and copy the non-newline characters
	// to the result.
	f.resizeBuf(&f.resultBuf, int(end-start))
	linePos := (offset - ent.Offset) % ent.LineWidth
	resultPos := 0
	for i := range buffer {
		if linePos < ent.LineBases {
			f.resultBuf[resultPos] = buffer[i]
			resultPos++
		}
		linePos++
		if linePos == ent.LineWidth {
			linePos = 0
		}
	}
	return string(f.resultBuf), nil
}

// Record implements Fasta.Record().
func (f *indexedFasta) Record(seqName string) (string, error) {
	ent, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if ent.Length == 0 {
		return "", nil
	}
	if !ent.ragged() {
		return f.Get(seqName, 0, ent.Length)
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.record(ent)
}

// record reads a sequence whose lines are of uneven width by stripping
// line ends from its bytes. Requires f.mutex.
func (f *indexedFasta) record(ent Entry) (string, error) {
	buffer, err := f.read(int64(ent.Offset), int(ent.Size))
	if err != nil {
		return "", err
	}
	seq := make([]byte, 0, ent.Length)
	for _, b := range buffer {
		if b != '\n' && b != '\r' {
			seq = append(seq, b)
		}
	}
	if uint64(len(seq)) != ent.Length {
		return "", errors.Errorf("sequence %s: read %d bases, index has %d", ent.Name, len(seq), ent.Length)
	}
	return string(seq), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *indexedFasta) SeqNames() []string {
	return f.seqNames
}
