// Package fastq reads and writes the representative-sequence FASTQ files
// that accompany collapsed transcript models. Each record's ID line names
// the feature it represents: the feature id is the first whitespace token
// after '@', up to the first '|'.
package fastq

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	perrors "github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// maxLineLen bounds a single FASTQ line. Full-length transcripts are far
// longer than short reads, so the bufio.Scanner default is too small.
const maxLineLen = 16 << 20

// A Read is a FASTQ record, comprising an ID line (including the leading
// '@'), sequence, line 3 ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// FeatureID returns the feature id encoded in the read's ID line.
func (r *Read) FeatureID() string {
	return FeatureID(r.ID)
}

// FeatureID extracts the feature id from a FASTQ ID line. The leading '@'
// is optional.
func FeatureID(idLine string) string {
	id := strings.TrimPrefix(idLine, "@")
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	if i := strings.IndexByte(id, '|'); i >= 0 {
		id = id[:i]
	}
	return id
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records one at a time. It requires ID lines to begin
// with "@" and line 3 to begin with "+". Scanners are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineLen)
	return &Scanner{b: b}
}

// Scan the next record into read. Scan returns false at EOF or on error;
// once it returns false it never returns true again. Check Err afterwards.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Text()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID = id
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	unk := f.b.Text()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	read.Unk = unk
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// ReadAll reads every record of the FASTQ file at path, keyed by feature
// id. Compressed files are decompressed based on their extension.
func ReadAll(ctx context.Context, path string) (map[string]Read, error) {
	reads := map[string]Read{}
	err := scanFile(ctx, path, func(r *Read) error {
		reads[r.FeatureID()] = *r
		return nil
	})
	return reads, err
}

// ReadFeatureIDs returns the feature ids of the records in path, in file
// order.
func ReadFeatureIDs(ctx context.Context, path string) ([]string, error) {
	var ids []string
	err := scanFile(ctx, path, func(r *Read) error {
		ids = append(ids, r.FeatureID())
		return nil
	})
	return ids, err
}

func scanFile(ctx context.Context, path string, fn func(r *Read) error) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return perrors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	sc := NewScanner(r)
	var read Read
	for sc.Scan(&read) {
		if err = fn(&read); err != nil {
			return err
		}
	}
	if err = sc.Err(); err != nil {
		return perrors.Wrapf(err, "read %s", path)
	}
	return nil
}
