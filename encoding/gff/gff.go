// Package gff reads and writes collapsed transcript-model files. These are
// GTF-like: nine tab-separated columns, one "transcript" line per model
// followed by its "exon" lines, e.g.
//
//   chr1	PacBio	transcript	101	500	.	+	.	gene_id "PB.1"; transcript_id "PB.1.1";
//   chr1	PacBio	exon	101	200	.	+	.	gene_id "PB.1"; transcript_id "PB.1.1";
//   chr1	PacBio	exon	301	500	.	+	.	gene_id "PB.1"; transcript_id "PB.1.1";
//
// File coordinates are 1-based and closed. In memory they are 0-based and
// half-open.
package gff

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Exon is one exon of a transcript, [Start, End) 0-based.
type Exon struct {
	Start, End int
}

// Len returns the exon length.
func (e Exon) Len() int { return e.End - e.Start }

// Transcript is one collapsed transcript model.
type Transcript struct {
	Chrom  string
	Strand string
	// Start and End span all exons, 0-based half-open.
	Start, End int
	GeneID     string
	// ID is the transcript_id attribute, the feature id of the model.
	ID string
	// Exons are sorted by position.
	Exons []Exon
}

// Len returns the genomic span of the transcript.
func (t *Transcript) Len() int { return t.End - t.Start }

// line is one row of the file.
type line struct {
	Chrom   string
	Source  string
	Feature string
	Start   int
	End     int
	Score   string
	Strand  string
	Frame   string
	Attrs   string
}

// Read parses transcript models from r. Models are returned in order of
// first appearance. Lines other than "transcript" and "exon" are ignored.
func Read(r io.Reader) ([]*Transcript, error) {
	sc := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	sc.Comment = '#'
	sc.LazyQuotes = true

	var (
		ts    []*Transcript
		byID  = map[string]*Transcript{}
		attrs = map[string]string{}
		l     line
		n     int
	)
	get := func(id string) *Transcript {
		t, ok := byID[id]
		if !ok {
			t = &Transcript{ID: id, Chrom: l.Chrom, Strand: l.Strand, Start: -1}
			byID[id] = t
			ts = append(ts, t)
		}
		return t
	}
	for {
		if err := sc.Read(&l); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "gff line %d", n+1)
		}
		n++
		if l.Feature != "transcript" && l.Feature != "exon" {
			continue
		}
		if err := parseAttrs(attrs, l.Attrs); err != nil {
			return nil, errors.Wrapf(err, "gff line %d", n)
		}
		id := attrs["transcript_id"]
		if id == "" {
			return nil, errors.Errorf("gff line %d: missing transcript_id", n)
		}
		if l.Start < 1 || l.End < l.Start {
			return nil, errors.Errorf("gff line %d: bad interval %d-%d", n, l.Start, l.End)
		}
		t := get(id)
		if t.Chrom != l.Chrom || t.Strand != l.Strand {
			return nil, errors.Errorf("gff line %d: %s changes location to %s(%s)", n, id, l.Chrom, l.Strand)
		}
		if g := attrs["gene_id"]; g != "" {
			t.GeneID = g
		}
		switch l.Feature {
		case "transcript":
			t.Start, t.End = l.Start-1, l.End
		case "exon":
			t.Exons = append(t.Exons, Exon{l.Start - 1, l.End})
		}
	}
	for _, t := range ts {
		sort.Slice(t.Exons, func(i, j int) bool { return t.Exons[i].Start < t.Exons[j].Start })
		if len(t.Exons) == 0 {
			if t.Start < 0 {
				return nil, errors.Errorf("gff: %s has neither transcript nor exon lines", t.ID)
			}
			t.Exons = []Exon{{t.Start, t.End}}
		}
		if t.Start < 0 {
			t.Start, t.End = t.Exons[0].Start, t.Exons[len(t.Exons)-1].End
		}
	}
	return ts, nil
}

// parseAttrs parses the attribute column, `key "value"; key "value";`.
func parseAttrs(parsed map[string]string, s string) error {
	for k := range parsed {
		delete(parsed, k)
	}
	for _, field := range strings.Split(s, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, " ", 2)
		if len(kv) != 2 {
			return fmt.Errorf("malformed attribute %q", field)
		}
		parsed[kv[0]] = strings.Trim(strings.TrimSpace(kv[1]), "\"")
	}
	return nil
}

// ReadFile reads the transcript models in path. Compressed files are
// decompressed based on their extension.
func ReadFile(ctx context.Context, path string) (ts []*Transcript, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if ts, err = Read(r); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return ts, nil
}

// ReadIDs returns the transcript ids in path, in file order.
func ReadIDs(ctx context.Context, path string) ([]string, error) {
	ts, err := ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids, nil
}

// Writer writes transcript models.
type Writer struct {
	w *tsv.Writer
}

// NewWriter creates a Writer that writes to w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: tsv.NewWriter(w)}
}

// Write writes the transcript line and exon lines of t.
func (w *Writer) Write(t *Transcript) error {
	attrs := fmt.Sprintf("gene_id %q; transcript_id %q;", t.GeneID, t.ID)
	if err := w.writeLine(t, "transcript", t.Start, t.End, attrs); err != nil {
		return err
	}
	for _, e := range t.Exons {
		if err := w.writeLine(t, "exon", e.Start, e.End, attrs); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeLine(t *Transcript, feature string, start, end int, attrs string) error {
	w.w.WriteString(t.Chrom)
	w.w.WriteString("PacBio")
	w.w.WriteString(feature)
	w.w.WriteString(strconv.Itoa(start + 1))
	w.w.WriteString(strconv.Itoa(end))
	w.w.WriteString(".")
	w.w.WriteString(t.Strand)
	w.w.WriteString(".")
	w.w.WriteString(attrs)
	return w.w.EndLine()
}

// Flush flushes buffered output.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
