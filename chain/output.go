package chain

import (
	"context"
	"hash"
	"io"
	"path/filepath"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Names of the final outputs.
const (
	IDsOutput    = "all_samples.chained_ids.txt"
	CountsOutput = "all_samples.chained_count.txt"
	GFFOutput    = "all_samples.chained.gff"
	FASTQOutput  = "all_samples.chained.rep.fq"
)

// matrix is one output table together with a running checksum of the
// bytes written to it.
type matrix struct {
	f   file.File
	sum hash.Hash64
	w   *tsv.Writer
}

func createMatrix(ctx context.Context, path string, chain []string) (*matrix, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	m := &matrix{f: f, sum: seahash.New()}
	m.w = tsv.NewWriter(io.MultiWriter(f.Writer(ctx), m.sum))
	m.w.WriteString("superPBID")
	for _, name := range chain {
		m.w.WriteString(name)
	}
	if err := m.w.EndLine(); err != nil {
		f.Discard(ctx)
		return nil, errors.E(err, "write", path)
	}
	return m, nil
}

// Checksums are the seahash sums of the two matrices written by a
// ResultWriter.
type Checksums struct {
	IDs, Counts uint64
}

// ResultWriter writes the id and count matrices. Neither file is visible
// under its final name until Close succeeds.
type ResultWriter struct {
	ids, counts *matrix
	nRows       int
}

// NewResultWriter creates the matrices in dir with one column per sample
// of chain.
func NewResultWriter(ctx context.Context, dir string, chain []string) (*ResultWriter, error) {
	ids, err := createMatrix(ctx, filepath.Join(dir, IDsOutput), chain)
	if err != nil {
		return nil, err
	}
	counts, err := createMatrix(ctx, filepath.Join(dir, CountsOutput), chain)
	if err != nil {
		ids.f.Discard(ctx)
		return nil, err
	}
	return &ResultWriter{ids: ids, counts: counts}, nil
}

// Write appends one row to both matrices.
func (w *ResultWriter) Write(row *FinalRow) error {
	w.ids.w.WriteString(row.ID)
	w.counts.w.WriteString(row.ID)
	for _, s := range row.Slots {
		w.ids.w.WriteString(s.IDString())
		w.counts.w.WriteString(s.CountString())
	}
	if err := w.ids.w.EndLine(); err != nil {
		return err
	}
	w.nRows++
	return w.counts.w.EndLine()
}

// Rows returns the number of rows written so far.
func (w *ResultWriter) Rows() int { return w.nRows }

// Close flushes and publishes both matrices and returns their checksums.
func (w *ResultWriter) Close(ctx context.Context) (Checksums, error) {
	var e errors.Once
	for _, m := range []*matrix{w.ids, w.counts} {
		if err := m.w.Flush(); err != nil {
			e.Set(err)
		}
		e.Set(m.f.Close(ctx))
	}
	return Checksums{IDs: w.ids.sum.Sum64(), Counts: w.counts.sum.Sum64()}, e.Err()
}

// Discard abandons both matrices without publishing them.
func (w *ResultWriter) Discard(ctx context.Context) {
	w.ids.f.Discard(ctx)
	w.counts.f.Discard(ctx)
}

// CopyArtifacts copies the final model's GFF, and its FASTQ when
// withFASTQ is set, to their output names in dir.
func CopyArtifacts(ctx context.Context, final ModelFiles, dir string, withFASTQ bool) error {
	if err := copyFile(ctx, final.GFF, filepath.Join(dir, GFFOutput)); err != nil {
		return err
	}
	if !withFASTQ {
		return nil
	}
	if final.FASTQ == "" {
		return errors.E(errors.Integrity, "final model", final.GFF, "has no FASTQ file")
	}
	return copyFile(ctx, final.FASTQ, filepath.Join(dir, FASTQOutput))
}

func copyFile(ctx context.Context, src, dst string) (err error) {
	in, err := file.Open(ctx, src)
	if err != nil {
		return errors.E(err, "open", src)
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, dst)
	if err != nil {
		return errors.E(err, "create", dst)
	}
	if _, err = io.Copy(out.Writer(ctx), in.Reader(ctx)); err != nil {
		out.Discard(ctx)
		return errors.E(err, "copy", src, "to", dst)
	}
	if err = out.Close(ctx); err != nil {
		return errors.E(err, "close", dst)
	}
	log.Printf("wrote %s", dst)
	return nil
}
