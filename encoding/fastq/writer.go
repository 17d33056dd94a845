package fastq

import (
	"bufio"
	"io"
)

// Writer is a buffered FASTQ writer. Call Flush when done.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter constructs a new FASTQ writer that writes reads to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes r in FASTQ format. Errors are sticky.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	return w.err
}

// WriteAs writes r under a new ID line "@<id> <desc>", leaving r unchanged.
// Merged models use it to rename a representative read while keeping the
// id it came from.
func (w *Writer) WriteAs(r *Read, id, desc string) error {
	renamed := *r
	renamed.ID = "@" + id
	if desc != "" {
		renamed.ID += " " + desc
	}
	if renamed.Unk == "" {
		renamed.Unk = "+"
	}
	return w.Write(&renamed)
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = w.w.WriteString(line); w.err == nil {
		w.err = w.w.WriteByte('\n')
	}
}
