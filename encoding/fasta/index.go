package fasta

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Index files consist of one tab-separated line per sequence in the associated
// FASTA file.  The format is: "<sequence name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>".
// For example: "chr3\t12345\t9000\t80\t81".
var indexRegExp = regexp.MustCompile(`^(\S+)\t(\d+)\t(\d+)\t(\d+)\t(\d+)$`)

// Entry locates one sequence in a FASTA file.
type Entry struct {
	Name string
	// Length is the number of bases.
	Length uint64
	// Offset is the byte offset of the first base.
	Offset uint64
	// LineBases and LineWidth are the bases and bytes per line. Both are
	// zero if the sequence's lines are of uneven width.
	LineBases, LineWidth uint64
	// Size is the number of bytes from Offset to the next header or the end
	// of the file. It is zero for entries read from a .fai index.
	Size uint64
}

func (e Entry) ragged() bool { return e.Length > 0 && e.LineBases == 0 }

// BuildIndex scans a FASTA file once and returns the location of every
// sequence, in file order. Lines of a sequence may have any width.
// Duplicate sequence names are an error.
func BuildIndex(in io.Reader) ([]Entry, error) {
	var (
		r       = bufio.NewReader(in)
		entries []Entry
		seen    = map[string]bool{}
		cur     *Entry
		off     uint64
		short   bool // a line shorter than LineBases has been seen
		ragged  bool
	)
	finish := func(end uint64) {
		if cur == nil {
			return
		}
		cur.Size = end - cur.Offset
		if ragged {
			cur.LineBases, cur.LineWidth = 0, 0
		}
		entries = append(entries, *cur)
	}
	for {
		fullLine, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if len(fullLine) == 0 {
			break
		}
		lineOff := off
		off += uint64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		switch {
		case len(line) > 0 && line[0] == '>':
			finish(lineOff)
			name, err := seqName(string(line))
			if err != nil {
				return nil, err
			}
			if seen[name] {
				return nil, errors.Errorf("duplicate sequence name %s", name)
			}
			seen[name] = true
			cur = &Entry{Name: name, Offset: off}
			short, ragged = false, false
		case cur == nil:
			if len(line) > 0 {
				return nil, errors.Errorf("malformed FASTA file: sequence data at offset %d before the first header", lineOff)
			}
		case len(line) == 0:
			short = true
		default:
			n, nl := uint64(len(line)), uint64(len(fullLine)-len(line))
			switch {
			case ragged:
			case short:
				ragged = true
			case cur.LineWidth == 0:
				cur.LineBases, cur.LineWidth = n, uint64(len(fullLine))
			case n > cur.LineBases, nl != 0 && nl != cur.LineWidth-cur.LineBases:
				ragged = true
			case n < cur.LineBases:
				short = true
			}
			cur.Length += n
		}
		if err == io.EOF {
			break
		}
	}
	if off == 0 {
		return nil, errors.New("empty FASTA file")
	}
	finish(off)
	return entries, nil
}

// GenerateIndex generates an index (*.fai) from FASTA.  The index can be later
// passed to NewIndexed() to random-access the FASTA file quickly.
//
// The index format is defined by "samtool faidx"
// (http://www.htslib.org/doc/faidx.html). It cannot describe sequences whose
// lines are of uneven width; those are an error.
func GenerateIndex(out io.Writer, in io.Reader) error {
	entries, err := BuildIndex(in)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(out)
	for _, e := range entries {
		if e.ragged() {
			return errors.Errorf("sequence %s: lines of uneven width cannot be indexed", e.Name)
		}
		w.WriteString(e.Name)
		w.WriteInt64(int64(e.Length))
		w.WriteInt64(int64(e.Offset))
		w.WriteInt64(int64(e.LineBases))
		w.WriteInt64(int64(e.LineWidth))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadIndex parses a .fai index.
func ReadIndex(index io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(index)
	for scanner.Scan() {
		matches := indexRegExp.FindStringSubmatch(scanner.Text())
		if len(matches) != 6 {
			return nil, errors.Errorf("invalid index line: %s", scanner.Text())
		}
		e := Entry{Name: matches[1]}
		for i, v := range []*uint64{&e.Length, &e.Offset, &e.LineBases, &e.LineWidth} {
			n, err := strconv.ParseUint(matches[i+2], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "index line %s", scanner.Text())
			}
			*v = n
		}
		if e.Length > 0 && (e.LineBases == 0 || e.LineWidth < e.LineBases) {
			return nil, errors.Errorf("invalid line layout in index line: %s", scanner.Text())
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read index")
	}
	return entries, nil
}
