// Package abundance reads per-feature abundance tables. A table starts
// with any number of '#' comment lines, followed by a tab-delimited table
// with a header row. The header must include "pbid" and the selected count
// field; other columns are ignored.
//
//   # total number of FL reads: 1000
//   pbid	count_fl	norm_fl
//   PB.1.1	5	5.0000e-03
package abundance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Field selects the count column to read.
type Field string

const (
	// CountFL is the raw full-length read count.
	CountFL Field = "count_fl"
	// NormFL is the full-length count normalized by total full-length reads.
	NormFL Field = "norm_fl"
)

// Fields lists the supported count fields.
var Fields = []Field{NormFL, CountFL}

// ParseField parses a field name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown count field %q, must be one of %v", s, Fields)
}

// Table is a parsed abundance table.
type Table struct {
	// Header is the concatenation of the leading comment lines.
	Header string
	// IDs lists feature ids in file order.
	IDs []string
	// Values maps feature id to the selected field's value, verbatim.
	Values map[string]string
}

// lineSource is a line reader with one line of lookahead.
type lineSource struct {
	r      *bufio.Reader
	line   string
	peeked bool
	err    error
}

// peek returns the next line without consuming it, including its trailing
// newline. It returns io.EOF when the input is exhausted.
func (s *lineSource) peek() (string, error) {
	if !s.peeked && s.err == nil {
		s.line, s.err = s.r.ReadString('\n')
		if s.err == io.EOF && s.line != "" {
			s.err = nil
		}
		s.peeked = true
	}
	return s.line, s.err
}

// next consumes the peeked line.
func (s *lineSource) next() {
	s.peeked = false
	s.line = ""
}

// rest returns a reader over the unconsumed input.
func (s *lineSource) rest() io.Reader {
	if s.peeked && s.err == nil {
		return io.MultiReader(strings.NewReader(s.line), s.r)
	}
	return s.r
}

// skipComments consumes the leading run of '#' lines and returns them
// concatenated, stripped of line terminators.
func (s *lineSource) skipComments() (string, error) {
	var header strings.Builder
	for {
		line, err := s.peek()
		if err == io.EOF {
			return header.String(), nil
		}
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(line, "#") {
			return header.String(), nil
		}
		header.WriteString(strings.TrimRight(line, "\r\n"))
		s.next()
	}
}

type idRow struct {
	PBID string `tsv:"pbid"`
}

type countFLRow struct {
	PBID  string `tsv:"pbid"`
	Value string `tsv:"count_fl"`
}

type normFLRow struct {
	PBID  string `tsv:"pbid"`
	Value string `tsv:"norm_fl"`
}

// rowFunc reads the next row of a table as (pbid, value).
type rowFunc func(tr *tsv.Reader) (id, value string, err error)

func rowReader(field Field) (rowFunc, error) {
	switch field {
	case "":
		return func(tr *tsv.Reader) (string, string, error) {
			var row idRow
			err := tr.Read(&row)
			return row.PBID, "", err
		}, nil
	case CountFL:
		return func(tr *tsv.Reader) (string, string, error) {
			var row countFLRow
			err := tr.Read(&row)
			return row.PBID, row.Value, err
		}, nil
	case NormFL:
		return func(tr *tsv.Reader) (string, string, error) {
			var row normFLRow
			err := tr.Read(&row)
			return row.PBID, row.Value, err
		}, nil
	}
	return nil, errors.Errorf("unsupported count field %q", field)
}

// Read parses an abundance table from r, keeping the given field. An empty
// field reads only the pbid column, leaving Values empty.
func Read(r io.Reader, field Field) (*Table, error) {
	readRow, err := rowReader(field)
	if err != nil {
		return nil, err
	}
	src := &lineSource{r: bufio.NewReaderSize(r, 64<<10)}
	header, err := src.skipComments()
	if err != nil {
		return nil, errors.Wrap(err, "read abundance header")
	}
	if _, err := src.peek(); err == io.EOF {
		return nil, errors.New("abundance table has no header row")
	}

	t := &Table{Header: header, Values: map[string]string{}}
	tr := tsv.NewReader(src.rest())
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	seen := map[string]bool{}
	for n := 1; ; n++ {
		id, value, err := readRow(tr)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "abundance row %d", n)
		}
		if seen[id] {
			return nil, errors.Errorf("abundance row %d: duplicate pbid %s", n, id)
		}
		seen[id] = true
		t.IDs = append(t.IDs, id)
		if field != "" {
			t.Values[id] = value
		}
	}
	return t, nil
}

// ReadFile reads the abundance table at path. Compressed files are
// decompressed based on their extension.
func ReadFile(ctx context.Context, path string, field Field) (t *Table, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if t, err = Read(r, field); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return t, nil
}

// ReadIDs returns the pbid column of the table at path, in file order.
func ReadIDs(ctx context.Context, path string) ([]string, error) {
	t, err := ReadFile(ctx, path, "")
	if err != nil {
		return nil, err
	}
	return t.IDs, nil
}
