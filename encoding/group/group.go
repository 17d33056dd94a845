// Package group reads and writes group files, which map each collapsed
// feature to the reads it was built from. Each line is
//
//   <feature id>\t<member>,<member>,...
//
// Only the first whitespace-delimited token is required; a line without a
// member list denotes a feature with no recorded members.
package group

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

const maxLineLen = 64 << 20

// Groups maps feature ids to their members. IDs preserves file order.
type Groups struct {
	IDs     []string
	Members map[string][]string
}

// Read parses a group file from r. Duplicate feature ids are an error.
func Read(r io.Reader) (*Groups, error) {
	g := &Groups{Members: map[string][]string{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineLen)
	for n := 1; sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		id := fields[0]
		if _, ok := g.Members[id]; ok {
			return nil, errors.Errorf("group line %d: duplicate id %s", n, id)
		}
		var members []string
		if len(fields) > 1 {
			members = strings.Split(fields[1], ",")
		}
		g.IDs = append(g.IDs, id)
		g.Members[id] = members
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read group file")
	}
	return g, nil
}

// ReadFile reads the group file at path. Compressed files are
// decompressed based on their extension.
func ReadFile(ctx context.Context, path string) (g *Groups, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if g, err = Read(r); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return g, nil
}

// Prefixed returns members with "<prefix>|" prepended to each.
func Prefixed(prefix string, members []string) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = prefix + "|" + m
	}
	return out
}

// Writer writes group files.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter creates a Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes one feature and its members. Errors are sticky.
func (w *Writer) Write(id string, members []string) error {
	if w.err != nil {
		return w.err
	}
	if _, w.err = w.w.WriteString(id); w.err != nil {
		return w.err
	}
	if _, w.err = w.w.WriteString("\t" + strings.Join(members, ",") + "\n"); w.err != nil {
		return w.err
	}
	return nil
}

// Flush flushes buffered output.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}
