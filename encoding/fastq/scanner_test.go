package fastq

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const fq = `@PB.1.1|chr1:100-500(+)|transcript/11 full_length_coverage=3
ACGTACGTAC
+
IIIIIIIIII
@PB.1.2|chr1:120-500(+)|transcript/12
GGGTTTAAAC
+
IIIIIIIIII
@PB.2.1 desc
TTTT
+
IIII
`

func stringScanner(s string) *Scanner {
	return NewScanner(bytes.NewReader([]byte(s)))
}

func scanErr(s string) error {
	scan := stringScanner(s)
	var r Read
	for scan.Scan(&r) {
	}
	return scan.Err()
}

func TestFASTQ(t *testing.T) {
	s := stringScanner(fq)
	var r Read
	if !s.Scan(&r) {
		t.Fatal(s.Err())
	}
	wantRead := Read{
		ID:   "@PB.1.1|chr1:100-500(+)|transcript/11 full_length_coverage=3",
		Seq:  "ACGTACGTAC",
		Unk:  "+",
		Qual: "IIIIIIIIII",
	}
	if got, want := r, wantRead; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := r.FeatureID(), "PB.1.1"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var n int
	for s.Scan(&r) {
		n++
	}
	if got, want := n, 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := s.Err(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestFeatureID(t *testing.T) {
	for _, test := range []struct {
		line, want string
	}{
		{"@PB.1.1", "PB.1.1"},
		{"PB.1.1", "PB.1.1"},
		{"@PB.1.1|chr1:1-2(+)", "PB.1.1"},
		{"@PB.3.2 PB.1.1", "PB.3.2"},
		{"@PB.3.2\tx|y", "PB.3.2"},
	} {
		expect.EQ(t, FeatureID(test.line), test.want, "line %q", test.line)
	}
}

func TestBadFASTQ(t *testing.T) {
	if got, want := scanErr("12312#"), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\n123"), ErrShort; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := scanErr("@1234\nACGT\n-\nIIII\n"), ErrInvalid; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWriter(t *testing.T) {
	var (
		s = stringScanner(fq)
		b = new(bytes.Buffer)
		w = NewWriter(b)
		r Read
	)
	for s.Scan(&r) {
		if err := w.Write(&r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	assert.NoError(t, w.Flush())
	if got, want := b.String(), fq; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWriteAs(t *testing.T) {
	b := new(bytes.Buffer)
	w := NewWriter(b)
	r := Read{ID: "@PB.1.1|x", Seq: "AC", Unk: "+", Qual: "II"}
	assert.NoError(t, w.WriteAs(&r, "PB.7.1", "PB.1.1"))
	assert.NoError(t, w.Flush())
	expect.EQ(t, b.String(), "@PB.7.1 PB.1.1\nAC\n+\nII\n")
	expect.EQ(t, r.ID, "@PB.1.1|x")
}

func TestReadFeatureIDs(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "rep.fq")
	assert.NoError(t, ioutil.WriteFile(path, []byte(fq), 0644))

	ctx := context.Background()
	ids, err := ReadFeatureIDs(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, ids, []string{"PB.1.1", "PB.1.2", "PB.2.1"})

	reads, err := ReadAll(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, len(reads), 3)
	expect.EQ(t, reads["PB.2.1"].Seq, "TTTT")

	_, err = ReadFeatureIDs(ctx, filepath.Join(tmpdir, "missing.fq"))
	expect.True(t, err != nil)
}

func TestIndexedReader(t *testing.T) {
	r, err := NewIndexedReader(strings.NewReader(fq))
	assert.NoError(t, err)
	expect.EQ(t, r.Keys(), []string{"PB.1.1", "PB.1.2", "PB.2.1"})
	expect.True(t, r.Has("PB.1.2"))
	expect.False(t, r.Has("PB.9.9"))

	// Out-of-order access must seek correctly.
	for _, id := range []string{"PB.2.1", "PB.1.1", "PB.1.2"} {
		read, err := r.Get(id)
		assert.NoError(t, err)
		expect.EQ(t, read.FeatureID(), id)
	}
	read, err := r.Get("PB.1.2")
	assert.NoError(t, err)
	expect.EQ(t, read.Seq, "GGGTTTAAAC")

	_, err = r.Get("PB.9.9")
	expect.True(t, err != nil)
}

func TestIndexedReaderErrors(t *testing.T) {
	_, err := NewIndexedReader(strings.NewReader(fq + fq))
	expect.HasSubstr(t, err.Error(), "duplicate id PB.1.1")

	_, err = NewIndexedReader(strings.NewReader("@a\nAC\n+\n"))
	expect.EQ(t, err, ErrShort)

	// No trailing newline is fine.
	r, err := NewIndexedReader(strings.NewReader("@a\nAC\n+\nII"))
	assert.NoError(t, err)
	read, err := r.Get("a")
	assert.NoError(t, err)
	expect.EQ(t, read.Qual, "II")
}
