package chain

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// NA marks an absent id in step tables and output matrices.
const NA = "NA"

// Attribution is one side of a step-table row: the id a merged feature
// descends from, if any.
type Attribution struct {
	ID      string
	Present bool
}

// Attr returns the attribution for a step-table cell.
func Attr(cell string) Attribution {
	if cell == NA || cell == "" {
		return Attribution{}
	}
	return Attribution{ID: cell, Present: true}
}

func (a Attribution) String() string {
	if !a.Present {
		return NA
	}
	return a.ID
}

// StepRow is one merged feature of a merge step.
type StepRow struct {
	// ID is the merged feature id.
	ID string
	// Cumulative is the id in the model the sample was added to.
	Cumulative Attribution
	// Added is the id in the added sample's own model.
	Added Attribution
}

// StepTable records, for one merge step, which ids each merged feature
// descends from. Its header is "pbid", the alias of the model the sample
// was added to, and the added sample's name.
type StepTable struct {
	// Alias names the model produced by the step.
	Alias string
	// CumulativeName and AddedName are the step table's column names.
	CumulativeName, AddedName string
	Rows                      []StepRow
	index                     map[string]int
}

// NewStepTable creates an empty step table.
func NewStepTable(alias, cumulativeName, addedName string) *StepTable {
	return &StepTable{
		Alias:          alias,
		CumulativeName: cumulativeName,
		AddedName:      addedName,
		index:          map[string]int{},
	}
}

// Add appends a row. Merged ids must be unique.
func (t *StepTable) Add(row StepRow) error {
	if _, ok := t.index[row.ID]; ok {
		return errors.Errorf("%s: duplicate merged id %s", t.Alias, row.ID)
	}
	t.index[row.ID] = len(t.Rows)
	t.Rows = append(t.Rows, row)
	return nil
}

// Row returns the row for merged id.
func (t *StepTable) Row(id string) (StepRow, bool) {
	i, ok := t.index[id]
	if !ok {
		return StepRow{}, false
	}
	return t.Rows[i], true
}

// stepLine is a step-table data row.
type stepLine struct {
	PBID, Cumulative, Added string
}

// ReadStepTable parses a step table.
func ReadStepTable(r io.Reader, alias string) (*StepTable, error) {
	tr := tsv.NewReader(r)
	header, err := tr.Reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.Errorf("%s: empty step table", alias)
		}
		return nil, errors.Wrapf(err, "%s: read header", alias)
	}
	if len(header) != 3 || header[0] != "pbid" {
		return nil, errors.Errorf("%s: malformed step table header %q", alias, header)
	}
	t := NewStepTable(alias, header[1], header[2])
	for {
		var l stepLine
		if err := tr.Read(&l); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "%s: read row %d", alias, len(t.Rows)+1)
		}
		if err := t.Add(StepRow{ID: l.PBID, Cumulative: Attr(l.Cumulative), Added: Attr(l.Added)}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ReadStepTableFile reads the step table at path.
func ReadStepTableFile(ctx context.Context, path, alias string) (t *StepTable, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return ReadStepTable(r, alias)
}

// StepTableWriter writes a step table.
type StepTableWriter struct {
	w *tsv.Writer
}

// NewStepTableWriter writes the header of a step table with the given
// column names to w.
func NewStepTableWriter(w io.Writer, cumulativeName, addedName string) (*StepTableWriter, error) {
	tw := tsv.NewWriter(w)
	tw.WriteString("pbid")
	tw.WriteString(cumulativeName)
	tw.WriteString(addedName)
	if err := tw.EndLine(); err != nil {
		return nil, err
	}
	return &StepTableWriter{w: tw}, nil
}

// Write writes one row.
func (w *StepTableWriter) Write(row StepRow) error {
	w.w.WriteString(row.ID)
	w.w.WriteString(row.Cumulative.String())
	w.w.WriteString(row.Added.String())
	return w.w.EndLine()
}

// Flush flushes buffered output.
func (w *StepTableWriter) Flush() error { return w.w.Flush() }

// Slot is one sample's entry of a final row: either a resolved feature id
// with its count, or absent.
type Slot struct {
	ID, Count string
	Resolved  bool
}

// Absent is the slot of a sample without a corresponding feature.
var Absent = Slot{}

// Resolved returns a resolved slot.
func Resolved(id, count string) Slot { return Slot{ID: id, Count: count, Resolved: true} }

// IDString returns the slot's id, or NA.
func (s Slot) IDString() string {
	if !s.Resolved {
		return NA
	}
	return s.ID
}

// CountString returns the slot's count, or NA.
func (s Slot) CountString() string {
	if !s.Resolved {
		return NA
	}
	return s.Count
}

func (s Slot) String() string {
	if !s.Resolved {
		return NA
	}
	return fmt.Sprintf("%s(%s)", s.ID, s.Count)
}

// FinalRow is one feature of the final merged model, with one slot per
// sample in chain order.
type FinalRow struct {
	ID    string
	Slots []Slot
}

// resolve fills the slot of sample from a step-table attribution.
func resolve(counts *CountIndex, sample string, a Attribution) (Slot, error) {
	if !a.Present {
		return Absent, nil
	}
	count, ok := counts.Lookup(sample, a.ID)
	if !ok {
		return Absent, provenanceDefectf("no %s count for %s in sample %s", counts.Field(), a.ID, sample)
	}
	return Resolved(a.ID, count), nil
}

// Reconstruct rebuilds one row per feature of the last step table.
// steps[k-1] is the table of the step that added chain[k], so
// len(steps) == len(chain)-1 and chain must have at least two samples.
// Each table's columns must name the model and sample of its step.
// Rows are passed to emit in the order of the last table; the row is
// reused between calls.
//
// The walk goes backwards from the last step. The last sample is resolved
// from the row's added side. Then, for each earlier position k > 0, the
// current row's cumulative side is looked up in the table of step k,
// position k is resolved from that row's added side, and the walk
// continues from it. Position 0 is resolved from the cumulative side of
// the last row reached. If a cumulative side is absent the walk stops
// there: every earlier position stays Absent, even if a later step could
// in principle have matched it.
func Reconstruct(chain []string, steps []*StepTable, counts *CountIndex, emit func(*FinalRow) error) error {
	n := len(chain)
	if n < 2 || len(steps) != n-1 {
		return errors.Errorf("reconstruct: %d samples need %d step tables, got %d", n, n-1, len(steps))
	}
	for k := 1; k < n; k++ {
		want := IntermediatePrefix + chain[k-1]
		if k == 1 {
			want = chain[0]
		}
		if t := steps[k-1]; t.CumulativeName != want || t.AddedName != chain[k] {
			return provenanceDefectf("%s: step table columns %s, %s do not match chain columns %s, %s",
				t.Alias, t.CumulativeName, t.AddedName, want, chain[k])
		}
	}
	row := &FinalRow{Slots: make([]Slot, n)}
	for _, r0 := range steps[n-2].Rows {
		for i := range row.Slots {
			row.Slots[i] = Absent
		}
		row.ID = r0.ID
		var err error
		if row.Slots[n-1], err = resolve(counts, chain[n-1], r0.Added); err != nil {
			return err
		}
		r, broken := r0, false
		for k := n - 2; k >= 1; k-- {
			if !r.Cumulative.Present {
				broken = true
				break
			}
			prev, ok := steps[k-1].Row(r.Cumulative.ID)
			if !ok {
				return provenanceDefectf("%s: %s refers to %s, which is not in %s",
					steps[k].Alias, r.ID, r.Cumulative.ID, steps[k-1].Alias)
			}
			if row.Slots[k], err = resolve(counts, chain[k], prev.Added); err != nil {
				return err
			}
			r = prev
		}
		if !broken {
			if row.Slots[0], err = resolve(counts, chain[0], r.Cumulative); err != nil {
				return err
			}
		}
		if err := emit(row); err != nil {
			return err
		}
	}
	return nil
}

// ReconstructSingle emits one row per feature of a chain with one sample:
// the sample's own ids, each resolved to itself.
func ReconstructSingle(sample string, ids []string, counts *CountIndex, emit func(*FinalRow) error) error {
	row := &FinalRow{Slots: make([]Slot, 1)}
	for _, id := range ids {
		slot, err := resolve(counts, sample, Attribution{ID: id, Present: true})
		if err != nil {
			return err
		}
		row.ID = id
		row.Slots[0] = slot
		if err := emit(row); err != nil {
			return err
		}
	}
	return nil
}
