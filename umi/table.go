package umi

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Columns of the input table.
const (
	GeneColumn = "gene"
	BCColumn   = "BC"
	UMIColumn  = "UMI"
)

// AddedColumns are appended to every output row.
var AddedColumns = []string{"BC_ed", "UMI_ed", "BC_match", "BC_top_rank"}

// Ranks maps short-read cell barcodes to whether they are top ranked.
// Short-read barcodes are the reverse complement of long-read ones.
type Ranks map[string]bool

// table is a tab-separated file with a header row, read without a fixed
// schema.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) column(name string) (int, error) {
	for i, h := range t.header {
		if h == name {
			return i, nil
		}
	}
	return -1, errors.Errorf("no %s column in header %q", name, t.header)
}

func readTable(r io.Reader) (*table, error) {
	tr := tsv.NewReader(r)
	tr.LazyQuotes = true
	var t table
	for {
		rec, err := tr.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", len(t.rows)+1)
		}
		row := append([]string(nil), rec...)
		if t.header == nil {
			t.header = row
			continue
		}
		t.rows = append(t.rows, row)
	}
	if t.header == nil {
		return nil, errors.New("empty table")
	}
	return &t, nil
}

// ReadRanks reads a short-read barcode rank table with columns
// cell_barcode and top_ranked (Y or N).
func ReadRanks(r io.Reader) (Ranks, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	bc, err := t.column("cell_barcode")
	if err != nil {
		return nil, err
	}
	top, err := t.column("top_ranked")
	if err != nil {
		return nil, err
	}
	ranks := Ranks{}
	for _, row := range t.rows {
		ranks[row[bc]] = row[top] == "Y"
	}
	return ranks, nil
}

// ReadRanksFile reads the rank table at path.
func ReadRanksFile(ctx context.Context, path string) (ranks Ranks, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if ranks, err = ReadRanks(r); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return ranks, nil
}

// Opts configures Correct.
type Opts struct {
	// Ranks, if set, is used to fill BC_match and BC_top_rank.
	Ranks Ranks
	// OnlyTopRanked drops rows whose barcode is not top ranked. It
	// requires Ranks.
	OnlyTopRanked bool
	// Threshold is the largest number of mismatches merged.
	Threshold int
}

// DefaultOpts merges values one mismatch apart.
var DefaultOpts = Opts{Threshold: 1}

// Stats counts what Correct did.
type Stats struct {
	Rows, Written     int
	BCFixed, UMIFixed int
}

// ordered groups row indices by key in order of first appearance.
type ordered struct {
	keys   []string
	groups map[string][]int
}

func groupBy(rows [][]string, idx []int, col int) *ordered {
	o := &ordered{groups: map[string][]int{}}
	for _, i := range idx {
		k := rows[i][col]
		if _, ok := o.groups[k]; !ok {
			o.keys = append(o.keys, k)
		}
		o.groups[k] = append(o.groups[k], i)
	}
	return o
}

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// Correct reads a table of reads with gene, BC, and UMI columns from in,
// corrects barcodes within each gene and then UMIs within each barcode,
// and writes the table to out with the corrected values added. Rows are
// written grouped by gene, then by original barcode, each in order of
// first appearance.
func Correct(in io.Reader, out io.Writer, opts Opts) (Stats, error) {
	var stats Stats
	if opts.OnlyTopRanked && opts.Ranks == nil {
		return stats, errors.New("keeping only top-ranked barcodes requires a rank table")
	}
	t, err := readTable(in)
	if err != nil {
		return stats, err
	}
	var cols [3]int
	for i, name := range []string{GeneColumn, BCColumn, UMIColumn} {
		if cols[i], err = t.column(name); err != nil {
			return stats, err
		}
	}
	geneCol, bcCol, umiCol := cols[0], cols[1], cols[2]
	stats.Rows = len(t.rows)

	w := tsv.NewWriter(out)
	for _, h := range append(append([]string(nil), t.header...), AddedColumns...) {
		w.WriteString(h)
	}
	if err := w.EndLine(); err != nil {
		return stats, err
	}
	all := make([]int, len(t.rows))
	for i := range all {
		all[i] = i
	}
	genes := groupBy(t.rows, all, geneCol)
	for _, gene := range genes.keys {
		idx := genes.groups[gene]
		bcs := make([]string, len(idx))
		for i, r := range idx {
			bcs[i] = t.rows[r][bcCol]
		}
		bcFix := ErrorCorrect(bcs, opts.Threshold)
		byBC := groupBy(t.rows, idx, bcCol)
		for _, bc := range byBC.keys {
			bcIdx := byBC.groups[bc]
			bcEd, fixed := bcFix[bc]
			if !fixed {
				bcEd = bc
			}
			umis := make([]string, len(bcIdx))
			for i, r := range bcIdx {
				umis[i] = t.rows[r][umiCol]
			}
			umiFix := ErrorCorrect(umis, opts.Threshold)
			top, match := opts.Ranks[ReverseComplement(bcEd)]
			top = top && match
			if opts.OnlyTopRanked && !top {
				continue
			}
			for _, r := range bcIdx {
				row := t.rows[r]
				umiEd, ok := umiFix[row[umiCol]]
				if ok {
					stats.UMIFixed++
				} else {
					umiEd = row[umiCol]
				}
				if fixed {
					stats.BCFixed++
				}
				for _, v := range row {
					w.WriteString(v)
				}
				w.WriteString(bcEd)
				w.WriteString(umiEd)
				w.WriteString(yn(match))
				w.WriteString(yn(top))
				if err := w.EndLine(); err != nil {
					return stats, err
				}
				stats.Written++
			}
		}
	}
	if err := w.Flush(); err != nil {
		return stats, err
	}
	log.Printf("umi: %d of %d rows written; %d barcodes and %d UMIs corrected",
		stats.Written, stats.Rows, stats.BCFixed, stats.UMIFixed)
	return stats, nil
}
