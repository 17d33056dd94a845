package isomerge

import (
	"sort"

	"github.com/biogo/store/interval"
	"github.com/grailbio/isochain/encoding/gff"
	"github.com/pkg/errors"
)

// locus identifies a chromosome strand.
type locus struct {
	chrom, strand string
}

// indexed is a transcript stored in an interval tree. uid is the
// transcript's position in the indexed slice.
type indexed struct {
	uid uintptr
	t   *gff.Transcript
}

func (e indexed) Overlap(b interval.IntRange) bool {
	return e.t.Start < b.End && b.Start < e.t.End
}
func (e indexed) ID() uintptr { return e.uid }
func (e indexed) Range() interval.IntRange {
	return interval.IntRange{Start: e.t.Start, End: e.t.End}
}

// span is a query range.
type span struct {
	start, end int
}

func (s span) Overlap(b interval.IntRange) bool {
	return s.start < b.End && b.Start < s.end
}

// index answers overlap queries over a fixed set of transcripts.
type index struct {
	trees map[locus]*interval.IntTree
}

func newIndex(ts []*gff.Transcript) (*index, error) {
	idx := &index{trees: map[locus]*interval.IntTree{}}
	for i, t := range ts {
		key := locus{t.Chrom, t.Strand}
		tree := idx.trees[key]
		if tree == nil {
			tree = &interval.IntTree{}
			idx.trees[key] = tree
		}
		if err := tree.Insert(indexed{uid: uintptr(i), t: t}, true); err != nil {
			return nil, errors.Wrapf(err, "index %s", t.ID)
		}
	}
	for _, tree := range idx.trees {
		tree.AdjustRanges()
	}
	return idx, nil
}

// overlapping returns the positions of the indexed transcripts that
// overlap t on its strand, in increasing order.
func (idx *index) overlapping(t *gff.Transcript) []int {
	tree := idx.trees[locus{t.Chrom, t.Strand}]
	if tree == nil {
		return nil
	}
	var hits []int
	for _, e := range tree.Get(span{t.Start, t.End}) {
		hits = append(hits, int(e.ID()))
	}
	sort.Ints(hits)
	return hits
}
