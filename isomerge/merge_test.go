package isomerge

import (
	"testing"

	"github.com/grailbio/isochain/chain"
	"github.com/grailbio/isochain/encoding/gff"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestIndexOverlapping(t *testing.T) {
	ts := []*gff.Transcript{
		tx("PB.1.1", "chr1", "+", gff.Exon{Start: 100, End: 200}),
		tx("PB.1.2", "chr1", "+", gff.Exon{Start: 150, End: 400}),
		tx("PB.2.1", "chr1", "-", gff.Exon{Start: 100, End: 200}),
		tx("PB.3.1", "chr1", "+", gff.Exon{Start: 400, End: 500}),
		tx("PB.4.1", "chr2", "+", gff.Exon{Start: 100, End: 200}),
	}
	idx, err := newIndex(ts)
	assert.NoError(t, err)
	expect.EQ(t, idx.overlapping(tx("PB.9.1", "chr1", "+", gff.Exon{Start: 190, End: 400})), []int{0, 1})
	expect.EQ(t, idx.overlapping(tx("PB.9.1", "chr1", "+", gff.Exon{Start: 399, End: 401})), []int{1, 3})
	expect.EQ(t, idx.overlapping(tx("PB.9.1", "chr1", "-", gff.Exon{Start: 0, End: 1000})), []int{2})
	expect.EQ(t, len(idx.overlapping(tx("PB.9.1", "chr3", "+", gff.Exon{Start: 0, End: 1000}))), 0)
}

func TestBestMatch(t *testing.T) {
	cumulative := []*gff.Transcript{
		tx("PB.1.1", "chr1", "+", gff.Exon{Start: 100, End: 200}, gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 620}),
		tx("PB.1.2", "chr1", "+", gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 690}),
		tx("PB.1.3", "chr1", "+", gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 610}),
	}
	idx, err := newIndex(cumulative)
	assert.NoError(t, err)
	truncated := tx("PB.5.1", "chr1", "+", gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 600})

	opts := chain.DefaultMergeOpts
	// PB.1.2 and PB.1.3 are exact; PB.1.3 has the closer 3' end.
	expect.EQ(t, bestMatch(idx, cumulative, truncated, opts), 2)

	// Without the exact matches, the 5' merge into PB.1.1 remains.
	idx, err = newIndex(cumulative[:1])
	assert.NoError(t, err)
	expect.EQ(t, bestMatch(idx, cumulative[:1], truncated, opts), 0)
	opts.Allow5Merge = false
	expect.EQ(t, bestMatch(idx, cumulative[:1], truncated, opts), -1)
	opts.Allow5Merge = true
	opts.Max3Diff = 10
	expect.EQ(t, bestMatch(idx, cumulative[:1], truncated, opts), -1)
}

func TestBestMatchPrefersExact(t *testing.T) {
	cumulative := []*gff.Transcript{
		tx("PB.1.1", "chr1", "+", gff.Exon{Start: 100, End: 200}, gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 600}),
		tx("PB.1.2", "chr1", "+", gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 650}),
	}
	idx, err := newIndex(cumulative)
	assert.NoError(t, err)
	truncated := tx("PB.5.1", "chr1", "+", gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 600})
	expect.EQ(t, bestMatch(idx, cumulative, truncated, chain.DefaultMergeOpts), 1)
}

func TestMinusStrandThreePrime(t *testing.T) {
	// On the minus strand the 3' end is the leftmost exon.
	cumulative := []*gff.Transcript{
		tx("PB.1.1", "chr1", "-", gff.Exon{Start: 100, End: 200}, gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 600}),
	}
	idx, err := newIndex(cumulative)
	assert.NoError(t, err)
	opts := chain.DefaultMergeOpts
	fivePrimeShort := tx("PB.5.1", "chr1", "-", gff.Exon{Start: 120, End: 200}, gff.Exon{Start: 300, End: 400})
	expect.EQ(t, bestMatch(idx, cumulative, fivePrimeShort, opts), 0)
	threePrimeShort := tx("PB.5.2", "chr1", "-", gff.Exon{Start: 300, End: 400}, gff.Exon{Start: 500, End: 600})
	expect.EQ(t, bestMatch(idx, cumulative, threePrimeShort, opts), -1)
}

func TestMatch(t *testing.T) {
	cumulative := []*gff.Transcript{
		tx("PB.1.1", "chr1", "+", gff.Exon{Start: 100, End: 500}),
		tx("PB.2.1", "chr1", "+", gff.Exon{Start: 1000, End: 1500}),
	}
	added := []*gff.Transcript{
		tx("PB.7.1", "chr1", "+", gff.Exon{Start: 1000, End: 1520}),
		tx("PB.8.1", "chr2", "+", gff.Exon{Start: 1000, End: 1500}),
		tx("PB.8.2", "chr1", "+", gff.Exon{Start: 1100, End: 1500}),
	}
	pairs, err := match(cumulative, added, chain.DefaultMergeOpts)
	assert.NoError(t, err)
	ids := func(p pair) [2]string {
		var r [2]string
		if p.cumulative != nil {
			r[0] = p.cumulative.ID
		}
		if p.added != nil {
			r[1] = p.added.ID
		}
		return r
	}
	var got [][2]string
	for _, p := range pairs {
		got = append(got, ids(p))
	}
	expect.EQ(t, got, [][2]string{
		{"PB.2.1", "PB.7.1"},
		{"", "PB.8.1"},
		{"PB.2.1", "PB.8.2"},
		{"PB.1.1", ""},
	})
}

func TestRepresentative(t *testing.T) {
	long := tx("PB.1.1", "chr1", "+", gff.Exon{Start: 100, End: 500})
	short := tx("PB.2.1", "chr1", "+", gff.Exon{Start: 200, End: 500})
	same := tx("PB.3.1", "chr1", "+", gff.Exon{Start: 150, End: 550})
	rep, fromCumulative := pair{cumulative: long, added: short}.representative()
	expect.EQ(t, rep.ID, "PB.1.1")
	expect.True(t, fromCumulative)
	rep, fromCumulative = pair{cumulative: short, added: long}.representative()
	expect.EQ(t, rep.ID, "PB.1.1")
	expect.False(t, fromCumulative)
	rep, fromCumulative = pair{cumulative: long, added: same}.representative()
	expect.EQ(t, rep.ID, "PB.3.1")
	expect.False(t, fromCumulative)
	rep, fromCumulative = pair{cumulative: long}.representative()
	expect.EQ(t, rep.ID, "PB.1.1")
	expect.True(t, fromCumulative)
}

func TestRenumber(t *testing.T) {
	pairs := []pair{
		{added: tx("PB.9.1", "chr2", "+", gff.Exon{Start: 50, End: 60})},
		{added: tx("PB.9.2", "chr1", "-", gff.Exon{Start: 100, End: 200})},
		{cumulative: tx("PB.9.3", "chr1", "+", gff.Exon{Start: 300, End: 800})},
		{cumulative: tx("PB.9.4", "chr1", "+", gff.Exon{Start: 100, End: 500})},
		{cumulative: tx("PB.9.5", "chr1", "+", gff.Exon{Start: 800, End: 1200})},
	}
	merged := renumber(pairs)
	var got [][2]string
	for _, mt := range merged {
		src := mt.sourceID()
		got = append(got, [2]string{mt.ID, src})
		expect.EQ(t, mt.GeneID, mt.ID[:len(mt.ID)-2])
	}
	expect.EQ(t, got, [][2]string{
		{"PB.1.1", "PB.9.4"},
		{"PB.1.2", "PB.9.3"},
		{"PB.2.1", "PB.9.5"},
		{"PB.3.1", "PB.9.2"},
		{"PB.4.1", "PB.9.1"},
	})
	// Input transcripts keep their ids.
	expect.EQ(t, pairs[0].added.ID, "PB.9.1")
}
