package isomerge

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/isochain/chain"
	"github.com/grailbio/isochain/encoding/gff"
)

// pair is a transcript of the merged model before renumbering: a
// cumulative transcript, an added one, or both when they matched.
type pair struct {
	cumulative, added *gff.Transcript
}

// representative returns the longer transcript of the pair. Ties go to
// the added transcript.
func (p pair) representative() (t *gff.Transcript, fromCumulative bool) {
	switch {
	case p.added == nil:
		return p.cumulative, true
	case p.cumulative == nil:
		return p.added, false
	case p.cumulative.Len() > p.added.Len():
		return p.cumulative, true
	}
	return p.added, false
}

// accepts tells whether m, with the given 3' difference, is close enough
// to merge under opts.
func accepts(m Match, diff3 int, opts chain.MergeOpts) bool {
	if diff3 > opts.Max3Diff {
		return false
	}
	return m == Exact || (opts.Allow5Merge && (m == Subset || m == Super))
}

// bestMatch returns the position in cumulative of the transcript t merges
// into, or -1. Exact matches beat 5' merges; then the smaller 3'
// difference wins; then the earlier transcript.
func bestMatch(idx *index, cumulative []*gff.Transcript, t *gff.Transcript, opts chain.MergeOpts) int {
	best, bestExact, bestDiff := -1, false, 0
	for _, i := range idx.overlapping(t) {
		c := cumulative[i]
		m := Compare(t, c, opts.FuzzyJunction)
		diff := threePrimeDiff(t, c)
		if !accepts(m, diff, opts) {
			continue
		}
		exact := m == Exact
		if best < 0 || (exact && !bestExact) || (exact == bestExact && diff < bestDiff) {
			best, bestExact, bestDiff = i, exact, diff
		}
	}
	return best
}

// match pairs every added transcript with its best cumulative match, if
// any, and appends the cumulative transcripts no added transcript matched.
// A cumulative transcript may match several added ones.
func match(cumulative, added []*gff.Transcript, opts chain.MergeOpts) ([]pair, error) {
	idx, err := newIndex(cumulative)
	if err != nil {
		return nil, err
	}
	matched := make([]bool, len(cumulative))
	pairs := make([]pair, 0, len(cumulative)+len(added))
	for _, t := range added {
		p := pair{added: t}
		if i := bestMatch(idx, cumulative, t, opts); i >= 0 {
			p.cumulative = cumulative[i]
			matched[i] = true
			log.Debug.Printf("%s matches %s", t.ID, p.cumulative.ID)
		}
		pairs = append(pairs, p)
	}
	for i, c := range cumulative {
		if !matched[i] {
			pairs = append(pairs, pair{cumulative: c})
		}
	}
	return pairs, nil
}

// mergedTranscript is a renumbered transcript of the merged model. Its
// exons are those of its representative.
type mergedTranscript struct {
	*gff.Transcript
	pair
	fromCumulative bool
}

// sourceID returns the id the representative had in its own model.
func (mt *mergedTranscript) sourceID() string {
	if mt.fromCumulative {
		return mt.cumulative.ID
	}
	return mt.added.ID
}

func strandRank(s string) int {
	switch s {
	case "+":
		return 0
	case "-":
		return 1
	}
	return 2
}

// renumber orders the pairs by chromosome, strand ('+' first), start, and
// end, groups overlapping transcripts into loci, and names the transcripts
// PB.<locus>.<isoform>.
func renumber(pairs []pair) []*mergedTranscript {
	merged := make([]*mergedTranscript, len(pairs))
	for i, p := range pairs {
		rep, fromCumulative := p.representative()
		t := *rep
		merged[i] = &mergedTranscript{Transcript: &t, pair: p, fromCumulative: fromCumulative}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].Transcript, merged[j].Transcript
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if ra, rb := strandRank(a.Strand), strandRank(b.Strand); ra != rb {
			return ra < rb
		}
		if a.Strand != b.Strand {
			return a.Strand < b.Strand
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})
	var (
		nLocus, nIsoform, end int
		prev                  *gff.Transcript
	)
	for _, mt := range merged {
		t := mt.Transcript
		if prev == nil || t.Chrom != prev.Chrom || t.Strand != prev.Strand || t.Start >= end {
			nLocus++
			nIsoform = 0
			end = t.End
		}
		if t.End > end {
			end = t.End
		}
		nIsoform++
		t.GeneID = fmt.Sprintf("PB.%d", nLocus)
		t.ID = fmt.Sprintf("PB.%d.%d", nLocus, nIsoform)
		prev = t
	}
	return merged
}
