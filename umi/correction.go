// Package umi corrects sequencing errors in the cell barcodes (BC) and
// unique molecular identifiers (UMI) of single-cell transcript reads.
package umi

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/isochain/util"
)

// ErrorCorrect greedily merges similar values. Values are visited from
// most to least frequent, ties in order of first appearance; each value
// absorbs every later value within threshold mismatches that has not been
// absorbed already. Values of different length never merge.
//
// The result maps each absorbed value to the value it was merged into.
// Merging is not transitive: an absorbed value never absorbs others.
func ErrorCorrect(values []string, threshold int) map[string]string {
	counts := map[string]int{}
	var order []string
	for _, v := range values {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	sorted := sortByCount(order, counts)

	merged := map[string]string{}
	for i := 0; i < len(sorted); i++ {
		keep := sorted[:i+1]
		for _, v := range sorted[i+1:] {
			if util.WithinHamming(sorted[i], v, threshold) {
				merged[v] = sorted[i]
				log.Debug.Printf("merge %s into %s", v, sorted[i])
				continue
			}
			keep = append(keep, v)
		}
		sorted = keep
	}
	return merged
}

// sortByCount returns values ordered by decreasing count. Ties keep their
// order.
func sortByCount(values []string, counts map[string]int) []string {
	out := append([]string(nil), values...)
	sort.SliceStable(out, func(i, j int) bool { return counts[out[i]] > counts[out[j]] })
	return out
}

var complement = [256]byte{}

func init() {
	for i := range complement {
		complement[i] = byte(i)
	}
	for _, p := range []string{"AT", "CG", "GC", "TA", "at", "cg", "gc", "ta", "NN", "nn"} {
		complement[p[0]] = p[1]
	}
}

// ReverseComplement returns the reverse complement of a DNA sequence.
// Characters other than ACGTN are kept as is.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = complement[seq[i]]
	}
	return string(out)
}
