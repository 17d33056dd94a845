package isomerge

import (
	"github.com/grailbio/isochain/encoding/gff"
)

// Match classifies how the exon chain of one transcript relates to that of
// another.
type Match int

const (
	// NoMatch means no exon of one transcript overlaps the first exon of
	// the other.
	NoMatch Match = iota
	// Exact means both chains have the same junctions.
	Exact
	// Subset means the first chain is a contiguous part of the second.
	Subset
	// Super means the second chain is a contiguous part of the first.
	Super
	// Partial means the chains overlap but disagree on a junction, or
	// each extends past the other.
	Partial
)

var matchNames = [...]string{"nomatch", "exact", "subset", "super", "partial"}

func (m Match) String() string {
	if int(m) < len(matchNames) {
		return matchNames[m]
	}
	return "invalid"
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func overlaps(a, b gff.Exon) bool { return a.Start < b.End && b.Start < a.End }

// Compare classifies the exon chain of a against b. a and b must lie on
// the same chromosome and strand. Junctions, that is exon ends followed by
// another exon and exon starts preceded by one, match when they are at
// most fuzz bases apart. Outer transcript ends are unconstrained except
// that they may not run into the other transcript's introns.
func Compare(a, b *gff.Transcript, fuzz int) Match {
	ea, eb := a.Exons, b.Exons
	i, j := -1, -1
	// The aligned chains start at the first exon of a or of b.
find:
	for x := range ea {
		for y := range eb {
			if x > 0 && y > 0 {
				break
			}
			if overlaps(ea[x], eb[y]) {
				i, j = x, y
				break find
			}
		}
	}
	if i < 0 {
		return NoMatch
	}
	n := len(ea) - i
	if m := len(eb) - j; m < n {
		n = m
	}
	for k := 0; k < n; k++ {
		x, y := ea[i+k], eb[j+k]
		aFirst, bFirst := i+k == 0, j+k == 0
		aLast, bLast := i+k == len(ea)-1, j+k == len(eb)-1
		switch {
		case !aFirst && !bFirst:
			if abs(x.Start-y.Start) > fuzz {
				return Partial
			}
		case !aFirst:
			if y.Start < x.Start-fuzz {
				return Partial
			}
		case !bFirst:
			if x.Start < y.Start-fuzz {
				return Partial
			}
		}
		switch {
		case !aLast && !bLast:
			if abs(x.End-y.End) > fuzz {
				return Partial
			}
		case !aLast:
			if y.End > x.End+fuzz {
				return Partial
			}
		case !bLast:
			if x.End > y.End+fuzz {
				return Partial
			}
		}
	}
	aDone, bDone := i+n == len(ea), j+n == len(eb)
	switch {
	case i == 0 && j == 0 && aDone && bDone:
		return Exact
	case i == 0 && aDone:
		return Subset
	case j == 0 && bDone:
		return Super
	}
	return Partial
}

// threePrimeDiff returns the distance between the 3' ends of a and b.
func threePrimeDiff(a, b *gff.Transcript) int {
	if a.Strand == "-" {
		return abs(a.Start - b.Start)
	}
	return abs(a.End - b.End)
}
