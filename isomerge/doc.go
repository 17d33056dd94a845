// Package isomerge merges collapsed transcript models from different
// samples. Two transcripts are merged when their exon chains agree up to a
// fuzzy junction tolerance and their 3' ends are close; optionally a
// transcript that is a 5'-truncated version of another is merged into it.
//
// Engine implements chain.Engine. Every merge step renumbers the merged
// model by locus, as PB.<locus>.<isoform>, and writes the merged GFF,
// group file, representative FASTQ, and a step table that records which
// cumulative and added transcript each merged transcript came from.
package isomerge
