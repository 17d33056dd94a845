package chain

import (
	"context"
	"path/filepath"
)

// File suffixes of a persisted cumulative model.
const (
	GFFSuffix       = ".gff"
	GroupSuffix     = ".group.txt"
	FASTQSuffix     = ".rep.fq"
	StepTableSuffix = ".mega_info.txt"
)

// MergeOpts are the tolerances the engine applies when deciding whether
// transcripts from two models are the same.
type MergeOpts struct {
	// FuzzyJunction is the largest distance, in bases, between two splice
	// junctions that are still considered identical.
	FuzzyJunction int
	// Allow5Merge lets a transcript that is a 5'-truncated version of
	// another merge into it.
	Allow5Merge bool
	// Max3Diff is the largest tolerated difference between 3' ends.
	Max3Diff int
}

// DefaultMergeOpts are the command-line defaults.
var DefaultMergeOpts = MergeOpts{
	FuzzyJunction: 5,
	Allow5Merge:   true,
	Max3Diff:      100,
}

// ModelFiles are the files that make up a transcript model. FASTQ is empty
// when the model carries no representative sequences.
type ModelFiles struct {
	GFF, Group, FASTQ string
}

// Artifacts are the files written by one merge step.
type Artifacts struct {
	ModelFiles
	// StepTable records where each merged feature came from.
	StepTable string
}

// ArtifactsFor returns the artifact paths for alias in dir.
func ArtifactsFor(dir, alias string, withFASTQ bool) Artifacts {
	prefix := filepath.Join(dir, alias)
	a := Artifacts{
		ModelFiles: ModelFiles{GFF: prefix + GFFSuffix, Group: prefix + GroupSuffix},
		StepTable:  prefix + StepTableSuffix,
	}
	if withFASTQ {
		a.FASTQ = prefix + FASTQSuffix
	}
	return a
}

// Step describes one merge step: adding Sample's model to the current
// cumulative model.
type Step struct {
	// Sample names the sample being added. It heads the added-side column
	// of the step table and prefixes its group members.
	Sample string
	// Input are the sample's own model files.
	Input ModelFiles
	// Alias names the resulting cumulative model.
	Alias string
	// Output is where the step's artifacts are written.
	Output Artifacts
}

// Engine opens transcript models. It decides which transcripts of two
// models are equivalent; this package never looks inside a model.
type Engine interface {
	// Load opens an existing model under the given alias.
	Load(ctx context.Context, alias string, files ModelFiles, opts MergeOpts) (Model, error)
}

// Model is a cumulative transcript model.
type Model interface {
	// Alias names the model. It heads the cumulative-side column of the
	// next step table.
	Alias() string
	// Files returns the model's files.
	Files() ModelFiles
	// AddSample merges step.Sample into the model, writes step.Output,
	// and returns the merged model. The receiver is not modified.
	AddSample(ctx context.Context, step Step) (Model, error)
}
