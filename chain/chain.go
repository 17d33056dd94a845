package chain

import (
	"context"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/isochain/encoding/abundance"
	"github.com/grailbio/isochain/encoding/gff"
)

// Opts configures a run.
type Opts struct {
	// Field selects the count column reported in the count matrix.
	Field abundance.Field
	// Merge are the engine tolerances.
	Merge MergeOpts
	// WorkDir holds the intermediate artifacts and the final outputs.
	WorkDir string
}

// Summary describes a completed run.
type Summary struct {
	// Merged is the number of merge steps run.
	Merged int
	// Rows is the number of features in the final model.
	Rows int
	// Checksums of the output matrices.
	Checksums Checksums
}

// Run chains the samples of cfg. It validates every sample, merges the
// samples not yet merged into the cumulative model one at a time, traces
// every final feature back to the samples it came from, and writes the
// output matrices and the final model to opts.WorkDir.
func Run(ctx context.Context, cfg *Config, engine Engine, opts Opts) (Summary, error) {
	var sum Summary
	if err := ValidateSamples(ctx, cfg); err != nil {
		return sum, err
	}
	counts, err := LoadCountIndex(ctx, cfg, opts.Field)
	if err != nil {
		return sum, err
	}
	res, err := Resolve(ctx, cfg, engine, opts.Merge, opts.WorkDir)
	if err != nil {
		return sum, err
	}
	final, err := MergeRemaining(ctx, cfg, res, opts.WorkDir)
	if err != nil {
		return sum, err
	}
	sum.Merged = len(cfg.Samples) - res.Next

	chain := cfg.Names()
	w, err := NewResultWriter(ctx, opts.WorkDir, chain)
	if err != nil {
		return sum, err
	}
	if err = reconstruct(ctx, cfg, chain, counts, opts.WorkDir, w.Write); err != nil {
		w.Discard(ctx)
		return sum, err
	}
	sum.Rows = w.Rows()
	if sum.Checksums, err = w.Close(ctx); err != nil {
		return sum, errors.E(err, "write matrices")
	}
	if err = CopyArtifacts(ctx, final.Files(), opts.WorkDir, cfg.HasFASTQ()); err != nil {
		return sum, err
	}
	log.Printf("%d features chained across %d samples; %s seahash %016x, %s seahash %016x",
		sum.Rows, len(chain), IDsOutput, sum.Checksums.IDs, CountsOutput, sum.Checksums.Counts)
	return sum, nil
}

// reconstruct reads the step tables of the chain from workDir and emits
// one row per final feature.
func reconstruct(ctx context.Context, cfg *Config, chain []string, counts *CountIndex, workDir string, emit func(*FinalRow) error) error {
	if len(chain) == 1 {
		s := cfg.Samples[0]
		ids, err := gff.ReadIDs(ctx, cfg.Files(s).GFF)
		if err != nil {
			return err
		}
		return ReconstructSingle(s.Name, ids, counts, emit)
	}
	steps := make([]*StepTable, len(chain)-1)
	for k := 1; k < len(chain); k++ {
		alias := cfg.Samples[k].Alias()
		path := filepath.Join(workDir, alias+StepTableSuffix)
		t, err := ReadStepTableFile(ctx, path, alias)
		if err != nil {
			return errors.E(errors.Invalid, err, "step table of", chain[k])
		}
		log.Debug.Printf("%s: %d rows", path, len(t.Rows))
		steps[k-1] = t
	}
	return Reconstruct(chain, steps, counts, emit)
}
