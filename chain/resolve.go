package chain

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Resolution is the starting state of a run.
type Resolution struct {
	// Model is the cumulative model to which the remaining samples are
	// added.
	Model Model
	// Next indexes the first sample of the configuration still to merge.
	// It equals len(Config.Samples) when nothing remains.
	Next int
}

// Resolve decides where a run starts. If the configuration begins with
// intermediate samples, the run resumes from the artifacts the last of them
// left in workDir. Otherwise it starts from the first sample's own files.
//
// A single leading intermediate sample has no artifacts of its own (the
// first sample of a chain is never merged into anything), so it is loaded
// from its own files, exactly like a fresh start.
func Resolve(ctx context.Context, cfg *Config, engine Engine, opts MergeOpts, workDir string) (*Resolution, error) {
	if len(cfg.Samples) == 0 {
		return nil, configErrorf("no samples")
	}
	next := 0
	for next < len(cfg.Samples) && cfg.Samples[next].Role == Intermediate {
		next++
	}
	for _, s := range cfg.Samples[next:] {
		if s.Role == Intermediate {
			return nil, configErrorf("intermediate sample %s follows a fresh sample", s.Name)
		}
	}
	if next <= 1 {
		first := cfg.Samples[0]
		f := cfg.Files(first)
		files := ModelFiles{GFF: f.GFF, Group: f.Group, FASTQ: f.FASTQ}
		log.Printf("starting fresh from %s", first.Name)
		m, err := engine.Load(ctx, first.Name, files, opts)
		if err != nil {
			return nil, errors.E(err, "load", first.Name)
		}
		return &Resolution{Model: m, Next: 1}, nil
	}

	last := cfg.Samples[next-1]
	a := ArtifactsFor(workDir, last.Alias(), cfg.HasFASTQ())
	for _, path := range []string{a.GFF, a.Group, a.FASTQ} {
		if path == "" {
			continue
		}
		if _, err := file.Stat(ctx, path); err != nil {
			return nil, configErrorf("resume from %s: %v", last.Alias(), err)
		}
	}
	log.Printf("resuming after %s (%d samples already merged)", last.Name, next)
	m, err := engine.Load(ctx, last.Alias(), a.ModelFiles, opts)
	if err != nil {
		return nil, errors.E(err, "load", last.Alias())
	}
	return &Resolution{Model: m, Next: next}, nil
}
