package chain

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// MergeRemaining adds every sample from res.Next on to the cumulative
// model, one step at a time, and returns the final model. Each step
// persists its artifacts in workDir under the added sample's alias.
func MergeRemaining(ctx context.Context, cfg *Config, res *Resolution, workDir string) (Model, error) {
	m := res.Model
	for i := res.Next; i < len(cfg.Samples); i++ {
		s := cfg.Samples[i]
		f := cfg.Files(s)
		step := Step{
			Sample: s.Name,
			Input:  ModelFiles{GFF: f.GFF, Group: f.Group, FASTQ: f.FASTQ},
			Alias:  s.Alias(),
			Output: ArtifactsFor(workDir, s.Alias(), cfg.HasFASTQ()),
		}
		log.Printf("merge step %d/%d: adding %s to %s", i, len(cfg.Samples)-1, s.Name, m.Alias())
		next, err := m.AddSample(ctx, step)
		if err != nil {
			return nil, errors.E(err, "add", s.Name, "to", m.Alias())
		}
		m = next
	}
	return m, nil
}
