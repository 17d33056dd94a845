// bio-chain-samples merges the collapsed transcript models of several
// samples, one sample at a time, and reports for every merged transcript
// the id and count it had in each sample.
//
// Usage: bio-chain-samples [flags] config_file {norm_fl,count_fl}
//
// The config file lists the samples in merge order:
//
//   tmpSAMPLE=A;/path/to/A
//   tmpSAMPLE=B;/path/to/B
//   SAMPLE=C;/path/to/C
//   GROUP_FILENAME=touse.group.txt
//   GFF_FILENAME=touse.gff
//   COUNT_FILENAME=touse.count.txt
//   FASTQ_FILENAME=touse.rep.fq
//
// tmpSAMPLE entries were merged by an earlier run in the same working
// directory; the run resumes from the tmp_B.* files that run left. The
// outputs are all_samples.chained_ids.txt, all_samples.chained_count.txt,
// all_samples.chained.gff, and, with FASTQ_FILENAME, all_samples.chained.rep.fq.
package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/isochain/chain"
	"github.com/grailbio/isochain/encoding/abundance"
	"github.com/grailbio/isochain/isomerge"
	"v.io/x/lib/cmdline"
)

// Exit codes.
const (
	exitOther       = 1
	exitConfig      = 2
	exitConsistency = 3
	exitProvenance  = 4
)

// exitCode maps a run error to the process exit code.
func exitCode(err error) int {
	switch {
	case chain.IsConfigError(err):
		return exitConfig
	case chain.IsConsistencyError(err):
		return exitConsistency
	case chain.IsProvenanceDefect(err):
		return exitProvenance
	}
	return exitOther
}

func newCmd() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "bio-chain-samples",
		Short:    "Chain collapsed transcript models across samples",
		ArgsName: "config_file field_to_use",
		ArgsLong: "field_to_use is the count column to report, norm_fl or count_fl.",
	}
	opts := chain.Opts{Merge: chain.DefaultMergeOpts}
	cmd.Flags.IntVar(&opts.Merge.FuzzyJunction, "fuzzy_junction", chain.DefaultMergeOpts.FuzzyJunction,
		"Max allowed distance in junction to be considered identical")
	dunMerge5 := cmd.Flags.Bool("dun-merge-5-shorter", false,
		"Don't collapse transcripts that differ only in their 5' exon")
	cmd.Flags.IntVar(&opts.Merge.Max3Diff, "max_3_diff", chain.DefaultMergeOpts.Max3Diff,
		"Maximum 3' difference allowed")
	cmd.Flags.StringVar(&opts.WorkDir, "workdir", ".",
		"Directory for the intermediate tmp_* files and the outputs")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return env.UsageErrorf("bio-chain-samples takes config_file and field_to_use, but got %v", argv)
		}
		field, err := abundance.ParseField(argv[1])
		if err != nil {
			return env.UsageErrorf("%v", err)
		}
		opts.Field = field
		opts.Merge.Allow5Merge = !*dunMerge5
		if err := run(argv[0], opts); err != nil {
			log.Error.Printf("%v", err)
			return cmdline.ErrExitCode(exitCode(err))
		}
		return nil
	})
	return cmd
}

func run(configPath string, opts chain.Opts) error {
	ctx := vcontext.Background()
	cfg, err := chain.ReadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	sum, err := chain.Run(ctx, cfg, isomerge.Engine{}, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%d merge steps, %d chained features in %s\n", sum.Merged, sum.Rows, opts.WorkDir)
	return nil
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmd())
}
