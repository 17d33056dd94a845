// bio-umi-correct corrects cell barcodes and UMIs in a per-read table of
// single-cell transcripts. Barcodes are corrected within each gene, then
// UMIs within each barcode, by merging values one mismatch apart into the
// more frequent one.
//
// Usage: bio-umi-correct [flags] input_tsv output_tsv
//
// The input must have gene, BC, and UMI columns. The output adds BC_ed,
// UMI_ed, BC_match, and BC_top_rank.
package main

import (
	"context"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/isochain/umi"
	"v.io/x/lib/cmdline"
)

func newCmd() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "bio-umi-correct",
		Short:    "Correct cell barcodes and UMIs",
		ArgsName: "input_tsv output_tsv",
	}
	rankPath := cmd.Flags.String("bc-rank-file", "",
		"Cell barcode rank file from short read data, with cell_barcode and top_ranked columns")
	onlyTop := cmd.Flags.Bool("only-top-ranked", false,
		"Only output reads whose barcode is top ranked. Requires -bc-rank-file")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return env.UsageErrorf("bio-umi-correct takes input_tsv and output_tsv, but got %v", argv)
		}
		if *onlyTop && *rankPath == "" {
			return env.UsageErrorf("-only-top-ranked requires -bc-rank-file")
		}
		opts := umi.DefaultOpts
		opts.OnlyTopRanked = *onlyTop
		return correct(vcontext.Background(), argv[0], argv[1], *rankPath, opts)
	})
	return cmd
}

func correct(ctx context.Context, inPath, outPath, rankPath string, opts umi.Opts) (err error) {
	if rankPath != "" {
		if opts.Ranks, err = umi.ReadRanksFile(ctx, rankPath); err != nil {
			return err
		}
	}
	in, err := file.Open(ctx, inPath)
	if err != nil {
		return errors.E(err, "open", inPath)
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.E(err, "create", outPath)
	}
	if _, err = umi.Correct(in.Reader(ctx), out.Writer(ctx), opts); err != nil {
		out.Discard(ctx)
		return errors.E(err, inPath)
	}
	return out.Close(ctx)
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmd())
}
