package chain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/isochain/encoding/abundance"
	"github.com/grailbio/isochain/encoding/fastq"
	"github.com/grailbio/isochain/encoding/gff"
	"github.com/grailbio/isochain/encoding/group"
)

// maxReported bounds the number of missing ids quoted in an error.
const maxReported = 5

// idUniverse is the set of feature ids named by one file.
type idUniverse struct {
	path string
	ids  []string
}

// ValidateSample checks that every feature in the sample's GFF also
// appears in its group file, count file, and FASTQ file (if any).
func ValidateSample(ctx context.Context, name string, f SampleFiles) error {
	log.Printf("validating %s: %s, %s, %s", name, f.Group, f.GFF, f.Count)
	gffIDs, err := gff.ReadIDs(ctx, f.GFF)
	if err != nil {
		return err
	}
	groups, err := group.ReadFile(ctx, f.Group)
	if err != nil {
		return err
	}
	countIDs, err := abundance.ReadIDs(ctx, f.Count)
	if err != nil {
		return err
	}
	universes := []idUniverse{
		{f.Group, groups.IDs},
		{f.Count, countIDs},
	}
	if f.FASTQ != "" {
		fqIDs, err := fastq.ReadFeatureIDs(ctx, f.FASTQ)
		if err != nil {
			return err
		}
		universes = append(universes, idUniverse{f.FASTQ, fqIDs})
	}
	for _, u := range universes {
		if missing := difference(gffIDs, u.ids); len(missing) > 0 {
			return consistencyErrorf("sample %s: %d feature(s) of %s are not in %s: %s",
				name, len(missing), f.GFF, u.path, quote(missing))
		}
	}
	return nil
}

// ValidateSamples validates every sample of c. It returns the error of the
// first sample, in chain order, that fails.
func ValidateSamples(ctx context.Context, c *Config) error {
	errs := make([]error, len(c.Samples))
	err := traverse.Each(len(c.Samples), func(i int) error {
		s := c.Samples[i]
		errs[i] = ValidateSample(ctx, s.Name, c.Files(s))
		return errs[i]
	})
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return err
}

// difference returns the elements of a that are not in b, sorted.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []string
	seen := map[string]bool{}
	for _, id := range a {
		if _, ok := in[id]; !ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func quote(ids []string) string {
	if len(ids) <= maxReported {
		return strings.Join(ids, ",")
	}
	return fmt.Sprintf("%s,... (%d more)", strings.Join(ids[:maxReported], ","), len(ids)-maxReported)
}
