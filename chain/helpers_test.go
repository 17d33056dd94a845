package chain

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	groupName = "collapsed.group.txt"
	gffName   = "collapsed.gff"
	countName = "collapsed.abundance.txt"
	fastqName = "collapsed.rep.fq"
)

// testSample describes the files of one sample: feature ids in GFF order
// and their count_fl values.
type testSample struct {
	name   string
	ids    []string
	counts []string
	// extra ids are present in every file but the GFF.
	extra []string
}

func geneOf(id string) string { return id[:strings.LastIndexByte(id, '.')] }

// writeSample creates root/<name> holding the sample's files.
func writeSample(t *testing.T, root string, s testSample) string {
	dir := filepath.Join(root, s.name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	var gff, group, count, fq strings.Builder
	count.WriteString("# test counts\npbid\tcount_fl\tnorm_fl\n")
	all := append(append([]string{}, s.ids...), s.extra...)
	for i, id := range all {
		c := "1"
		if i < len(s.counts) {
			c = s.counts[i]
		}
		start, end := 1000*(i+1)+1, 1000*(i+1)+500
		if i < len(s.ids) {
			attrs := fmt.Sprintf("gene_id %q; transcript_id %q;", geneOf(id), id)
			fmt.Fprintf(&gff, "chr1\tPacBio\ttranscript\t%d\t%d\t.\t+\t.\t%s\n", start, end, attrs)
			fmt.Fprintf(&gff, "chr1\tPacBio\texon\t%d\t%d\t.\t+\t.\t%s\n", start, end, attrs)
		}
		fmt.Fprintf(&group, "%s\tread%d/%s\n", id, i, s.name)
		fmt.Fprintf(&count, "%s\t%s\t%s.0\n", id, c, c)
		fmt.Fprintf(&fq, "@%s|chr1:%d-%d(+)|transcript/%d\nACGT\n+\nIIII\n", id, start, end, i)
	}
	for name, data := range map[string]string{
		gffName:   gff.String(),
		groupName: group.String(),
		countName: count.String(),
		fastqName: fq.String(),
	} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
	return dir
}

// testConfig builds a configuration over samples written in root. The
// first nIntermediate samples are intermediate.
func testConfig(root string, samples []testSample, nIntermediate int, withFASTQ bool) *Config {
	c := &Config{GroupFilename: groupName, GFFFilename: gffName, CountFilename: countName}
	if withFASTQ {
		c.FASTQFilename = fastqName
	}
	for i, s := range samples {
		role := Fresh
		if i < nIntermediate {
			role = Intermediate
		}
		c.Samples = append(c.Samples, Sample{Name: s.name, Dir: filepath.Join(root, s.name), Role: role})
	}
	return c
}

func readFile(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func copyTestFile(src, dst string) error {
	data, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(dst, data, 0644)
}

// fakeEngine merges by writing the step table given for each alias. The
// merged model's GFF, group, and FASTQ files are those of the added
// sample.
type fakeEngine struct {
	tables map[string]string
	loaded []string
	added  []string
}

type fakeModel struct {
	e     *fakeEngine
	alias string
	files ModelFiles
}

func (e *fakeEngine) Load(ctx context.Context, alias string, files ModelFiles, opts MergeOpts) (Model, error) {
	e.loaded = append(e.loaded, alias)
	return &fakeModel{e: e, alias: alias, files: files}, nil
}

func (m *fakeModel) Alias() string     { return m.alias }
func (m *fakeModel) Files() ModelFiles { return m.files }

func (m *fakeModel) AddSample(ctx context.Context, step Step) (Model, error) {
	m.e.added = append(m.e.added, step.Sample)
	table, ok := m.e.tables[step.Alias]
	if !ok {
		return nil, fmt.Errorf("no step table for %s", step.Alias)
	}
	if err := ioutil.WriteFile(step.Output.StepTable, []byte(table), 0644); err != nil {
		return nil, err
	}
	pairs := [][2]string{{step.Input.GFF, step.Output.GFF}, {step.Input.Group, step.Output.Group}}
	if step.Output.FASTQ != "" {
		pairs = append(pairs, [2]string{step.Input.FASTQ, step.Output.FASTQ})
	}
	for _, p := range pairs {
		if err := copyTestFile(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return &fakeModel{e: m.e, alias: step.Alias, files: step.Output.ModelFiles}, nil
}

func writeString(path, data string) error {
	return ioutil.WriteFile(path, []byte(data), 0644)
}
