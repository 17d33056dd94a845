package chain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/isochain/encoding/abundance"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	status := m.Run()
	shutdown()
	os.Exit(status)
}

var (
	sampleA = testSample{name: "A", ids: []string{"PB.1.1"}, counts: []string{"5"}}
	sampleB = testSample{name: "B", ids: []string{"PB.3.2"}, counts: []string{"7"}}
	sampleC = testSample{name: "C", ids: []string{"PB.1.1", "PB.2.1"}, counts: []string{"3", "4"}}
)

var chainTables = map[string]string{
	"tmp_B": "pbid\tA\tB\nPB.3.2\tPB.1.1\tPB.3.2\n",
	"tmp_C": "pbid\ttmp_B\tC\nPB.1.1\tPB.3.2\tPB.1.1\nPB.2.1\tNA\tPB.2.1\n",
}

func setup(t *testing.T, samples ...testSample) (root string, cleanup func()) {
	root, cleanup = testutil.TempDir(t, "", "")
	for _, s := range samples {
		writeSample(t, root, s)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "work"), 0755))
	return root, cleanup
}

func runOpts(root string) Opts {
	return Opts{Field: abundance.CountFL, Merge: DefaultMergeOpts, WorkDir: filepath.Join(root, "work")}
}

func TestRunTwoSamples(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA, sampleB)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	engine := &fakeEngine{tables: chainTables}
	cfg := testConfig(root, []testSample{sampleA, sampleB}, 0, true)
	opts := runOpts(root)
	sum, err := Run(ctx, cfg, engine, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Merged)
	assert.Equal(t, 1, sum.Rows)
	assert.Equal(t, []string{"A"}, engine.loaded)
	assert.Equal(t, []string{"B"}, engine.added)

	assert.Equal(t, "superPBID\tA\tB\nPB.3.2\tPB.1.1\tPB.3.2\n",
		readFile(t, filepath.Join(opts.WorkDir, IDsOutput)))
	assert.Equal(t, "superPBID\tA\tB\nPB.3.2\t5\t7\n",
		readFile(t, filepath.Join(opts.WorkDir, CountsOutput)))
	assert.Equal(t, readFile(t, filepath.Join(opts.WorkDir, "tmp_B.gff")),
		readFile(t, filepath.Join(opts.WorkDir, GFFOutput)))
	assert.Equal(t, readFile(t, filepath.Join(opts.WorkDir, "tmp_B.rep.fq")),
		readFile(t, filepath.Join(opts.WorkDir, FASTQOutput)))

	// norm_fl selects the other column.
	opts.Field = abundance.NormFL
	_, err = Run(ctx, cfg, &fakeEngine{tables: chainTables}, opts)
	require.NoError(t, err)
	assert.Equal(t, "superPBID\tA\tB\nPB.3.2\t5.0\t7.0\n",
		readFile(t, filepath.Join(opts.WorkDir, CountsOutput)))
}

func TestRunResume(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA, sampleB, sampleC)
	defer testutil.NoCleanupOnError(t, cleanup, root)
	samples := []testSample{sampleA, sampleB, sampleC}
	opts := runOpts(root)

	sum, err := Run(ctx, testConfig(root, samples, 0, false), &fakeEngine{tables: chainTables}, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Merged)
	fresh := readFile(t, filepath.Join(opts.WorkDir, CountsOutput))
	assert.Equal(t, "superPBID\tA\tB\tC\nPB.1.1\t5\t7\t3\nPB.2.1\tNA\tNA\t4\n", fresh)

	// Remove the last step's artifacts and resume after B.
	for _, suffix := range []string{GFFSuffix, GroupSuffix, StepTableSuffix} {
		require.NoError(t, os.Remove(filepath.Join(opts.WorkDir, "tmp_C"+suffix)))
	}
	engine := &fakeEngine{tables: chainTables}
	resumed, err := Run(ctx, testConfig(root, samples, 2, false), engine, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Merged)
	assert.Equal(t, []string{"tmp_B"}, engine.loaded)
	assert.Equal(t, []string{"C"}, engine.added)
	assert.Equal(t, fresh, readFile(t, filepath.Join(opts.WorkDir, CountsOutput)))
	assert.Equal(t, sum.Checksums, resumed.Checksums)

	// With every sample merged, the run only rebuilds the outputs.
	engine = &fakeEngine{}
	again, err := Run(ctx, testConfig(root, samples, 3, false), engine, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Merged)
	assert.Equal(t, []string{"tmp_C"}, engine.loaded)
	assert.Empty(t, engine.added)
	assert.Equal(t, sum.Checksums, again.Checksums)
}

func TestRunResumeMissingArtifacts(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA, sampleB, sampleC)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	cfg := testConfig(root, []testSample{sampleA, sampleB, sampleC}, 2, true)
	_, err := Run(ctx, cfg, &fakeEngine{tables: chainTables}, runOpts(root))
	require.Error(t, err)
	assert.True(t, IsConfigError(err), "%v", err)
	assert.Contains(t, err.Error(), "tmp_B")
}

func TestRunSingleIntermediate(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA, sampleB)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	engine := &fakeEngine{tables: chainTables}
	_, err := Run(ctx, testConfig(root, []testSample{sampleA, sampleB}, 1, false), engine, runOpts(root))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, engine.loaded)
	assert.Equal(t, []string{"B"}, engine.added)
}

func TestRunSingleSample(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleC)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	engine := &fakeEngine{}
	opts := runOpts(root)
	cfg := testConfig(root, []testSample{sampleC}, 0, true)
	sum, err := Run(ctx, cfg, engine, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Merged)
	assert.Equal(t, "superPBID\tC\nPB.1.1\tPB.1.1\nPB.2.1\tPB.2.1\n",
		readFile(t, filepath.Join(opts.WorkDir, IDsOutput)))
	assert.Equal(t, "superPBID\tC\nPB.1.1\t3\nPB.2.1\t4\n",
		readFile(t, filepath.Join(opts.WorkDir, CountsOutput)))
	assert.Equal(t, readFile(t, cfg.Files(cfg.Samples[0]).GFF),
		readFile(t, filepath.Join(opts.WorkDir, GFFOutput)))
}

func TestRunInconsistentSample(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA, sampleB)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	cfg := testConfig(root, []testSample{sampleA, sampleB}, 0, false)
	require.NoError(t, writeString(cfg.Files(cfg.Samples[1]).Group, "PB.9.9\tx\n"))
	engine := &fakeEngine{tables: chainTables}
	_, err := Run(ctx, cfg, engine, runOpts(root))
	require.Error(t, err)
	assert.True(t, IsConsistencyError(err), "%v", err)
	assert.Empty(t, engine.loaded)
	_, err = os.Stat(filepath.Join(root, "work", IDsOutput))
	assert.True(t, os.IsNotExist(err))
}

func TestRunProvenanceDefect(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA, sampleB)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	engine := &fakeEngine{tables: map[string]string{"tmp_B": "pbid\tA\tB\nPB.3.2\tPB.7.7\tPB.3.2\n"}}
	opts := runOpts(root)
	_, err := Run(ctx, testConfig(root, []testSample{sampleA, sampleB}, 0, false), engine, opts)
	require.Error(t, err)
	assert.True(t, IsProvenanceDefect(err), "%v", err)
	_, err = os.Stat(filepath.Join(opts.WorkDir, IDsOutput))
	assert.True(t, os.IsNotExist(err))
}

func TestRunForeignStepTable(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA, sampleB)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	engine := &fakeEngine{tables: map[string]string{"tmp_B": "pbid\ttmp_X\tB\nPB.3.2\tPB.1.1\tPB.3.2\n"}}
	opts := runOpts(root)
	_, err := Run(ctx, testConfig(root, []testSample{sampleA, sampleB}, 0, false), engine, opts)
	require.Error(t, err)
	assert.True(t, IsProvenanceDefect(err), "%v", err)
	_, err = os.Stat(filepath.Join(opts.WorkDir, IDsOutput))
	assert.True(t, os.IsNotExist(err))
}

func TestCopyArtifactsMissingFASTQ(t *testing.T) {
	ctx := context.Background()
	root, cleanup := setup(t, sampleA)
	defer testutil.NoCleanupOnError(t, cleanup, root)

	cfg := testConfig(root, []testSample{sampleA}, 0, false)
	final := ModelFiles{GFF: cfg.Files(cfg.Samples[0]).GFF}
	err := CopyArtifacts(ctx, final, filepath.Join(root, "work"), true)
	require.Error(t, err)
	assert.True(t, IsProvenanceDefect(err), "%v", err)
	assert.False(t, IsConfigError(err), "%v", err)
}
