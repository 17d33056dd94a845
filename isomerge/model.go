package isomerge

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/isochain/chain"
	"github.com/grailbio/isochain/encoding/fastq"
	"github.com/grailbio/isochain/encoding/gff"
	"github.com/grailbio/isochain/encoding/group"
)

// Engine loads transcript models from their GFF and group files.
type Engine struct{}

// Load implements chain.Engine.
func (Engine) Load(ctx context.Context, alias string, files chain.ModelFiles, opts chain.MergeOpts) (chain.Model, error) {
	ts, err := gff.ReadFile(ctx, files.GFF)
	if err != nil {
		return nil, err
	}
	groups, err := group.ReadFile(ctx, files.Group)
	if err != nil {
		return nil, err
	}
	log.Printf("%s: loaded %d transcripts from %s", alias, len(ts), files.GFF)
	return &Model{alias: alias, files: files, opts: opts, transcripts: ts, groups: groups}, nil
}

// Model is a transcript model held in memory together with the files it
// was read from or written to.
type Model struct {
	alias       string
	files       chain.ModelFiles
	opts        chain.MergeOpts
	transcripts []*gff.Transcript
	groups      *group.Groups
}

// Alias implements chain.Model.
func (m *Model) Alias() string { return m.alias }

// Files implements chain.Model.
func (m *Model) Files() chain.ModelFiles { return m.files }

// Transcripts returns the model's transcripts in file order.
func (m *Model) Transcripts() []*gff.Transcript { return m.transcripts }

// Members returns the group members of transcript id.
func (m *Model) Members(id string) []string { return m.groups.Members[id] }

// AddSample implements chain.Model. Every transcript of the added sample is
// matched against the model, and the merged transcripts are renumbered by
// locus. The representative of a matched pair is the longer of the two
// transcripts, preferring the added one on ties.
func (m *Model) AddSample(ctx context.Context, step chain.Step) (chain.Model, error) {
	added, err := gff.ReadFile(ctx, step.Input.GFF)
	if err != nil {
		return nil, err
	}
	addedGroups, err := group.ReadFile(ctx, step.Input.Group)
	if err != nil {
		return nil, err
	}
	pairs, err := match(m.transcripts, added, m.opts)
	if err != nil {
		return nil, err
	}
	merged := renumber(pairs)

	out := &Model{
		alias:  step.Alias,
		files:  step.Output.ModelFiles,
		opts:   m.opts,
		groups: &group.Groups{Members: map[string][]string{}},
	}
	for _, mt := range merged {
		var members []string
		if mt.cumulative != nil {
			ms, ok := m.groups.Members[mt.cumulative.ID]
			if !ok {
				return nil, errors.E(errors.Integrity, m.alias, "has no group for", mt.cumulative.ID)
			}
			members = append(members, ms...)
		}
		if mt.added != nil {
			ms, ok := addedGroups.Members[mt.added.ID]
			if !ok {
				return nil, errors.E(errors.Integrity, step.Sample, "has no group for", mt.added.ID)
			}
			members = append(members, group.Prefixed(step.Sample, ms)...)
		}
		out.transcripts = append(out.transcripts, mt.Transcript)
		out.groups.IDs = append(out.groups.IDs, mt.ID)
		out.groups.Members[mt.ID] = members
	}

	if err := out.write(ctx, step.Output); err != nil {
		return nil, err
	}
	if step.Output.FASTQ != "" {
		if err := writeFASTQ(ctx, step.Output.FASTQ, merged, m.files.FASTQ, step.Input.FASTQ); err != nil {
			return nil, err
		}
	}
	// The step table goes last: its presence marks a finished step.
	err = create(ctx, step.Output.StepTable, func(w io.Writer) error {
		tw, err := chain.NewStepTableWriter(w, m.alias, step.Sample)
		if err != nil {
			return err
		}
		for _, mt := range merged {
			row := chain.StepRow{ID: mt.ID}
			if mt.cumulative != nil {
				row.Cumulative = chain.Attribution{ID: mt.cumulative.ID, Present: true}
			}
			if mt.added != nil {
				row.Added = chain.Attribution{ID: mt.added.ID, Present: true}
			}
			if err := tw.Write(row); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
	if err != nil {
		return nil, err
	}
	log.Printf("%s: %d transcripts after adding %d from %s to %d in %s",
		step.Alias, len(merged), len(added), step.Sample, len(m.transcripts), m.alias)
	return out, nil
}

// write writes the model's GFF and group files.
func (m *Model) write(ctx context.Context, a chain.Artifacts) error {
	err := create(ctx, a.GFF, func(w io.Writer) error {
		gw := gff.NewWriter(w)
		for _, t := range m.transcripts {
			if err := gw.Write(t); err != nil {
				return err
			}
		}
		return gw.Flush()
	})
	if err != nil {
		return err
	}
	return create(ctx, a.Group, func(w io.Writer) error {
		gw := group.NewWriter(w)
		for _, id := range m.groups.IDs {
			if err := gw.Write(id, m.groups.Members[id]); err != nil {
				return err
			}
		}
		return gw.Flush()
	})
}

// create writes path through fn. The file appears only if fn succeeds.
func create(ctx context.Context, path string, fn func(w io.Writer) error) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	if err := fn(out.Writer(ctx)); err != nil {
		out.Discard(ctx)
		return errors.E(err, "write", path)
	}
	if err := out.Close(ctx); err != nil {
		return errors.E(err, "close", path)
	}
	return nil
}

// sequences looks up representative reads by feature id.
type sequences interface {
	Get(id string) (fastq.Read, error)
}

type readMap map[string]fastq.Read

func (m readMap) Get(id string) (fastq.Read, error) {
	r, ok := m[id]
	if !ok {
		return fastq.Read{}, errors.E(errors.NotExist, "no read for", id)
	}
	return r, nil
}

// openSequences indexes the FASTQ file at path. Uncompressed files are
// read lazily; compressed ones are loaded whole.
func openSequences(ctx context.Context, path string) (sequences, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "open", path)
	}
	closer := func() error { return in.Close(ctx) }
	if u := compress.NewReaderPath(in.Reader(ctx), in.Name()); u != nil {
		if err := closer(); err != nil {
			return nil, nil, err
		}
		reads, err := fastq.ReadAll(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return readMap(reads), func() error { return nil }, nil
	}
	r, err := fastq.NewIndexedReader(in.Reader(ctx))
	if err != nil {
		_ = closer()
		return nil, nil, errors.E(err, "index", path)
	}
	return r, closer, nil
}

// writeFASTQ writes the representative read of every merged transcript,
// renamed to the merged id.
func writeFASTQ(ctx context.Context, path string, merged []*mergedTranscript, cumulativePath, addedPath string) (err error) {
	if cumulativePath == "" || addedPath == "" {
		return errors.E(errors.Integrity, "representative sequences requested but not available for", path)
	}
	cumulative, closeCumulative, err := openSequences(ctx, cumulativePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeCumulative(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	added, closeAdded, err := openSequences(ctx, addedPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeAdded(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return create(ctx, path, func(w io.Writer) error {
		fw := fastq.NewWriter(w)
		for _, mt := range merged {
			src, id := added, mt.sourceID()
			if mt.fromCumulative {
				src = cumulative
			}
			read, err := src.Get(id)
			if err != nil {
				return err
			}
			if err := fw.WriteAs(&read, mt.ID, id); err != nil {
				return err
			}
		}
		return fw.Flush()
	})
}
