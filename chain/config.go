package chain

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// IntermediatePrefix is the reserved namespace for cumulative-model
// aliases. Sample names may not start with it.
const IntermediatePrefix = "tmp_"

// Role tells whether a sample still has to be merged.
type Role int

const (
	// Fresh samples are merged by this run.
	Fresh Role = iota
	// Intermediate samples were merged by an earlier run whose artifacts
	// are in the working directory.
	Intermediate
)

func (r Role) String() string {
	if r == Intermediate {
		return "intermediate"
	}
	return "fresh"
}

// Sample is one entry of the chain.
type Sample struct {
	Name string
	// Dir holds the sample's own files. It is absolute.
	Dir  string
	Role Role
}

// Alias returns the name of the cumulative model produced by adding s.
func (s Sample) Alias() string { return IntermediatePrefix + s.Name }

// SampleFiles are the paths of one sample's files. FASTQ is empty when no
// sequence file is configured.
type SampleFiles struct {
	Group, GFF, Count, FASTQ string
}

// Config is a parsed chain configuration.
type Config struct {
	// Samples in merge order. Intermediate samples precede fresh ones.
	Samples []Sample

	GroupFilename string
	GFFFilename   string
	CountFilename string
	// FASTQFilename is optional.
	FASTQFilename string
}

// Names returns the sample names in chain order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Samples))
	for i, s := range c.Samples {
		names[i] = s.Name
	}
	return names
}

// HasFASTQ tells whether samples carry representative sequences.
func (c *Config) HasFASTQ() bool { return c.FASTQFilename != "" }

// Files returns the paths of s's own files.
func (c *Config) Files(s Sample) SampleFiles {
	f := SampleFiles{
		Group: filepath.Join(s.Dir, c.GroupFilename),
		GFF:   filepath.Join(s.Dir, c.GFFFilename),
		Count: filepath.Join(s.Dir, c.CountFilename),
	}
	if c.HasFASTQ() {
		f.FASTQ = filepath.Join(s.Dir, c.FASTQFilename)
	}
	return f
}

// ParseConfig parses a chain configuration. Recognized lines are
//
//   tmpSAMPLE=<name>;<path>   an intermediate sample
//   SAMPLE=<name>;<path>      a fresh sample
//   GROUP_FILENAME=<name>     required
//   GFF_FILENAME=<name>       required
//   COUNT_FILENAME=<name>     required
//   FASTQ_FILENAME=<name>     optional
//
// Sample lines are order significant and all tmpSAMPLE lines must come
// before the first SAMPLE line. Relative sample paths are made absolute
// against the process working directory. Other lines are ignored.
func ParseConfig(r io.Reader) (*Config, error) {
	var (
		c        = &Config{}
		sc       = bufio.NewScanner(r)
		seen     = map[string]bool{}
		sawFresh bool
	)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		key, value := line, ""
		if i := strings.IndexByte(line, '='); i >= 0 {
			key, value = line[:i], line[i+1:]
		}
		switch key {
		case "tmpSAMPLE", "SAMPLE":
			role := Fresh
			if key == "tmpSAMPLE" {
				if sawFresh {
					return nil, configErrorf("line %d: tmpSAMPLE entries must precede all SAMPLE entries", n)
				}
				role = Intermediate
			} else {
				sawFresh = true
			}
			parts := strings.Split(value, ";")
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return nil, configErrorf("line %d: expected %s=<name>;<path>, found %q", n, key, line)
			}
			name := parts[0]
			if strings.HasPrefix(name, IntermediatePrefix) {
				return nil, configErrorf("line %d: sample names may not start with %s, rename %s",
					n, IntermediatePrefix, name)
			}
			if seen[name] {
				return nil, configErrorf("line %d: duplicate sample %s", n, name)
			}
			seen[name] = true
			dir, err := filepath.Abs(parts[1])
			if err != nil {
				return nil, configErrorf("line %d: %v", n, err)
			}
			c.Samples = append(c.Samples, Sample{Name: name, Dir: dir, Role: role})
		case "GROUP_FILENAME":
			c.GroupFilename = value
		case "GFF_FILENAME":
			c.GFFFilename = value
		case "COUNT_FILENAME":
			c.CountFilename = value
		case "FASTQ_FILENAME":
			c.FASTQFilename = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for _, req := range []struct{ key, value string }{
		{"GROUP_FILENAME", c.GroupFilename},
		{"GFF_FILENAME", c.GFFFilename},
		{"COUNT_FILENAME", c.CountFilename},
	} {
		if req.value == "" {
			return nil, configErrorf("expected %s= but not in config", req.key)
		}
	}
	if len(c.Samples) == 0 {
		return nil, configErrorf("no samples given")
	}
	return c, nil
}

// ReadConfig reads and parses the configuration file at path.
func ReadConfig(ctx context.Context, path string) (c *Config, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, configErrorf("open config %s: %v", path, err)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if c, err = ParseConfig(in.Reader(ctx)); err != nil {
		return nil, err
	}
	log.Printf("config %s: %d samples (%s), fastq=%v", path, len(c.Samples),
		strings.Join(c.Names(), ","), c.HasFASTQ())
	return c, nil
}
