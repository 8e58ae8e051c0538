package main

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grailbio/repertoire/airr"
	"github.com/grailbio/repertoire/repertoire"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
pattern: data/{sample}.tsv
chain: TRB
chain-field: v
productive-only: true
axes: [j]
read-timeout: 2m
attempts: 5
groups:
  - sample: WT1
    group: WT
  - sample: KO1
    group: KO
`

func TestReadConfig(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "config")
	defer cleanup()
	path := filepath.Join(dir, "cohort.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(testConfig), 0644))

	c, err := readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "data/{sample}.tsv", c.Pattern)
	assert.Equal(t, 2*time.Minute, c.ReadTimeout)
	assert.Equal(t, defaultConfig.Out, c.Out)

	opts, err := c.opts()
	require.NoError(t, err)
	assert.Equal(t, airr.ReadOpts{Chain: "TRB", ChainField: airr.VField, ProductiveOnly: true}, opts.Read)
	assert.Equal(t, []repertoire.Axis{repertoire.JAxis}, opts.Axes)
	assert.Equal(t, 5, opts.MaxReadAttempts)

	md, err := c.metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"WT1", "KO1"}, md.Samples())
	assert.Equal(t, "KO", md.Group("KO1").Label)
}

func TestConfigErrors(t *testing.T) {
	_, err := readConfig("/nonexistent/cohort.yaml")
	assert.Error(t, err)

	c := defaultConfig
	c.ChainField = "d"
	_, err = c.opts()
	assert.Error(t, err)

	c = defaultConfig
	c.Axes = []string{"c"}
	_, err = c.opts()
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "run")
	defer cleanup()
	ctx := context.Background()
	write := func(name, data string) {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
	write("wt1.tsv", "sequence_id\tv_call\tj_call\tconsensus_count\tjunction_aa\n"+
		"1\tTRAV1*01\tTRAJ2*01\t3\tCAS\n"+
		"2\tTRAV2*01\tTRAJ2*01\t1\tCAT\n")
	write("loci.tsv", "gene_label\tstart_position\nTRAV2\t10\nTRAV1\t20\n")

	c := defaultConfig
	c.Pattern = filepath.Join(dir, "{sample}.tsv")
	c.Samples = []string{"wt1", "absent"}
	c.Groups = []groupEntry{{Sample: "wt1", Group: "WT"}}
	c.Axes = []string{"v"}
	c.Loci = filepath.Join(dir, "loci.tsv")
	c.Out = filepath.Join(dir, "out")
	res, err := run(ctx, c, ".tsv")
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, airr.SampleNotFound, res.Failures[0].Kind())

	data, err := ioutil.ReadFile(c.Out + ".ordered.tsv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "wt1\tWT\tv_gene\tTRAV2\t1\t0.5"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "wt1\tWT\tv_gene\tTRAV1\t1\t0.5"), lines[2])

	for _, name := range []string{".frequency.tsv", ".diversity.tsv", ".failures.tsv"} {
		_, err := ioutil.ReadFile(c.Out + name)
		assert.NoError(t, err, name)
	}

	c.Pattern = ""
	_, err = run(ctx, c, ".tsv")
	assert.Error(t, err)
}
