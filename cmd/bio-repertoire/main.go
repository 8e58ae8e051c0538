package main

/*
bio-repertoire summarizes the TCR repertoires of a cohort. For every sample it
reads an AIRR rearrangement table, keeps the best-supported record of each
sequence, and reports V/J gene usage and clonal diversity, annotated with the
sample's experimental group.

Example:

  bio-repertoire -pattern 'data/{sample}/airr_rearrangement.tsv' \
    -metadata samples.tsv -chain TRA -loci tra_loci.tsv -out results/tra

writes results/tra.frequency.tsv, results/tra.diversity.tsv,
results/tra.failures.tsv and, with -loci, results/tra.ordered.tsv.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/repertoire/airr"
	"github.com/grailbio/repertoire/cohort"
	"github.com/grailbio/repertoire/locus"
)

var (
	configPath     = flag.String("config", "", "Cohort config file (YAML, JSON or TOML). Flags override its values")
	pattern        = flag.String("pattern", "", "Path pattern of the per-sample AIRR tables; {sample} is replaced by the sample ID")
	metadataPath   = flag.String("metadata", "", "Sample metadata TSV with columns sample_id, group_label")
	samples        = flag.String("samples", "", "Comma-separated sample IDs. Defaults to the samples in -metadata")
	chain          = flag.String("chain", "", "Keep only records whose call contains this marker, e.g. TRA or TRB")
	chainField     = flag.String("chain-field", defaultConfig.ChainField, "Call matched against -chain: 'v' or 'j'")
	productiveOnly = flag.Bool("productive-only", false, "Drop records marked unproductive")
	axes           = flag.String("axes", strings.Join(defaultConfig.Axes, ","), "Comma-separated gene axes: 'v', 'j'")
	lociPath       = flag.String("loci", "", "Gene position TSV with columns gene_label, start_position; enables locus-ordered output")
	outPrefix      = flag.String("out", defaultConfig.Out, "Output path prefix; a .gz suffix on -suffix compresses outputs")
	suffix         = flag.String("suffix", ".tsv", "Output file suffix, '.tsv' or '.tsv.gz'")
	parallelism    = flag.Int("parallelism", defaultConfig.Parallelism, "Maximum number of samples processed at once; 0 = runtime.NumCPU()")
	readTimeout    = flag.Duration("read-timeout", defaultConfig.ReadTimeout, "Time limit on reading one sample; 0 = none")
	attempts       = flag.Int("attempts", defaultConfig.Attempts, "Read attempts per sample for transient errors")
	pivot          = flag.Bool("pivot", false, "Zero-fill gene usage over the cohort-wide gene set")
)

func bioRepertoireUsage() {
	fmt.Printf("Usage: %s [OPTIONS]\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// applyFlags overrides c with the flags set on the command line.
func applyFlags(c *runConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pattern":
			c.Pattern = *pattern
		case "metadata":
			c.Metadata = *metadataPath
		case "samples":
			c.Samples = splitList(*samples)
		case "chain":
			c.Chain = *chain
		case "chain-field":
			c.ChainField = *chainField
		case "productive-only":
			c.ProductiveOnly = *productiveOnly
		case "axes":
			c.Axes = splitList(*axes)
		case "loci":
			c.Loci = *lociPath
		case "out":
			c.Out = *outPrefix
		case "parallelism":
			c.Parallelism = *parallelism
		case "read-timeout":
			c.ReadTimeout = *readTimeout
		case "attempts":
			c.Attempts = *attempts
		case "pivot":
			c.Pivot = *pivot
		}
	})
}

// run executes one cohort run described by c and writes its outputs.
func run(ctx context.Context, c runConfig, ext string) (*cohort.Result, error) {
	if c.Pattern == "" {
		return nil, fmt.Errorf("a sample path pattern is required (-pattern or 'pattern' in -config)")
	}
	opts, err := c.opts()
	if err != nil {
		return nil, err
	}
	md, err := c.metadata(ctx)
	if err != nil {
		return nil, err
	}
	ids := c.Samples
	if len(ids) == 0 {
		ids = md.Samples()
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no samples: set -samples or provide metadata")
	}
	res, err := cohort.Run(ctx, ids, airr.PathSource{Pattern: c.Pattern}, md, opts)
	if err != nil {
		return nil, err
	}

	freqs := res.Frequencies
	if c.Pivot {
		var pivoted cohort.FrequencyTable
		for _, axis := range opts.Axes {
			pivoted = append(pivoted, freqs.Pivot(axis)...)
		}
		freqs = pivoted
	}
	if err := cohort.WriteFrequencyTSV(ctx, c.Out+".frequency"+ext, freqs); err != nil {
		return nil, err
	}
	if opts.Diversity {
		if err := cohort.WriteDiversityTSV(ctx, c.Out+".diversity"+ext, res.Diversity); err != nil {
			return nil, err
		}
	}
	if err := cohort.WriteFailuresTSV(ctx, c.Out+".failures"+ext, res.Failures); err != nil {
		return nil, err
	}
	if c.Loci != "" {
		loci, err := locus.ReadTable(ctx, c.Loci)
		if err != nil {
			return nil, err
		}
		var ordered []locus.OrderedRow
		for _, axis := range opts.Axes {
			ordered = append(ordered, locus.OrderAxis(freqs.Axis(axis), loci)...)
		}
		if err := locus.WriteTSV(ctx, c.Out+".ordered"+ext, ordered); err != nil {
			return nil, err
		}
	}
	log.Printf("frequency digest %016x, diversity digest %016x", res.Frequencies.Digest(), res.Diversity.Digest())
	return res, nil
}

func main() {
	flag.Usage = bioRepertoireUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Fatalf("unparsed arguments, please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	c, err := readConfig(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	applyFlags(&c)

	ctx := vcontext.Background()
	res, err := run(ctx, c, *suffix)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(res.Failures) > 0 {
		log.Error.Printf("%d of %d samples failed; see %s.failures%s",
			len(res.Failures), len(res.Failures)+len(res.Stats), c.Out, *suffix)
	}
	log.Debug.Printf("exiting")
}
